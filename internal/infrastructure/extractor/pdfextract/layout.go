package pdfextract

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	defaultFontSize = 10.0
	// Horizontal gaps are measured in multiples of the glyph font size.
	wordGapRatio   = 0.15
	cellGapRatio   = 1.0
	columnTolRatio = 1.0
	minTableRows   = 2
	minTableCells  = 2
)

type textCell struct {
	x    float64
	end  float64
	size float64
	text string
}

type textLine struct {
	y     float64
	cells []textCell
}

// groupLines groups glyphs sharing a baseline into lines ordered top to bottom
// and splits each line into cells at wide horizontal gaps.
func groupLines(glyphs []pdf.Text) []textLine {
	byBaseline := make(map[float64][]pdf.Text)
	for _, g := range glyphs {
		y := math.Round(g.Y)
		byBaseline[y] = append(byBaseline[y], g)
	}

	baselines := make([]float64, 0, len(byBaseline))
	for y := range byBaseline {
		baselines = append(baselines, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(baselines)))

	lines := make([]textLine, 0, len(baselines))
	for _, y := range baselines {
		cells := splitCells(byBaseline[y])
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, textLine{y: y, cells: cells})
	}
	return lines
}

func splitCells(glyphs []pdf.Text) []textCell {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var (
		cells        []textCell
		cur          *textCell
		b            strings.Builder
		pendingSpace bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			cur.text = text
			cells = append(cells, *cur)
		}
		cur = nil
		b.Reset()
		pendingSpace = false
	}

	for _, g := range glyphs {
		size := g.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if strings.TrimSpace(g.S) == "" {
			if cur != nil {
				pendingSpace = true
				cur.end = math.Max(cur.end, g.X+g.W)
			}
			continue
		}

		if cur != nil {
			gap := g.X - cur.end
			switch {
			case gap > size*cellGapRatio:
				flush()
			case pendingSpace || gap > size*wordGapRatio:
				b.WriteByte(' ')
			}
		}
		if cur == nil {
			cur = &textCell{x: g.X, end: g.X, size: size}
		}
		pendingSpace = false
		b.WriteString(g.S)
		cur.end = math.Max(cur.end, g.X+g.W)
	}
	flush()
	return cells
}

// detectTables finds runs of consecutive multi-cell lines and lays their cells
// out on shared column anchors. Slots with no cell stay nil.
func detectTables(lines []textLine) [][][]*string {
	var tables [][][]*string
	start := -1
	closeRun := func(end int) {
		if start >= 0 && end-start >= minTableRows {
			tables = append(tables, layoutTable(lines[start:end]))
		}
		start = -1
	}

	for i, line := range lines {
		if len(line.cells) >= minTableCells {
			if start < 0 {
				start = i
			}
			continue
		}
		closeRun(i)
	}
	closeRun(len(lines))
	return tables
}

func layoutTable(lines []textLine) [][]*string {
	anchors := columnAnchors(lines)
	rows := make([][]*string, 0, len(lines))
	for _, line := range lines {
		row := make([]*string, len(anchors))
		for _, cell := range line.cells {
			col := nearestAnchor(anchors, cell.x)
			if row[col] != nil {
				joined := *row[col] + " " + cell.text
				row[col] = &joined
				continue
			}
			text := cell.text
			row[col] = &text
		}
		rows = append(rows, row)
	}
	return rows
}

func columnAnchors(lines []textLine) []float64 {
	type start struct{ x, tol float64 }
	var starts []start
	for _, line := range lines {
		for _, cell := range line.cells {
			starts = append(starts, start{x: cell.x, tol: cell.size * columnTolRatio})
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].x < starts[j].x })

	var anchors []float64
	last := math.Inf(-1)
	for _, s := range starts {
		if s.x-last > s.tol {
			anchors = append(anchors, s.x)
		}
		last = s.x
	}
	return anchors
}

func nearestAnchor(anchors []float64, x float64) int {
	best := 0
	for i, a := range anchors {
		if math.Abs(a-x) < math.Abs(anchors[best]-x) {
			best = i
		}
	}
	return best
}
