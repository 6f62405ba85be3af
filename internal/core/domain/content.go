package domain

import (
	"fmt"
	"strings"
)

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityTable Modality = "table"
	ModalityImage Modality = "image"
)

func ParseModality(raw string) (Modality, error) {
	switch m := Modality(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModalityText, ModalityTable, ModalityImage:
		return m, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse modality", fmt.Errorf("unknown modality %q", raw))
	}
}

// RawContentUnit is one extracted element: a page of text, one table or one OCRed image.
type RawContentUnit struct {
	Page     int      `json:"page"`
	Content  string   `json:"content"`
	Modality Modality `json:"modality"`
}

// Chunk is a word-aligned slice of a RawContentUnit. ChunkID is its ordinal in build order.
type Chunk struct {
	ChunkID  int      `json:"chunk_id"`
	Page     int      `json:"page"`
	Content  string   `json:"content"`
	Modality Modality `json:"type"`
}

// Table is a detected table. A nil cell is a missing cell.
type Table struct {
	Page  int         `json:"page"`
	Index int         `json:"index"`
	Rows  [][]*string `json:"rows"`
}
