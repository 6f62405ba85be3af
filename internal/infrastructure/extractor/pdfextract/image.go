package pdfextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
	"github.com/kirillkom/multimodal-rag/internal/core/ports"
)

var disableConfigDir sync.Once

type pageImage struct {
	page     int
	objNr    int
	fileType string
	data     []byte
}

// ImageExtractor runs OCR over every embedded raster image and emits one unit
// per image whose recognized text is not blank.
type ImageExtractor struct {
	ocr ports.OCREngine
}

func NewImageExtractor(ocr ports.OCREngine) *ImageExtractor {
	disableConfigDir.Do(api.DisableConfigDir)
	return &ImageExtractor{ocr: ocr}
}

func (e *ImageExtractor) Modality() domain.Modality {
	return domain.ModalityImage
}

func (e *ImageExtractor) Extract(ctx context.Context, src domain.SourceDocument) ([]domain.RawContentUnit, error) {
	images, err := e.images(src)
	if err != nil {
		slog.Warn("extract_images_skipped", "document", src.Name, "error", err.Error())
		return nil, nil
	}

	units := make([]domain.RawContentUnit, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := e.ocr.Recognize(ctx, img.data)
		if err != nil {
			slog.Warn("ocr_image_skipped",
				"document", src.Name,
				"page", img.page,
				"object", img.objNr,
				"file_type", img.fileType,
				"error", err.Error(),
			)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		units = append(units, domain.RawContentUnit{
			Page:     img.page,
			Content:  text,
			Modality: domain.ModalityImage,
		})
	}
	return units, nil
}

// images decodes embedded images ordered by page, then by object number.
func (e *ImageExtractor) images(src domain.SourceDocument) (out []pageImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = domain.WrapError(domain.ErrInvalidInput, "extract images", fmt.Errorf("%s: %v", src.Name, r))
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	digest := func(img model.Image, _ bool, _ int) error {
		data, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("read image page=%d obj=%d: %w", img.PageNr, img.ObjNr, err)
		}
		if len(data) == 0 {
			return nil
		}
		out = append(out, pageImage{page: img.PageNr, objNr: img.ObjNr, fileType: img.FileType, data: data})
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(src.Data), nil, digest, conf); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract images", fmt.Errorf("%s: %w", src.Name, err))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].page != out[j].page {
			return out[i].page < out[j].page
		}
		return out[i].objNr < out[j].objNr
	})
	return out, nil
}
