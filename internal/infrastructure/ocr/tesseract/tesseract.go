//go:build cgo

// Package tesseract recognizes text in images with the Tesseract OCR engine.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine runs one Tesseract client per call; clients are not safe for concurrent use.
type Engine struct {
	languages []string
}

func New(languages []string) (*Engine, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{languages: languages}, nil
}

func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("tesseract set language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return text, nil
}
