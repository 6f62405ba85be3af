//go:build !cgo

package tesseract

import (
	"context"
	"errors"
)

// Engine stub type when built without CGO (see tesseract.go for the real implementation).
type Engine struct{}

// New returns an error when built without CGO (Tesseract not available).
func New(_ []string) (*Engine, error) {
	return nil, errors.New("tesseract OCR requires CGO; build with CGO_ENABLED=1 and libtesseract")
}

func (e *Engine) Recognize(context.Context, []byte) (string, error) {
	return "", errors.New("tesseract OCR not available")
}
