package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the ingestion record of an uploaded PDF.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	Stats       IngestionStats `json:"stats"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IngestionStats summarizes one index build.
type IngestionStats struct {
	Pages      int `json:"pages"`
	TextUnits  int `json:"text_units"`
	TableUnits int `json:"table_units"`
	ImageUnits int `json:"image_units"`
	Chunks     int `json:"chunks"`
	Dimension  int `json:"dimension"`
}

// SourceDocument is the raw PDF handed to extractors.
type SourceDocument struct {
	Name string
	Data []byte
}

const pdfMagic = "%PDF-"

// LooksLikePDF reports whether data starts with the PDF header.
func LooksLikePDF(data []byte) bool {
	return len(data) >= len(pdfMagic) && string(data[:len(pdfMagic)]) == pdfMagic
}
