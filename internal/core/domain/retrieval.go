package domain

// RetrievedChunk is a search hit. Rank is 1-based.
type RetrievedChunk struct {
	Chunk
	Rank     int     `json:"rank"`
	Distance float64 `json:"distance"`
}

type AnswerStatus string

const (
	AnswerOK           AnswerStatus = "ok"
	AnswerModelLoading AnswerStatus = "model_loading"
	AnswerUnauthorized AnswerStatus = "unauthorized"
	AnswerBackendError AnswerStatus = "backend_error"
)

type Answer struct {
	Text    string           `json:"text"`
	Status  AnswerStatus     `json:"status"`
	Sources []RetrievedChunk `json:"sources"`
}
