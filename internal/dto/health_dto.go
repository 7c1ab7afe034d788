package dto

type ComponentHealth struct {
	Status string `json:"status"` // "ok" | "down"
	Detail string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status     string          `json:"status"`
	Database   ComponentHealth `json:"database"`
	Embedding  ComponentHealth `json:"embedding"`
	Llm        ComponentHealth `json:"llm"`
	CorpusSize int64           `json:"corpus_size"`
}
