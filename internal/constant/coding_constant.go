package constant

// Embedding task types understood by the providers. Documents and queries are
// embedded asymmetrically, so ingest and search must not mix these up.
const (
	TaskTypeRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Component health statuses reported by the health endpoint.
const (
	HealthStatusOk       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)
