package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "coding.case_ingested").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type codes. The NATS subject is derived from these
// ("events.<type>"), so they must stay dot-separated and lowercase.
const (
	TypeWorkflowFinalized = "coding.workflow_finalized"
	TypeCaseIngested      = "coding.case_ingested"
	TypeCaseEmbedded      = "coding.case_embedded"
	TypeCaseDeleted       = "coding.case_deleted"
)

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewWorkflowFinalized records a completed coding run. Only aggregate shape is
// published; the codes themselves stay in the HTTP response.
func NewWorkflowFinalized(icd9Count, cptCount int, confidence float64, usedFallback bool) BaseEvent {
	return BaseEvent{
		Type: TypeWorkflowFinalized,
		Data: map[string]interface{}{
			"icd9_count":       icd9Count,
			"cpt_count":        cptCount,
			"confidence_score": confidence,
			"used_fallback":    usedFallback,
		},
		OccurredAt: time.Now(),
	}
}

// NewCaseIngested records a coded case entering the corpus.
func NewCaseIngested(caseID string, position int64) BaseEvent {
	return BaseEvent{
		Type: TypeCaseIngested,
		Data: map[string]interface{}{
			"case_id":  caseID,
			"position": position,
		},
		OccurredAt: time.Now(),
	}
}

// NewCaseEmbedded records that a case's narrative chunks were embedded and the
// case became retrievable.
func NewCaseEmbedded(caseID string, chunks int) BaseEvent {
	return BaseEvent{
		Type: TypeCaseEmbedded,
		Data: map[string]interface{}{
			"case_id": caseID,
			"chunks":  chunks,
		},
		OccurredAt: time.Now(),
	}
}

// NewCaseDeleted records a soft delete of a case and its embeddings.
func NewCaseDeleted(caseID string) BaseEvent {
	return BaseEvent{
		Type: TypeCaseDeleted,
		Data: map[string]interface{}{
			"case_id": caseID,
		},
		OccurredAt: time.Now(),
	}
}
