package state

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy of the workflow.
type ErrorKind string

const (
	// ClassificationDegraded is non-fatal: the intent defaults to general
	// and the run continues. It never surfaces as a WorkflowError to the
	// caller, only as a warning in the stage trace.
	KindClassificationDegraded ErrorKind = "classification_degraded"

	// EmbeddingUnavailable is fatal: without a query embedding there is no
	// retrieval path at all.
	KindEmbeddingUnavailable ErrorKind = "embedding_unavailable"

	// ReasoningUnavailable is fatal when the run reached the fallback
	// branch, because no other path remains.
	KindReasoningUnavailable ErrorKind = "reasoning_unavailable"

	// WorkflowTimeout is fatal: a stage exceeded its bounded deadline.
	KindWorkflowTimeout ErrorKind = "workflow_timeout"

	// RetrievalFailed is fatal: the case index errored for a reason other
	// than a deadline, typically a storage outage.
	KindRetrievalFailed ErrorKind = "retrieval_failed"

	// EmptyCorpus is non-fatal: retrieval yields zero cases, extraction
	// yields zero candidates, and the router is forced onto the fallback
	// branch.
	KindEmptyCorpus ErrorKind = "empty_corpus"
)

// WorkflowError is the structured error surfaced to callers when a run
// aborts. It carries the stage trace accumulated up to the failure so the
// caller can see how far the run got. A run either returns a complete
// CodingResult or a WorkflowError, never both.
type WorkflowError struct {
	Kind  ErrorKind
	Stage string
	Trace []StageEvent
	Err   error
}

func NewWorkflowError(kind ErrorKind, stage string, trace []StageEvent, err error) *WorkflowError {
	return &WorkflowError{
		Kind:  kind,
		Stage: stage,
		Trace: trace,
		Err:   err,
	}
}

func (e *WorkflowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow aborted at %s (%s): %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("workflow aborted at %s (%s)", e.Stage, e.Kind)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a WorkflowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var wErr *WorkflowError
	if errors.As(err, &wErr) {
		return wErr.Kind == kind
	}
	return false
}
