package router

import (
	"context"
	"fmt"
	"log"

	"clinical-coding-be/pkg/workflow/quality"
	"clinical-coding-be/pkg/workflow/state"
)

// State is a node of the routing state machine.
type State string

const (
	StateRetrievalPending State = "RETRIEVAL_PENDING"
	StateQualityChecked   State = "QUALITY_CHECKED"
	StateAccept           State = "ACCEPT"
	StateFallback         State = "FALLBACK"
	StateFinalized        State = "FINALIZED"
)

// legal transitions; anything else is a programming error.
var transitions = map[State][]State{
	StateRetrievalPending: {StateQualityChecked},
	StateQualityChecked:   {StateAccept, StateFallback},
	StateAccept:           {StateFinalized},
	StateFallback:         {StateFinalized},
}

// Reasoner is the LLM escape hatch consumed by the fallback branch.
type Reasoner interface {
	Reason(ctx context.Context, rawQuery string, patientContext map[string]interface{}, retrieved []state.RetrievedCase) ([]state.CandidateCode, error)
}

// Decision is the routing outcome: which branch ran and the candidate set
// every later stage must use.
type Decision struct {
	Branch       State
	UsedFallback bool
	Candidates   []state.CandidateCode
	Path         []State
}

// Router walks RETRIEVAL_PENDING -> QUALITY_CHECKED -> {ACCEPT, FALLBACK} ->
// FINALIZED. The fallback branch invokes the reasoner once and accepts its
// output without a second confidence gate, which bounds the workflow to a
// single level of escalation.
type Router struct {
	reasoner Reasoner
	logger   *log.Logger
}

func NewRouter(reasoner Reasoner, logger *log.Logger) *Router {
	return &Router{
		reasoner: reasoner,
		logger:   logger,
	}
}

// Route decides between the retrieval-derived candidates and the reasoning
// fallback based on the quality verdict. On the fallback branch the
// reasoner's candidate set replaces the retrieval-only one wholesale.
func (r *Router) Route(
	ctx context.Context,
	rawQuery string,
	patientContext map[string]interface{},
	retrieved []state.RetrievedCase,
	candidates []state.CandidateCode,
	verdict quality.Verdict,
) (*Decision, error) {

	walk := &walker{current: StateRetrievalPending, path: []State{StateRetrievalPending}}
	if err := walk.to(StateQualityChecked); err != nil {
		return nil, err
	}

	if verdict.Passed {
		if err := walk.to(StateAccept); err != nil {
			return nil, err
		}
		if err := walk.to(StateFinalized); err != nil {
			return nil, err
		}
		r.logger.Printf("[ROUTER] Branch=ACCEPT (score %.4f >= threshold %.2f)", verdict.Score, verdict.Threshold)
		return &Decision{
			Branch:       StateAccept,
			UsedFallback: false,
			Candidates:   candidates,
			Path:         walk.path,
		}, nil
	}

	if err := walk.to(StateFallback); err != nil {
		return nil, err
	}
	r.logger.Printf("[ROUTER] Branch=FALLBACK (score %.4f < threshold %.2f), invoking reasoner",
		verdict.Score, verdict.Threshold)

	reasoned, err := r.reasoner.Reason(ctx, rawQuery, patientContext, retrieved)
	if err != nil {
		return nil, fmt.Errorf("fallback reasoning: %w", err)
	}

	if err := walk.to(StateFinalized); err != nil {
		return nil, err
	}
	return &Decision{
		Branch:       StateFallback,
		UsedFallback: true,
		Candidates:   reasoned,
		Path:         walk.path,
	}, nil
}

type walker struct {
	current State
	path    []State
}

func (w *walker) to(next State) error {
	for _, allowed := range transitions[w.current] {
		if allowed == next {
			w.current = next
			w.path = append(w.path, next)
			return nil
		}
	}
	return fmt.Errorf("illegal routing transition %s -> %s", w.current, next)
}
