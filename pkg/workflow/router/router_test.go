package router

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"clinical-coding-be/pkg/workflow/quality"
	"clinical-coding-be/pkg/workflow/state"
)

type fakeReasoner struct {
	candidates []state.CandidateCode
	err        error
	calls      int
}

func (f *fakeReasoner) Reason(ctx context.Context, rawQuery string, patientContext map[string]interface{}, retrieved []state.RetrievedCase) ([]state.CandidateCode, error) {
	f.calls++
	return f.candidates, f.err
}

func testRouter(reasoner Reasoner) *Router {
	return NewRouter(reasoner, log.New(io.Discard, "", 0))
}

func retrievalCandidates() []state.CandidateCode {
	return []state.CandidateCode{
		{Code: "410.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.552},
	}
}

func pathEquals(got []State, want ...State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRoutePassingVerdictAccepts(t *testing.T) {
	reasoner := &fakeReasoner{}
	candidates := retrievalCandidates()

	decision, err := testRouter(reasoner).Route(
		context.Background(), "note", nil, nil, candidates,
		quality.Verdict{Score: 0.63, Threshold: 0.60, Passed: true},
	)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}

	if decision.Branch != StateAccept {
		t.Errorf("Branch = %s, want %s", decision.Branch, StateAccept)
	}
	if decision.UsedFallback {
		t.Error("UsedFallback = true, want false on the accept branch")
	}
	if reasoner.calls != 0 {
		t.Errorf("reasoner calls = %d, want 0 on the accept branch", reasoner.calls)
	}
	if len(decision.Candidates) != 1 || decision.Candidates[0].Code != "410.9" {
		t.Errorf("Candidates = %v, want the retrieval-derived set untouched", decision.Candidates)
	}
	if !pathEquals(decision.Path, StateRetrievalPending, StateQualityChecked, StateAccept, StateFinalized) {
		t.Errorf("Path = %v, want the accept walk", decision.Path)
	}
}

func TestRouteFailingVerdictFallsBack(t *testing.T) {
	reasoned := []state.CandidateCode{
		{Code: "786.50", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.8},
		{Code: "93010", CodeSystem: state.CodeSystemCPT, ConfidenceContribution: 0.7},
	}
	reasoner := &fakeReasoner{candidates: reasoned}

	decision, err := testRouter(reasoner).Route(
		context.Background(), "note", nil, nil, retrievalCandidates(),
		quality.Verdict{Score: 0.21, Threshold: 0.60, Passed: false},
	)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}

	if decision.Branch != StateFallback {
		t.Errorf("Branch = %s, want %s", decision.Branch, StateFallback)
	}
	if !decision.UsedFallback {
		t.Error("UsedFallback = false, want true on the fallback branch")
	}
	if reasoner.calls != 1 {
		t.Errorf("reasoner calls = %d, want exactly 1", reasoner.calls)
	}
	if len(decision.Candidates) != 2 || decision.Candidates[0].Code != "786.50" {
		t.Errorf("Candidates = %v, want the reasoned set to replace retrieval's", decision.Candidates)
	}
	if !pathEquals(decision.Path, StateRetrievalPending, StateQualityChecked, StateFallback, StateFinalized) {
		t.Errorf("Path = %v, want the fallback walk", decision.Path)
	}
}

func TestRouteReasonerFailurePropagates(t *testing.T) {
	reasoner := &fakeReasoner{err: fmt.Errorf("model unreachable")}

	decision, err := testRouter(reasoner).Route(
		context.Background(), "note", nil, nil, retrievalCandidates(),
		quality.Verdict{Score: 0.1, Threshold: 0.60, Passed: false},
	)
	if err == nil {
		t.Fatal("Route should propagate a reasoner failure")
	}
	if decision != nil {
		t.Errorf("decision = %v, want nil on reasoner failure", decision)
	}
	if !strings.Contains(err.Error(), "fallback reasoning") {
		t.Errorf("error = %q, want it wrapped as fallback reasoning", err)
	}
}

func TestWalkerRejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{name: "skip quality check", from: StateRetrievalPending, to: StateAccept},
		{name: "accept to fallback", from: StateAccept, to: StateFallback},
		{name: "finalized is terminal", from: StateFinalized, to: StateQualityChecked},
		{name: "fallback cannot re-enter accept", from: StateFallback, to: StateAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &walker{current: tt.from, path: []State{tt.from}}
			err := w.to(tt.to)
			if err == nil {
				t.Fatalf("transition %s -> %s should be rejected", tt.from, tt.to)
			}
			if !strings.Contains(err.Error(), "illegal routing transition") {
				t.Errorf("error = %q, want illegal transition message", err)
			}
			if w.current != tt.from {
				t.Errorf("current = %s, want unchanged %s after rejected transition", w.current, tt.from)
			}
		})
	}
}

func TestWalkerTracksPath(t *testing.T) {
	w := &walker{current: StateRetrievalPending, path: []State{StateRetrievalPending}}

	for _, next := range []State{StateQualityChecked, StateFallback, StateFinalized} {
		if err := w.to(next); err != nil {
			t.Fatalf("legal transition to %s rejected: %v", next, err)
		}
	}

	if !pathEquals(w.path, StateRetrievalPending, StateQualityChecked, StateFallback, StateFinalized) {
		t.Errorf("path = %v, want the full fallback walk", w.path)
	}
}
