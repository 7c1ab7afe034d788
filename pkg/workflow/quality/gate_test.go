package quality

import (
	"io"
	"log"
	"math"
	"testing"

	"clinical-coding-be/pkg/workflow/state"
)

func testGate() *Gate {
	return NewGate(DefaultConfig(), log.New(io.Discard, "", 0))
}

func candidatesWithMax(max float64) []state.CandidateCode {
	return []state.CandidateCode{
		{Code: "410.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: max},
		{Code: "93010", CodeSystem: state.CodeSystemCPT, ConfidenceContribution: max / 2},
	}
}

func TestEvaluatePerIntentPolicy(t *testing.T) {
	// Max contribution 0.552 (three of five cases at similarity 0.92).
	tests := []struct {
		intent     state.Intent
		wantScore  float64
		wantPassed bool
	}{
		{state.IntentDiagnostic, 0.552 * 1.15, true},  // 0.6348 >= 0.60
		{state.IntentProcedural, 0.552 * 1.10, true},  // 0.6072 >= 0.60
		{state.IntentSymptom, 0.552, true},            // >= 0.50
		{state.IntentCodeLookup, 0.552, false},        // < 0.65
		{state.IntentGeneral, 0.552, true},            // >= 0.45
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			verdict := testGate().Evaluate(candidatesWithMax(0.552), tt.intent)

			if math.Abs(verdict.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", verdict.Score, tt.wantScore)
			}
			if verdict.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", verdict.Passed, tt.wantPassed)
			}
		})
	}
}

func TestEvaluatePassIffScoreAtOrAboveThreshold(t *testing.T) {
	gate := testGate()

	// Exactly at threshold passes: 0.60 / 1.15 puts the boosted score on the
	// diagnostic threshold.
	atThreshold := gate.Evaluate(candidatesWithMax(0.60/1.15), state.IntentDiagnostic)
	if !atThreshold.Passed {
		t.Errorf("score %.4f at threshold %.2f should pass", atThreshold.Score, atThreshold.Threshold)
	}

	justBelow := gate.Evaluate(candidatesWithMax(0.5), state.IntentDiagnostic)
	if justBelow.Passed {
		t.Errorf("score %.4f below threshold %.2f should fail", justBelow.Score, justBelow.Threshold)
	}
}

func TestEvaluateNoCandidates(t *testing.T) {
	verdict := testGate().Evaluate(nil, state.IntentDiagnostic)

	if verdict.Score != 0 {
		t.Errorf("Score = %v, want 0", verdict.Score)
	}
	if verdict.Passed {
		t.Error("empty candidate set must fail the gate")
	}
}

func TestEvaluateClampsToOne(t *testing.T) {
	verdict := testGate().Evaluate(candidatesWithMax(0.95), state.IntentDiagnostic)

	if verdict.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0 (0.95 x 1.15 clamped)", verdict.Score)
	}
	if !verdict.Passed {
		t.Error("clamped score must still pass")
	}
}

func TestEvaluateUnknownIntentUsesFallbackPolicy(t *testing.T) {
	verdict := testGate().Evaluate(candidatesWithMax(0.6), state.Intent("unmapped"))

	if verdict.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", verdict.Threshold)
	}
	if verdict.Multiplier != 1.0 {
		t.Errorf("Multiplier = %v, want 1.0", verdict.Multiplier)
	}
	if !verdict.Passed {
		t.Error("0.6 against fallback threshold 0.5 should pass")
	}
}

func TestEvaluateUsesMaxNotSum(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "401.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.3},
		{Code: "250.00", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.4},
		{Code: "428.0", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.2},
	}

	verdict := testGate().Evaluate(candidates, state.IntentGeneral)

	if math.Abs(verdict.Score-0.4) > 1e-9 {
		t.Errorf("Score = %v, want 0.4 (the max contribution, not the sum)", verdict.Score)
	}
}
