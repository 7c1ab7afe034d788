package finalize

import (
	"io"
	"log"
	"strings"
	"testing"

	"clinical-coding-be/pkg/workflow/state"

	"github.com/google/uuid"
)

func testFinalizer() *Finalizer {
	return NewFinalizer(log.New(io.Discard, "", 0))
}

func TestFinalizePartitionsBySystem(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "93010", CodeSystem: state.CodeSystemCPT, ConfidenceContribution: 0.4, Rationale: "EKG interpretation"},
		{Code: "410.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.6, Rationale: "acute MI"},
		{Code: "401.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.3, Rationale: "hypertension"},
	}

	result := testFinalizer().Finalize(candidates, 0.63, false)

	if len(result.Icd9Codes) != 2 || result.Icd9Codes[0] != "410.9" || result.Icd9Codes[1] != "401.9" {
		t.Errorf("Icd9Codes = %v, want [410.9 401.9] by contribution", result.Icd9Codes)
	}
	if len(result.CptCodes) != 1 || result.CptCodes[0] != "93010" {
		t.Errorf("CptCodes = %v, want [93010]", result.CptCodes)
	}

	// Partition law: every code in exactly one list.
	seen := make(map[string]int)
	for _, c := range result.Icd9Codes {
		seen[c]++
	}
	for _, c := range result.CptCodes {
		seen[c]++
	}
	for code, n := range seen {
		if n != 1 {
			t.Errorf("code %s appears %d times across the two lists, want 1", code, n)
		}
	}

	if result.ConfidenceScore != 0.63 {
		t.Errorf("ConfidenceScore = %v, want 0.63", result.ConfidenceScore)
	}
	if result.UsedFallback {
		t.Error("UsedFallback = true, want false")
	}
}

func TestFinalizeTieOrderIsCodeAscending(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "428.0", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.5, Rationale: "r"},
		{Code: "250.00", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.5, Rationale: "r"},
	}

	result := testFinalizer().Finalize(candidates, 0.5, false)

	if len(result.Icd9Codes) != 2 || result.Icd9Codes[0] != "250.00" {
		t.Errorf("Icd9Codes = %v, want 250.00 first on tied contribution", result.Icd9Codes)
	}
}

func TestFinalizeExplanationCitesCases(t *testing.T) {
	supporter := uuid.New()
	candidates := []state.CandidateCode{
		{
			Code:                   "410.9",
			CodeSystem:             state.CodeSystemICD9,
			ConfidenceContribution: 0.55,
			SupportingCaseIDs:      []uuid.UUID{supporter},
			Rationale:              "observed in 3 of 5 similar cases (mean similarity 0.92)",
		},
	}

	result := testFinalizer().Finalize(candidates, 0.63, false)

	if !strings.Contains(result.Explanation, "410.9 (ICD9)") {
		t.Errorf("Explanation missing code line: %q", result.Explanation)
	}
	if !strings.Contains(result.Explanation, "observed in 3 of 5 similar cases") {
		t.Errorf("Explanation missing rationale: %q", result.Explanation)
	}
	if !strings.Contains(result.Explanation, supporter.String()[:8]) {
		t.Errorf("Explanation missing supporting case citation: %q", result.Explanation)
	}
	if !strings.Contains(result.Explanation, "similar previously coded cases") {
		t.Errorf("Explanation missing derivation header: %q", result.Explanation)
	}
}

func TestFinalizeFallbackExplanation(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "786.50", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.8, Rationale: "chest pain documented"},
	}

	result := testFinalizer().Finalize(candidates, 0.21, true)

	if !result.UsedFallback {
		t.Error("UsedFallback = false, want true")
	}
	if !strings.Contains(result.Explanation, "direct clinical reasoning") {
		t.Errorf("Explanation missing fallback note: %q", result.Explanation)
	}
	if result.ConfidenceScore != 0.21 {
		t.Errorf("ConfidenceScore = %v, want the quality-stage score 0.21", result.ConfidenceScore)
	}
}

func TestFinalizeEmptyCandidates(t *testing.T) {
	result := testFinalizer().Finalize(nil, 0, true)

	if result.Icd9Codes == nil || len(result.Icd9Codes) != 0 {
		t.Errorf("Icd9Codes = %v, want empty non-nil slice", result.Icd9Codes)
	}
	if result.CptCodes == nil || len(result.CptCodes) != 0 {
		t.Errorf("CptCodes = %v, want empty non-nil slice", result.CptCodes)
	}
	if !strings.Contains(result.Explanation, "No supportable billing codes") {
		t.Errorf("Explanation = %q, want the no-codes note", result.Explanation)
	}
}

func TestFinalizeDropsUnknownSystems(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "410.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.6, Rationale: "r"},
		{Code: "X99", CodeSystem: state.CodeSystem("SNOMED"), ConfidenceContribution: 0.9, Rationale: "r"},
	}

	result := testFinalizer().Finalize(candidates, 0.6, false)

	if len(result.Icd9Codes) != 1 || result.Icd9Codes[0] != "410.9" {
		t.Errorf("Icd9Codes = %v, want [410.9]", result.Icd9Codes)
	}
	if len(result.CptCodes) != 0 {
		t.Errorf("CptCodes = %v, want empty", result.CptCodes)
	}
	if strings.Contains(result.Explanation, "X99") {
		t.Errorf("Explanation should not mention the dropped code: %q", result.Explanation)
	}
}

func TestFinalizeDoesNotMutateInput(t *testing.T) {
	candidates := []state.CandidateCode{
		{Code: "93010", CodeSystem: state.CodeSystemCPT, ConfidenceContribution: 0.3, Rationale: "r"},
		{Code: "410.9", CodeSystem: state.CodeSystemICD9, ConfidenceContribution: 0.6, Rationale: "r"},
	}

	testFinalizer().Finalize(candidates, 0.6, false)

	if candidates[0].Code != "93010" || candidates[1].Code != "410.9" {
		t.Errorf("input order changed: %v, want original order preserved", candidates)
	}
}
