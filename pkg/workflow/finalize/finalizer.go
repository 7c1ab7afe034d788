package finalize

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"clinical-coding-be/pkg/workflow/state"
)

// Finalizer normalizes the accepted candidate set into the externally
// visible result shape. Terminal stage: the workflow state is discarded
// once this returns.
type Finalizer struct {
	logger *log.Logger
}

func NewFinalizer(logger *log.Logger) *Finalizer {
	return &Finalizer{logger: logger}
}

// Finalize partitions the candidates by code system into the two output
// lists, each ordered by confidence contribution descending, and renders the
// per-code rationale into one human-readable explanation. Every candidate
// lands in exactly one list.
func (f *Finalizer) Finalize(candidates []state.CandidateCode, confidenceScore float64, usedFallback bool) *state.CodingResult {
	ordered := make([]state.CandidateCode, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ConfidenceContribution != ordered[j].ConfidenceContribution {
			return ordered[i].ConfidenceContribution > ordered[j].ConfidenceContribution
		}
		return ordered[i].Code < ordered[j].Code
	})

	icd9Codes := make([]string, 0)
	cptCodes := make([]string, 0)
	lines := make([]string, 0, len(ordered)+1)

	if usedFallback {
		lines = append(lines, "Codes derived by direct clinical reasoning; retrieval confidence was below the intent threshold.")
	} else if len(ordered) > 0 {
		lines = append(lines, "Codes derived from similar previously coded cases.")
	}

	for _, candidate := range ordered {
		switch candidate.CodeSystem {
		case state.CodeSystemICD9:
			icd9Codes = append(icd9Codes, candidate.Code)
		case state.CodeSystemCPT:
			cptCodes = append(cptCodes, candidate.Code)
		default:
			f.logger.Printf("[WARN] Candidate %s has unknown code system %q, omitted from result",
				candidate.Code, candidate.CodeSystem)
			continue
		}
		lines = append(lines, renderRationale(candidate))
	}

	if len(icd9Codes) == 0 && len(cptCodes) == 0 {
		lines = append(lines, "No supportable billing codes were identified for this note.")
	}

	f.logger.Printf("[FINALIZE] icd9=%d cpt=%d confidence=%.4f fallback=%t",
		len(icd9Codes), len(cptCodes), confidenceScore, usedFallback)

	return &state.CodingResult{
		Icd9Codes:       icd9Codes,
		CptCodes:        cptCodes,
		ConfidenceScore: confidenceScore,
		Explanation:     strings.Join(lines, "\n"),
		UsedFallback:    usedFallback,
	}
}

func renderRationale(candidate state.CandidateCode) string {
	line := fmt.Sprintf("%s (%s): %s", candidate.Code, candidate.CodeSystem, candidate.Rationale)
	if len(candidate.SupportingCaseIDs) > 0 {
		refs := make([]string, 0, len(candidate.SupportingCaseIDs))
		for _, id := range candidate.SupportingCaseIDs {
			refs = append(refs, shortID(id.String()))
		}
		line += fmt.Sprintf(" [cases %s]", strings.Join(refs, ", "))
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
