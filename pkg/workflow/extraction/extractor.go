package extraction

import (
	"fmt"
	"log"
	"sort"

	"clinical-coding-be/pkg/workflow/state"

	"github.com/google/uuid"
)

// Extractor aggregates candidate billing codes out of the retrieved cases.
// The math is deliberately deterministic: identical retrieval input always
// produces the identical candidate set.
type Extractor struct {
	logger *log.Logger
}

func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

type accumulator struct {
	code          string
	codeSystem    state.CodeSystem
	similaritySum float64
	caseCount     int
	caseIDs       []uuid.UUID
}

// Extract derives candidate codes from the retrieved cases, weighted by
// similarity. A code asserted by several high-similarity cases accumulates a
// higher contribution than one asserted by a single weak match:
//
//	contribution(code) = sum(similarity of cases asserting code) / K
//
// where K is the fixed retrieval fan-out, not the number of hits actually
// returned. (code, code_system) pairs are unique in the output.
func (e *Extractor) Extract(retrieved []state.RetrievedCase, topK int) []state.CandidateCode {
	if topK <= 0 || len(retrieved) == 0 {
		return nil
	}

	accs := make(map[string]*accumulator)
	for _, retrievedCase := range retrieved {
		// A case asserts a set of codes; a duplicate within one case must
		// not double its similarity weight.
		seenInCase := make(map[string]bool)
		for _, assigned := range retrievedCase.AssignedCodes {
			key := string(assigned.CodeSystem) + "|" + assigned.Code
			if seenInCase[key] {
				continue
			}
			seenInCase[key] = true

			acc, ok := accs[key]
			if !ok {
				acc = &accumulator{code: assigned.Code, codeSystem: assigned.CodeSystem}
				accs[key] = acc
			}
			acc.similaritySum += retrievedCase.Similarity
			acc.caseCount++
			acc.caseIDs = append(acc.caseIDs, retrievedCase.CaseID)
		}
	}

	candidates := make([]state.CandidateCode, 0, len(accs))
	for _, acc := range accs {
		contribution := acc.similaritySum / float64(topK)
		meanSimilarity := acc.similaritySum / float64(acc.caseCount)
		candidates = append(candidates, state.CandidateCode{
			Code:                   acc.code,
			CodeSystem:             acc.codeSystem,
			ConfidenceContribution: contribution,
			SupportingCaseIDs:      acc.caseIDs,
			Rationale: fmt.Sprintf("observed in %d of %d similar cases (mean similarity %.2f)",
				acc.caseCount, topK, meanSimilarity),
		})
	}

	// Contribution descending; code then system ascending on ties so the
	// output order never depends on map iteration.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ConfidenceContribution != candidates[j].ConfidenceContribution {
			return candidates[i].ConfidenceContribution > candidates[j].ConfidenceContribution
		}
		if candidates[i].Code != candidates[j].Code {
			return candidates[i].Code < candidates[j].Code
		}
		return candidates[i].CodeSystem < candidates[j].CodeSystem
	})

	e.logger.Printf("[EXTRACTION] Aggregated %d candidate codes from %d cases", len(candidates), len(retrieved))
	for i, c := range candidates {
		e.logger.Printf("[EXTRACTION] Candidate %d: %s (%s) contribution=%.4f supporters=%d",
			i+1, c.Code, c.CodeSystem, c.ConfidenceContribution, len(c.SupportingCaseIDs))
	}

	return candidates
}
