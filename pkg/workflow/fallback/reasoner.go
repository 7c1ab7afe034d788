package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"clinical-coding-be/pkg/llm"
	"clinical-coding-be/pkg/workflow/state"
)

// Config carries the reasoner tunables.
type Config struct {
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout: 90 * time.Second,
	}
}

// Reasoner is the LLM escape hatch taken when retrieval-derived confidence
// fails the quality gate. It produces a fresh candidate set from the full
// note, the patient context, and whatever cases retrieval did find. Its
// output gets no second confidence gate; the routing stage accepts it as
// final.
type Reasoner struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
	config      Config
}

func NewReasoner(llmProvider llm.LLMProvider, logger *log.Logger, config Config) *Reasoner {
	return &Reasoner{
		llmProvider: llmProvider,
		logger:      logger,
		config:      config,
	}
}

// reasonedCode is the JSON contract the model is asked to honor.
type reasonedCode struct {
	Code       string  `json:"code"`
	CodeSystem string  `json:"code_system"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

type reasonedResult struct {
	Codes []reasonedCode `json:"codes"`
}

// Reason asks the model to code the note directly. A call failure, deadline
// hit, or unparseable output is returned as an error; the caller treats it
// as ReasoningUnavailable because no other path remains at this point.
func (r *Reasoner) Reason(
	ctx context.Context,
	rawQuery string,
	patientContext map[string]interface{},
	retrieved []state.RetrievedCase,
) ([]state.CandidateCode, error) {

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	history := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: r.buildPrompt(rawQuery, patientContext, retrieved)},
	}

	// Low temperature for coding accuracy
	response, err := r.llmProvider.Chat(callCtx, history,
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(2048),
	)
	if err != nil {
		r.logger.Printf("[ERROR] Fallback reasoning failed: %v", err)
		return nil, fmt.Errorf("reasoning call failed: %w", err)
	}

	candidates, err := r.parseCodes(response)
	if err != nil {
		r.logger.Printf("[ERROR] Fallback output unparseable: %v", err)
		return nil, fmt.Errorf("reasoning output unparseable: %w", err)
	}

	r.logger.Printf("[FALLBACK] Reasoned %d candidate codes", len(candidates))
	return candidates, nil
}

const systemPrompt = `You are an expert medical coding specialist. You assign
ICD-9 diagnostic codes and CPT procedure codes to free-text clinical notes.
Assign only codes the documentation supports, state a confidence between 0.0
and 1.0 for each, and give a one-sentence rationale per code.`

func (r *Reasoner) buildPrompt(
	rawQuery string,
	patientContext map[string]interface{},
	retrieved []state.RetrievedCase,
) string {
	var prompt strings.Builder

	prompt.WriteString("<clinical_note>\n")
	prompt.WriteString(rawQuery)
	prompt.WriteString("\n</clinical_note>\n\n")

	if len(patientContext) > 0 {
		prompt.WriteString("<patient_context>\n")
		// Sorted keys so identical input renders an identical prompt.
		keys := make([]string, 0, len(patientContext))
		for k := range patientContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prompt.WriteString(fmt.Sprintf("%s: %v\n", k, patientContext[k]))
		}
		prompt.WriteString("</patient_context>\n\n")
	}

	if len(retrieved) > 0 {
		prompt.WriteString("<similar_coded_cases>\n")
		prompt.WriteString("Previously coded cases with some similarity to this note. They were\n")
		prompt.WriteString("not similar enough to code from directly; use them as weak hints only.\n")
		for i, c := range retrieved {
			codes := make([]string, 0, len(c.AssignedCodes))
			for _, ac := range c.AssignedCodes {
				codes = append(codes, fmt.Sprintf("%s (%s)", ac.Code, ac.CodeSystem))
			}
			prompt.WriteString(fmt.Sprintf("%d. similarity %.2f, codes: %s\n",
				i+1, c.Similarity, strings.Join(codes, ", ")))
		}
		prompt.WriteString("</similar_coded_cases>\n\n")
	}

	prompt.WriteString("<task_instructions>\n")
	prompt.WriteString("1. Identify the diagnoses and procedures the note documents\n")
	prompt.WriteString("2. Assign ICD-9 codes for diagnoses and CPT codes for procedures\n")
	prompt.WriteString("3. Skip anything the documentation does not support\n")
	prompt.WriteString("</task_instructions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"codes\": [\n")
	prompt.WriteString("    {\"code\": \"410.9\", \"code_system\": \"ICD9\", \"confidence\": 0.85, \"rationale\": \"...\"},\n")
	prompt.WriteString("    {\"code\": \"93010\", \"code_system\": \"CPT\", \"confidence\": 0.75, \"rationale\": \"...\"}\n")
	prompt.WriteString("  ]\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (r *Reasoner) parseCodes(response string) ([]state.CandidateCode, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var result reasonedResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	if len(result.Codes) == 0 {
		return nil, fmt.Errorf("model asserted no codes")
	}

	var candidates []state.CandidateCode
	seen := make(map[string]bool)
	for _, rc := range result.Codes {
		codeSystem, ok := normalizeCodeSystem(rc.CodeSystem)
		if !ok {
			r.logger.Printf("[WARN] Dropping code %q with unknown system %q", rc.Code, rc.CodeSystem)
			continue
		}

		code := strings.TrimSpace(rc.Code)
		if code == "" {
			continue
		}

		key := string(codeSystem) + "|" + code
		if seen[key] {
			continue
		}
		seen[key] = true

		confidence := rc.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		rationale := strings.TrimSpace(rc.Rationale)
		if rationale == "" {
			rationale = "asserted by clinical reasoning over the full note"
		}

		candidates = append(candidates, state.CandidateCode{
			Code:                   code,
			CodeSystem:             codeSystem,
			ConfidenceContribution: confidence,
			Rationale:              rationale,
		})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no usable codes in model output")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ConfidenceContribution != candidates[j].ConfidenceContribution {
			return candidates[i].ConfidenceContribution > candidates[j].ConfidenceContribution
		}
		return candidates[i].Code < candidates[j].Code
	})

	return candidates, nil
}

func normalizeCodeSystem(raw string) (state.CodeSystem, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	switch normalized {
	case "ICD9", "ICD9CM":
		return state.CodeSystemICD9, true
	case "CPT", "HCPCS":
		return state.CodeSystemCPT, true
	}
	return "", false
}

// extractJSON pulls the JSON object out of a model response, tolerating
// markdown code fences around it.
func extractJSON(response string) string {
	cleaned := response
	if idx := strings.Index(cleaned, "```json"); idx != -1 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end != -1 {
			cleaned = cleaned[:end]
		}
	}

	startIdx := strings.Index(cleaned, "{")
	endIdx := strings.LastIndex(cleaned, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}
	return cleaned[startIdx : endIdx+1]
}
