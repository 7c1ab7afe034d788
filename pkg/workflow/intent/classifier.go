package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"clinical-coding-be/pkg/llm"
	"clinical-coding-be/pkg/workflow/state"
)

// Classification is the resolved query category plus the classifier's own
// account of itself. Degraded means the underlying model call failed or
// returned nothing parseable and the label fell back to general.
type Classification struct {
	Label      state.Intent `json:"label"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Degraded   bool         `json:"-"`
	Reason     string       `json:"-"`
}

// Config carries the classifier tunables.
type Config struct {
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
	}
}

// Classifier performs pure LLM-based query analysis.
// This is the first pipeline stage - no retrieval, just understanding.
type Classifier struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
	config      Config
}

func NewClassifier(llmProvider llm.LLMProvider, logger *log.Logger, config Config) *Classifier {
	return &Classifier{
		llmProvider: llmProvider,
		logger:      logger,
		config:      config,
	}
}

// Classify maps the raw clinical text to exactly one intent label. It never
// fails: any model error, timeout, or unparseable output degrades to
// IntentGeneral and the Classification records why.
func (c *Classifier) Classify(ctx context.Context, rawQuery string) Classification {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := c.buildPrompt(rawQuery)

	// Temperature 0 for deterministic labels
	response, err := c.llmProvider.Generate(callCtx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		c.logger.Printf("[ERROR] Intent classification failed: %v", err)
		return c.degraded(fmt.Sprintf("classifier call failed: %v", err))
	}

	classification, err := c.parseClassification(response)
	if err != nil {
		c.logger.Printf("[WARN] Intent parsing failed, using fallback label: %v", err)
		return c.degraded(fmt.Sprintf("classifier output unparseable: %v", err))
	}

	c.logger.Printf("[INTENT] Resolved: %s (Confidence: %.2f) - %s",
		classification.Label, classification.Confidence, truncate(classification.Reasoning, 120))

	return classification
}

func (c *Classifier) buildPrompt(rawQuery string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a clinical query analyzer for a medical billing pipeline.\n")
	prompt.WriteString("Your ONLY job is to categorize the query. You do NOT assign billing codes.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<clinical_note>\n")
	prompt.WriteString(rawQuery)
	prompt.WriteString("\n</clinical_note>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent that best matches the query:\n\n")

	prompt.WriteString("diagnostic: The note centers on a diagnosis or disease finding\n")
	prompt.WriteString("  - e.g. 'EKG shows ST elevation consistent with acute MI'\n")
	prompt.WriteString("  - e.g. 'Patient diagnosed with type 2 diabetes mellitus'\n\n")

	prompt.WriteString("procedural: The note centers on a procedure, surgery, or treatment performed\n")
	prompt.WriteString("  - e.g. 'Underwent laparoscopic appendectomy without complication'\n")
	prompt.WriteString("  - e.g. 'Administered influenza vaccination'\n\n")

	prompt.WriteString("symptom: The note describes presenting symptoms without a settled diagnosis\n")
	prompt.WriteString("  - e.g. 'Patient presents with chest pain and shortness of breath'\n\n")

	prompt.WriteString("code_lookup: The query asks about a specific billing code directly\n")
	prompt.WriteString("  - e.g. 'what does 410.9 cover', 'CPT for office visit'\n\n")

	prompt.WriteString("general: Anything else, or when no category clearly fits\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"label\": \"diagnostic|procedural|symptom|code_lookup|general\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"reasoning\": \"Brief explanation\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (c *Classifier) parseClassification(response string) (Classification, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return Classification{}, fmt.Errorf("no JSON found in response")
	}

	var classification Classification
	if err := json.Unmarshal([]byte(jsonContent), &classification); err != nil {
		return Classification{}, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	// Validate and normalize
	classification.Label = state.Intent(strings.ToLower(strings.TrimSpace(string(classification.Label))))
	if !state.ValidIntent(classification.Label) {
		return Classification{}, fmt.Errorf("unknown intent label %q", classification.Label)
	}
	if classification.Confidence < 0 || classification.Confidence > 1 {
		classification.Confidence = 0.5
	}

	return classification, nil
}

func (c *Classifier) degraded(reason string) Classification {
	return Classification{
		Label:      state.IntentGeneral,
		Confidence: 0.5,
		Reasoning:  "Fallback: classifier unavailable, defaulting to general",
		Degraded:   true,
		Reason:     reason,
	}
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
