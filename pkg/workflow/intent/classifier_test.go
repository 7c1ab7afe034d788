package intent

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"clinical-coding-be/pkg/llm"
	"clinical-coding-be/pkg/workflow/state"
)

type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", fmt.Errorf("not used by the classifier")
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func testClassifier(provider llm.LLMProvider) *Classifier {
	return NewClassifier(provider, log.New(io.Discard, "", 0), DefaultConfig())
}

func TestClassifyResolvesLabels(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     state.Intent
	}{
		{
			name:     "diagnostic",
			response: `{"label": "diagnostic", "confidence": 0.95, "reasoning": "settled MI diagnosis"}`,
			want:     state.IntentDiagnostic,
		},
		{
			name:     "procedural",
			response: `{"label": "procedural", "confidence": 0.9, "reasoning": "appendectomy performed"}`,
			want:     state.IntentProcedural,
		},
		{
			name:     "uppercase label normalized",
			response: `{"label": "SYMPTOM", "confidence": 0.8, "reasoning": "chest pain, no diagnosis"}`,
			want:     state.IntentSymptom,
		},
		{
			name:     "label with whitespace",
			response: `{"label": " code_lookup ", "confidence": 0.85, "reasoning": "asks about 410.9"}`,
			want:     state.IntentCodeLookup,
		},
		{
			name:     "fenced response",
			response: "Sure:\n```json\n{\"label\": \"general\", \"confidence\": 0.6, \"reasoning\": \"misc\"}\n```",
			want:     state.IntentGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testClassifier(&fakeLLM{response: tt.response}).Classify(context.Background(), "note text")

			if got.Label != tt.want {
				t.Errorf("Label = %s, want %s", got.Label, tt.want)
			}
			if got.Degraded {
				t.Error("Degraded = true, want false for a parseable response")
			}
		})
	}
}

func TestClassifyDegradesOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeLLM
	}{
		{name: "provider error", provider: &fakeLLM{err: fmt.Errorf("model down")}},
		{name: "no JSON", provider: &fakeLLM{response: "this note is about a heart attack"}},
		{name: "unknown label", provider: &fakeLLM{response: `{"label": "billing", "confidence": 0.9}`}},
		{name: "malformed JSON", provider: &fakeLLM{response: `{"label": "diagnostic"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testClassifier(tt.provider).Classify(context.Background(), "note text")

			if got.Label != state.IntentGeneral {
				t.Errorf("Label = %s, want degraded default %s", got.Label, state.IntentGeneral)
			}
			if !got.Degraded {
				t.Error("Degraded = false, want true")
			}
			if got.Reason == "" {
				t.Error("Reason should record why classification degraded")
			}
		})
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "above one", response: `{"label": "diagnostic", "confidence": 1.7}`},
		{name: "negative", response: `{"label": "diagnostic", "confidence": -0.4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testClassifier(&fakeLLM{response: tt.response}).Classify(context.Background(), "note")

			if got.Confidence != 0.5 {
				t.Errorf("Confidence = %v, want 0.5 for out-of-range values", got.Confidence)
			}
			if got.Label != state.IntentDiagnostic {
				t.Errorf("Label = %s, want diagnostic despite odd confidence", got.Label)
			}
		})
	}
}

func TestClassifyPromptCarriesNoteAndDefinitions(t *testing.T) {
	provider := &fakeLLM{response: `{"label": "general", "confidence": 0.5}`}

	testClassifier(provider).Classify(context.Background(), "patient presents with dyspnea")

	for _, want := range []string{"<clinical_note>", "patient presents with dyspnea", "<intent_definitions>", "code_lookup", "<output_format>"} {
		if !strings.Contains(provider.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
