package fallback

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
	chatResponse string
	chatErr      error
	lastHistory  []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.lastHistory = history
	return f.chatResponse, f.chatErr
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", fmt.Errorf("not used by the reasoner")
}

func testReasoner(provider llm.LLMProvider) *Reasoner {
	return NewReasoner(provider, log.New(io.Discard, "", 0), DefaultConfig())
}

func TestReasonParsesModelOutput(t *testing.T) {
	provider := &fakeLLM{chatResponse: "```json\n" + `{
		"codes": [
			{"code": "410.9", "code_system": "ICD9", "confidence": 0.85, "rationale": "Acute MI documented"},
			{"code": "93010", "code_system": "CPT", "confidence": 0.75, "rationale": "EKG interpretation"}
		]
	}` + "\n```"}

	candidates, err := testReasoner(provider).Reason(context.Background(), "EKG shows ST elevation", nil, nil)
	if err != nil {
		t.Fatalf("Reason returned error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(candidates))
	}
	if candidates[0].Code != "410.9" || candidates[0].CodeSystem != state.CodeSystemICD9 {
		t.Errorf("first candidate = %s (%s), want 410.9 (ICD9)", candidates[0].Code, candidates[0].CodeSystem)
	}
	if candidates[0].ConfidenceContribution != 0.85 {
		t.Errorf("first confidence = %v, want 0.85", candidates[0].ConfidenceContribution)
	}
	if candidates[1].Code != "93010" || candidates[1].CodeSystem != state.CodeSystemCPT {
		t.Errorf("second candidate = %s (%s), want 93010 (CPT)", candidates[1].Code, candidates[1].CodeSystem)
	}
}

func TestReasonSendsSystemAndUserMessages(t *testing.T) {
	provider := &fakeLLM{chatResponse: `{"codes": [{"code": "401.9", "code_system": "ICD9", "confidence": 0.9, "rationale": "HTN"}]}`}

	_, err := testReasoner(provider).Reason(
		context.Background(),
		"blood pressure 170/95",
		map[string]interface{}{"age": 61},
		[]state.RetrievedCase{{Similarity: 0.2, AssignedCodes: []state.AssignedCode{{Code: "401.9", CodeSystem: state.CodeSystemICD9}}}},
	)
	if err != nil {
		t.Fatalf("Reason returned error: %v", err)
	}

	if len(provider.lastHistory) != 2 {
		t.Fatalf("history length = %d, want system + user", len(provider.lastHistory))
	}
	if provider.lastHistory[0].Role != "system" {
		t.Errorf("first role = %s, want system", provider.lastHistory[0].Role)
	}

	userPrompt := provider.lastHistory[1].Content
	for _, want := range []string{"<clinical_note>", "blood pressure 170/95", "<patient_context>", "age: 61", "<similar_coded_cases>", "weak hints"} {
		if !strings.Contains(userPrompt, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestReasonCallFailure(t *testing.T) {
	provider := &fakeLLM{chatErr: fmt.Errorf("connection refused")}

	_, err := testReasoner(provider).Reason(context.Background(), "note", nil, nil)
	if err == nil {
		t.Fatal("Reason should error when the model call fails")
	}
	if !strings.Contains(err.Error(), "reasoning call failed") {
		t.Errorf("error = %q, want reasoning call failure wrapping", err)
	}
}

func TestReasonUnparseableOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "no JSON at all", response: "I think the code is 410.9"},
		{name: "empty code list", response: `{"codes": []}`},
		{name: "malformed JSON", response: `{"codes": [}`},
		{name: "only unknown systems", response: `{"codes": [{"code": "A01", "code_system": "SNOMED", "confidence": 0.9}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeLLM{chatResponse: tt.response}
			_, err := testReasoner(provider).Reason(context.Background(), "note", nil, nil)
			if err == nil {
				t.Fatal("Reason should error on unparseable output")
			}
			if !strings.Contains(err.Error(), "reasoning output unparseable") {
				t.Errorf("error = %q, want unparseable wrapping", err)
			}
		})
	}
}

func TestReasonNormalizesAndDeduplicates(t *testing.T) {
	provider := &fakeLLM{chatResponse: `{
		"codes": [
			{"code": " 410.9 ", "code_system": "icd-9", "confidence": 1.4, "rationale": ""},
			{"code": "410.9", "code_system": "ICD9", "confidence": 0.5, "rationale": "duplicate"},
			{"code": "93010", "code_system": "hcpcs", "confidence": -0.2, "rationale": "negative clamps"}
		]
	}`}

	candidates, err := testReasoner(provider).Reason(context.Background(), "note", nil, nil)
	if err != nil {
		t.Fatalf("Reason returned error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("candidate count = %d, want 2 after dedup", len(candidates))
	}

	first := candidates[0]
	if first.Code != "410.9" {
		t.Errorf("first code = %q, want trimmed 410.9", first.Code)
	}
	if first.ConfidenceContribution != 1.0 {
		t.Errorf("first confidence = %v, want clamped 1.0", first.ConfidenceContribution)
	}
	if first.Rationale == "" {
		t.Error("empty rationale should be replaced with a default")
	}

	second := candidates[1]
	if second.CodeSystem != state.CodeSystemCPT {
		t.Errorf("hcpcs should normalize to CPT, got %s", second.CodeSystem)
	}
	if second.ConfidenceContribution != 0 {
		t.Errorf("second confidence = %v, want clamped 0", second.ConfidenceContribution)
	}
}

func TestNormalizeCodeSystem(t *testing.T) {
	tests := []struct {
		raw    string
		want   state.CodeSystem
		wantOk bool
	}{
		{"ICD9", state.CodeSystemICD9, true},
		{"icd-9", state.CodeSystemICD9, true},
		{"ICD-9-CM", state.CodeSystemICD9, true},
		{"CPT", state.CodeSystemCPT, true},
		{" cpt ", state.CodeSystemCPT, true},
		{"HCPCS", state.CodeSystemCPT, true},
		{"SNOMED", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := normalizeCodeSystem(tt.raw)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("normalizeCodeSystem(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "bare object", response: `{"codes": []}`, want: `{"codes": []}`},
		{name: "fenced", response: "```json\n{\"codes\": []}\n```", want: `{"codes": []}`},
		{name: "prose around object", response: `Here you go: {"codes": []} hope that helps`, want: `{"codes": []}`},
		{name: "no object", response: "no json here", want: ""},
		{name: "empty", response: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.response); got != tt.want {
				t.Errorf("extractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}
