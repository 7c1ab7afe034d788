package main

import (
	"context"
	"errors"
	"log"
	"os"

	"clinical-coding-be/internal/config"
	"clinical-coding-be/internal/constant"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/embedding/jina"
	"clinical-coding-be/pkg/llm/factory"
	"clinical-coding-be/pkg/workflow/executor"
	"clinical-coding-be/pkg/workflow/retrieval"
	"clinical-coding-be/pkg/workflow/state"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// diagnosticCase seeds the in-memory index. Three cases are enough to light
// up both router branches: a note close to one narrative should clear the
// gate, an unrelated note should fall back.
type diagnosticCase struct {
	narrative string
	code      string
	system    state.CodeSystem
	intent    state.Intent
}

var diagnosticCorpus = []diagnosticCase{
	{
		narrative: "Patient admitted with crushing substernal chest pain radiating to the left arm. Troponin elevated. Diagnosed with acute myocardial infarction, unspecified site.",
		code:      "410.9",
		system:    state.CodeSystemICD9,
		intent:    state.IntentDiagnostic,
	},
	{
		narrative: "Follow-up visit for essential hypertension. Blood pressure remains elevated despite lisinopril. Medication dose increased.",
		code:      "401.9",
		system:    state.CodeSystemICD9,
		intent:    state.IntentDiagnostic,
	},
	{
		narrative: "Routine electrocardiogram with at least 12 leads performed, with interpretation and report. Normal sinus rhythm.",
		code:      "93000",
		system:    state.CodeSystemCPT,
		intent:    state.IntentProcedural,
	},
}

func main() {
	color.Cyan("🩺 Coding Workflow Diagnostic (in-memory corpus, live providers)\n")

	cfg := config.Load()

	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HuggingFaceAPIKey,
	)
	if err != nil {
		color.Red("Failed to initialize LLM provider: %v", err)
		os.Exit(1)
	}

	color.Yellow("\n[1] Embedding diagnostic corpus (%d cases)", len(diagnosticCorpus))
	indexed := make([]retrieval.IndexedCase, 0, len(diagnosticCorpus))
	for i, dc := range diagnosticCorpus {
		res, err := embeddingProvider.Generate(dc.narrative, constant.TaskTypeRetrievalDocument)
		if err != nil {
			color.Red("Failed to embed corpus case %d: %v", i+1, err)
			os.Exit(1)
		}
		indexed = append(indexed, retrieval.IndexedCase{
			Case: retrieval.CodedCase{
				ID:            uuid.New(),
				Narrative:     dc.narrative,
				AssignedCodes: []state.AssignedCode{{Code: dc.code, CodeSystem: dc.system}},
				SourceIntent:  dc.intent,
				Position:      int64(i + 1),
			},
			Vector: res.Embedding.Values,
		})
	}
	color.Green("Corpus ready")

	index := retrieval.NewInMemoryIndex(indexed)
	pipeline := executor.NewPipelineExecutor(
		llmProvider,
		embeddingProvider,
		index,
		executor.DefaultConfig(),
		log.New(os.Stdout, "", log.LstdFlags),
	)

	ctx := context.Background()

	color.Yellow("\n[2] Note near the corpus (retrieval branch expected)")
	runNote(ctx, pipeline,
		"62 year old male with crushing substernal chest pain and elevated troponin, consistent with acute MI.",
		map[string]interface{}{"age": 62, "sex": "male"},
	)

	color.Yellow("\n[3] Note far from the corpus (fallback branch expected)")
	runNote(ctx, pipeline,
		"Excision of 2cm benign skin lesion on the left forearm under local anesthesia.",
		nil,
	)

	color.Cyan("\nDiagnostic complete")
}

func runNote(ctx context.Context, pipeline *executor.PipelineExecutor, note string, patientContext map[string]interface{}) {
	result, err := pipeline.Run(ctx, note, patientContext)
	if err != nil {
		var wfErr *state.WorkflowError
		if errors.As(err, &wfErr) {
			color.Red("Workflow aborted at %s (%s): %v", wfErr.Stage, wfErr.Kind, wfErr.Err)
			for _, evt := range wfErr.Trace {
				color.Red("  trace: %-20s %s %s", evt.Stage, evt.Status, evt.Detail)
			}
		} else {
			color.Red("Workflow failed: %v", err)
		}
		os.Exit(1)
	}

	color.Green("ICD-9: %v", result.Icd9Codes)
	color.Green("CPT:   %v", result.CptCodes)
	color.Green("Confidence: %.4f  Fallback: %t", result.ConfidenceScore, result.UsedFallback)
	color.White("Explanation:\n%s", result.Explanation)
}
