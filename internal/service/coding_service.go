package service

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"clinical-coding-be/internal/config"
	"clinical-coding-be/internal/dto"
	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/events"
	"clinical-coding-be/pkg/llm"
	pktNats "clinical-coding-be/pkg/nats"
	"clinical-coding-be/pkg/workflow/executor"
	"clinical-coding-be/pkg/workflow/quality"
	"clinical-coding-be/pkg/workflow/retrieval"
	"clinical-coding-be/pkg/workflow/state"
)

// ICodingService defines the coding workflow service interface
type ICodingService interface {
	Code(ctx context.Context, request *dto.CodingRequest) (*dto.CodingResponse, error)
}

type codingService struct {
	executor       *executor.PipelineExecutor
	eventPublisher *pktNats.Publisher
	workflowLogger *log.Logger
}

// NewCodingService wires the pipeline executor with its collaborators. The
// executor gets its own file logger so the per-stage trace does not drown the
// main application log.
func NewCodingService(
	llmProvider llm.LLMProvider,
	embeddingProvider embedding.EmbeddingProvider,
	index retrieval.CaseIndex,
	cfg config.WorkflowConfig,
	eventPublisher *pktNats.Publisher,
) ICodingService {
	workflowLogger := initWorkflowLogger()

	pipelineExecutor := executor.NewPipelineExecutor(
		llmProvider,
		embeddingProvider,
		index,
		executorConfig(cfg),
		workflowLogger,
	)

	return &codingService{
		executor:       pipelineExecutor,
		eventPublisher: eventPublisher,
		workflowLogger: workflowLogger,
	}
}

func initWorkflowLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "coding_workflow.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[CODING] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// executorConfig maps deployment configuration onto the pipeline tunables,
// falling back to the pipeline defaults for anything unset.
func executorConfig(cfg config.WorkflowConfig) executor.Config {
	c := executor.DefaultConfig()

	if cfg.TopK > 0 {
		c.Retrieval.TopK = cfg.TopK
	}
	if cfg.ClassifyTimeout > 0 {
		c.Intent.Timeout = cfg.ClassifyTimeout
	}
	if cfg.EmbedTimeout > 0 {
		c.Retrieval.EmbedTimeout = cfg.EmbedTimeout
	}
	if cfg.SearchTimeout > 0 {
		c.Retrieval.SearchTimeout = cfg.SearchTimeout
	}
	if cfg.ReasonTimeout > 0 {
		c.Fallback.Timeout = cfg.ReasonTimeout
	}

	c.Quality = quality.Config{
		Thresholds: map[state.Intent]float64{
			state.IntentDiagnostic: cfg.ThresholdDiagnostic,
			state.IntentProcedural: cfg.ThresholdProcedural,
			state.IntentSymptom:    cfg.ThresholdSymptom,
			state.IntentCodeLookup: cfg.ThresholdCodeLookup,
			state.IntentGeneral:    cfg.ThresholdGeneral,
		},
		Multipliers: map[state.Intent]float64{
			state.IntentDiagnostic: cfg.MultiplierDiagnostic,
			state.IntentProcedural: cfg.MultiplierProcedural,
			state.IntentSymptom:    cfg.MultiplierSymptom,
			state.IntentCodeLookup: cfg.MultiplierCodeLookup,
			state.IntentGeneral:    cfg.MultiplierGeneral,
		},
	}

	return c
}

// Code runs the full workflow for one clinical note. Workflow errors pass
// through untranslated so the controller can map them onto status codes.
func (cs *codingService) Code(ctx context.Context, request *dto.CodingRequest) (*dto.CodingResponse, error) {
	result, err := cs.executor.Run(ctx, request.ClinicalText, request.PatientContext)
	if err != nil {
		return nil, err
	}

	if cs.eventPublisher != nil {
		evt := events.NewWorkflowFinalized(
			len(result.Icd9Codes),
			len(result.CptCodes),
			result.ConfidenceScore,
			result.UsedFallback,
		)
		if pubErr := cs.eventPublisher.Publish(ctx, evt); pubErr != nil {
			cs.workflowLogger.Printf("[WARN] Failed to publish workflow event: %v", pubErr)
		}
	}

	return &dto.CodingResponse{
		Icd9Codes:       result.Icd9Codes,
		CptCodes:        result.CptCodes,
		ConfidenceScore: result.ConfidenceScore,
		Explanation:     result.Explanation,
		UsedFallback:    result.UsedFallback,
	}, nil
}
