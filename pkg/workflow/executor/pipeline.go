package executor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clinical-coding-be/pkg/embedding"
	"clinical-coding-be/pkg/llm"
	"clinical-coding-be/pkg/workflow/extraction"
	"clinical-coding-be/pkg/workflow/fallback"
	"clinical-coding-be/pkg/workflow/finalize"
	"clinical-coding-be/pkg/workflow/intent"
	"clinical-coding-be/pkg/workflow/quality"
	"clinical-coding-be/pkg/workflow/retrieval"
	"clinical-coding-be/pkg/workflow/router"
	"clinical-coding-be/pkg/workflow/state"
)

// Config aggregates the per-stage tunables.
type Config struct {
	Intent    intent.Config
	Retrieval retrieval.Config
	Quality   quality.Config
	Fallback  fallback.Config
}

// DefaultConfig returns the stage defaults.
func DefaultConfig() Config {
	return Config{
		Intent:    intent.DefaultConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Quality:   quality.DefaultConfig(),
		Fallback:  fallback.DefaultConfig(),
	}
}

// PipelineExecutor orchestrates the six-stage coding workflow
// Stage 1: Query Analysis → Stage 2: Retrieval → Stage 3: Coding Extraction →
// Stage 4: Quality Check → Stage 5: Response Routing → Stage 6: Finalization
//
// The executor is the only writer of the WorkflowState: stages return values
// and the executor records them, so every field keeps its single designated
// writer and every stage appends exactly one trace event.
type PipelineExecutor struct {
	classifier *intent.Classifier
	retriever  *retrieval.Retriever
	extractor  *extraction.Extractor
	gate       *quality.Gate
	router     *router.Router
	finalizer  *finalize.Finalizer
	topK       int
	logger     *log.Logger
}

// NewPipelineExecutor wires the six stage components around shared providers.
func NewPipelineExecutor(
	llmProvider llm.LLMProvider,
	embeddingProvider embedding.EmbeddingProvider,
	index retrieval.CaseIndex,
	config Config,
	logger *log.Logger,
) *PipelineExecutor {
	reasoner := fallback.NewReasoner(llmProvider, logger, config.Fallback)

	return &PipelineExecutor{
		classifier: intent.NewClassifier(llmProvider, logger, config.Intent),
		retriever:  retrieval.NewRetriever(embeddingProvider, index, logger, config.Retrieval),
		extractor:  extraction.NewExtractor(logger),
		gate:       quality.NewGate(config.Quality, logger),
		router:     router.NewRouter(reasoner, logger),
		finalizer:  finalize.NewFinalizer(logger),
		topK:       config.Retrieval.TopK,
		logger:     logger,
	}
}

// Run executes the complete workflow for one clinical note. It returns either
// a finalized CodingResult or a *state.WorkflowError carrying the stage trace
// accumulated up to the failure, never both and never a partial result.
func (p *PipelineExecutor) Run(
	ctx context.Context,
	rawQuery string,
	patientContext map[string]interface{},
) (*state.CodingResult, error) {

	st := state.New(rawQuery, patientContext)

	p.logger.Printf("[PIPELINE] Starting coding workflow for note: %s", truncate(rawQuery, 50))

	// ═══════════════════════════════════════════════════════════════
	// STAGE 1: QUERY ANALYSIS (Pure LLM - No Retrieval)
	// ═══════════════════════════════════════════════════════════════
	classification := p.classifier.Classify(ctx, st.RawQuery)

	st.Intent = classification.Label
	if classification.Degraded {
		st.AppendTrace(state.StageQueryAnalysis, state.StatusWarning,
			fmt.Sprintf("classification degraded (%s), defaulted to %s", classification.Reason, classification.Label))
	} else {
		st.AppendTrace(state.StageQueryAnalysis, state.StatusCompleted,
			fmt.Sprintf("intent=%s confidence=%.2f", classification.Label, classification.Confidence))
	}

	p.logger.Printf("[STAGE 1] Intent: %s (degraded=%t)", st.Intent, classification.Degraded)

	// ═══════════════════════════════════════════════════════════════
	// STAGE 2: RETRIEVAL (Semantic Search Over Coded Corpus)
	// ═══════════════════════════════════════════════════════════════
	retrieved, err := p.retriever.Retrieve(ctx, st.RawQuery, st.Intent)
	if err != nil {
		return nil, p.abort(st, state.StageRetrieval, retrievalErrorKind(err), err)
	}

	st.RetrievedCases = retrieved.Cases
	if retrieved.CorpusEmpty {
		st.AppendTrace(state.StageRetrieval, state.StatusWarning,
			"coded corpus is empty, reasoning fallback will be forced")
	} else {
		st.AppendTrace(state.StageRetrieval, state.StatusCompleted,
			fmt.Sprintf("retrieved %d similar cases", len(st.RetrievedCases)))
	}

	p.logger.Printf("[STAGE 2] Retrieved %d cases (corpus empty=%t)", len(st.RetrievedCases), retrieved.CorpusEmpty)

	// ═══════════════════════════════════════════════════════════════
	// STAGE 3: CODING EXTRACTION (Deterministic Aggregation)
	// ═══════════════════════════════════════════════════════════════
	st.CandidateCodes = p.extractor.Extract(st.RetrievedCases, p.topK)
	st.AppendTrace(state.StageCodingExtraction, state.StatusCompleted,
		fmt.Sprintf("extracted %d candidate codes", len(st.CandidateCodes)))

	p.logger.Printf("[STAGE 3] Extracted %d candidate codes", len(st.CandidateCodes))

	// ═══════════════════════════════════════════════════════════════
	// STAGE 4: QUALITY CHECK (Confidence Gate)
	// ═══════════════════════════════════════════════════════════════
	verdict := p.gate.Evaluate(st.CandidateCodes, st.Intent)

	score := verdict.Score
	st.ConfidenceScore = &score
	st.QualityPassed = verdict.Passed
	st.AppendTrace(state.StageQualityCheck, state.StatusCompleted,
		fmt.Sprintf("score=%.4f threshold=%.2f passed=%t", verdict.Score, verdict.Threshold, verdict.Passed))

	p.logger.Printf("[STAGE 4] Quality verdict: score=%.4f threshold=%.2f passed=%t",
		verdict.Score, verdict.Threshold, verdict.Passed)

	// ═══════════════════════════════════════════════════════════════
	// STAGE 5: RESPONSE ROUTING (Accept vs Reasoning Fallback)
	// ═══════════════════════════════════════════════════════════════
	decision, err := p.router.Route(ctx, st.RawQuery, st.PatientContext, st.RetrievedCases, st.CandidateCodes, verdict)
	if err != nil {
		return nil, p.abort(st, state.StageResponseRouting, state.KindReasoningUnavailable, err)
	}

	st.UsedFallback = decision.UsedFallback
	st.CandidateCodes = decision.Candidates
	st.AppendTrace(state.StageResponseRouting, state.StatusCompleted,
		fmt.Sprintf("branch=%s candidates=%d", decision.Branch, len(decision.Candidates)))

	p.logger.Printf("[STAGE 5] Routed to %s with %d candidates", decision.Branch, len(decision.Candidates))

	// ═══════════════════════════════════════════════════════════════
	// STAGE 6: FINALIZATION (Partition + Explain)
	// ═══════════════════════════════════════════════════════════════
	st.FinalResponse = p.finalizer.Finalize(st.CandidateCodes, *st.ConfidenceScore, st.UsedFallback)
	st.AppendTrace(state.StageFinalization, state.StatusCompleted,
		fmt.Sprintf("icd9=%d cpt=%d fallback=%t",
			len(st.FinalResponse.Icd9Codes), len(st.FinalResponse.CptCodes), st.FinalResponse.UsedFallback))

	p.logger.Printf("[PIPELINE] Workflow complete: %d ICD-9 + %d CPT codes, confidence=%.4f, fallback=%t",
		len(st.FinalResponse.Icd9Codes), len(st.FinalResponse.CptCodes),
		st.FinalResponse.ConfidenceScore, st.FinalResponse.UsedFallback)

	return st.FinalResponse, nil
}

// abort records the failing stage's single trace event and packages the
// typed workflow error with a snapshot of the trace so far.
func (p *PipelineExecutor) abort(st *state.WorkflowState, stage string, kind state.ErrorKind, err error) error {
	st.AppendTrace(stage, state.StatusFailed, err.Error())
	p.logger.Printf("[ERROR] Workflow aborted at %s (%s): %v", stage, kind, err)
	return state.NewWorkflowError(kind, stage, st.TraceCopy(), err)
}

// retrievalErrorKind maps retrieval failures onto the workflow taxonomy. An
// embedding failure of any flavor, deadline included, means no retrieval
// path exists at all. Index failures split on whether a deadline was hit.
func retrievalErrorKind(err error) state.ErrorKind {
	var embedErr *retrieval.EmbedError
	if errors.As(err, &embedErr) {
		return state.KindEmbeddingUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return state.KindWorkflowTimeout
	}
	return state.KindRetrievalFailed
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
