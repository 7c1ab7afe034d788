package state

import (
	"time"

	"github.com/google/uuid"
)

// Intent is the query category resolved during query analysis. It is written
// exactly once and never changes for the rest of the workflow.
type Intent string

const (
	IntentDiagnostic Intent = "diagnostic"
	IntentProcedural Intent = "procedural"
	IntentSymptom    Intent = "symptom"
	IntentCodeLookup Intent = "code_lookup"
	IntentGeneral    Intent = "general"
)

// ValidIntent reports whether the label is one of the known categories.
func ValidIntent(label Intent) bool {
	switch label {
	case IntentDiagnostic, IntentProcedural, IntentSymptom, IntentCodeLookup, IntentGeneral:
		return true
	}
	return false
}

// CodeSystem identifies the billing code family a code belongs to.
type CodeSystem string

const (
	CodeSystemICD9 CodeSystem = "ICD9"
	CodeSystemCPT  CodeSystem = "CPT"
)

// Pipeline stage names, in execution order. Every stage appends exactly one
// StageEvent under its own name.
const (
	StageQueryAnalysis    = "query_analysis"
	StageRetrieval        = "retrieval"
	StageCodingExtraction = "coding_extraction"
	StageQualityCheck     = "quality_check"
	StageResponseRouting  = "response_routing"
	StageFinalization     = "finalization"
)

// StageEvent statuses.
const (
	StatusCompleted = "completed"
	StatusWarning   = "warning"
	StatusFailed    = "failed"
)

// StageEvent is one entry of the append-only stage trace.
type StageEvent struct {
	Stage  string    `json:"stage"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// AssignedCode is a billing code attached to a corpus case.
type AssignedCode struct {
	Code       string     `json:"code"`
	CodeSystem CodeSystem `json:"code_system"`
}

// RetrievedCase is one ranked hit from the case index.
type RetrievedCase struct {
	CaseID        uuid.UUID      `json:"case_id"`
	Similarity    float64        `json:"similarity"`
	AssignedCodes []AssignedCode `json:"assigned_codes"`
}

// CandidateCode is a billing code proposal with its accumulated evidence.
// Produced by coding extraction; replaced wholesale when the routing stage
// takes the reasoning fallback branch.
type CandidateCode struct {
	Code                   string      `json:"code"`
	CodeSystem             CodeSystem  `json:"code_system"`
	ConfidenceContribution float64     `json:"confidence_contribution"`
	SupportingCaseIDs      []uuid.UUID `json:"supporting_case_ids,omitempty"`
	Rationale              string      `json:"rationale"`
}

// CodingResult is the finalized output of a workflow run.
type CodingResult struct {
	Icd9Codes       []string `json:"icd9_codes"`
	CptCodes        []string `json:"cpt_codes"`
	ConfidenceScore float64  `json:"confidence_score"`
	Explanation     string   `json:"explanation"`
	UsedFallback    bool     `json:"used_fallback"`
}

// WorkflowState is the single mutable record threaded through the pipeline.
// Each field has one designated writer stage; the stage trace is the only
// field every stage touches, and each appends exactly once. The state lives
// for one request and is discarded after finalization.
type WorkflowState struct {
	RawQuery       string
	PatientContext map[string]interface{}

	Intent          Intent          // written by query analysis
	RetrievedCases  []RetrievedCase // written by retrieval
	CandidateCodes  []CandidateCode // written by extraction; replaced on fallback
	ConfidenceScore *float64        // written by quality check
	QualityPassed   bool            // written by quality check
	UsedFallback    bool            // written by response routing
	FinalResponse   *CodingResult   // written by finalization

	StageTrace []StageEvent
}

func New(rawQuery string, patientContext map[string]interface{}) *WorkflowState {
	return &WorkflowState{
		RawQuery:       rawQuery,
		PatientContext: patientContext,
	}
}

// AppendTrace records a stage outcome. Append-only; nothing ever rewrites an
// earlier entry.
func (s *WorkflowState) AppendTrace(stage, status, detail string) {
	s.StageTrace = append(s.StageTrace, StageEvent{
		Stage:  stage,
		Status: status,
		Detail: detail,
		At:     time.Now(),
	})
}

// TraceCopy returns a snapshot of the trace for error reporting, so callers
// cannot mutate the workflow's own log.
func (s *WorkflowState) TraceCopy() []StageEvent {
	out := make([]StageEvent, len(s.StageTrace))
	copy(out, s.StageTrace)
	return out
}
