package dto

import (
	"time"

	"github.com/google/uuid"
)

type AssignedCodePayload struct {
	Code       string `json:"code" validate:"required"`
	CodeSystem string `json:"code_system" validate:"required,oneof=ICD9 CPT"`
}

type IngestCaseRequest struct {
	Narrative     string                `json:"narrative" validate:"required"`
	AssignedCodes []AssignedCodePayload `json:"assigned_codes" validate:"required,min=1,dive"`
	SourceIntent  string                `json:"source_intent" validate:"omitempty,oneof=diagnostic procedural symptom code_lookup general"`
}

type IngestCaseResponse struct {
	Id uuid.UUID `json:"id"`
}

type ShowCaseResponse struct {
	Id            uuid.UUID             `json:"id"`
	Narrative     string                `json:"narrative"`
	AssignedCodes []AssignedCodePayload `json:"assigned_codes"`
	SourceIntent  string                `json:"source_intent"`
	Position      int64                 `json:"position"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     *time.Time            `json:"updated_at"`
}

type PublishEmbedCaseMessage struct {
	CaseId uuid.UUID `json:"case_id"`
}
