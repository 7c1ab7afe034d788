package dto

type CodingRequest struct {
	ClinicalText   string                 `json:"clinical_text" validate:"required"`
	PatientContext map[string]interface{} `json:"patient_context"`
}

type CodingResponse struct {
	Icd9Codes       []string `json:"icd9_codes"`
	CptCodes        []string `json:"cpt_codes"`
	ConfidenceScore float64  `json:"confidence_score"`
	Explanation     string   `json:"explanation"`
	UsedFallback    bool     `json:"used_fallback"`
}
