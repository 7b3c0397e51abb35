package validation

import (
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// Result is the outcome of validating one payload
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func passed[T any](data *T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error()}
}

// EvaluationRequest is the payload of a resin recommendation
type EvaluationRequest struct {
	EvaluationID         string   `json:"evaluationId" validate:"required,uuid_rfc"`
	UserID               string   `json:"userId" validate:"required,uuid_rfc"`
	PatientID            string   `json:"patientId,omitempty" validate:"omitempty,uuid_rfc"`
	SessionID            string   `json:"sessionId,omitempty" validate:"omitempty,uuid_rfc"`
	PatientAge           string   `json:"patientAge" validate:"required,patient_age"`
	Tooth                string   `json:"tooth" validate:"required,tooth"`
	Region               string   `json:"region" validate:"required,region"`
	CavityClass          string   `json:"cavityClass" validate:"required,cavity_class"`
	RestorationSize      string   `json:"restorationSize" validate:"required,restoration_size"`
	Substrate            string   `json:"substrate" validate:"required,substrate"`
	SubstrateCondition   string   `json:"substrateCondition,omitempty" validate:"omitempty,max=200"`
	EnamelCondition      string   `json:"enamelCondition,omitempty" validate:"omitempty,max=200"`
	Depth                string   `json:"depth,omitempty" validate:"omitempty,max=200"`
	AestheticLevel       string   `json:"aestheticLevel" validate:"required,aesthetic_level"`
	ToothColor           string   `json:"toothColor" validate:"required,vita_shade"`
	StratificationNeeded *bool    `json:"stratificationNeeded" validate:"required"`
	Bruxism              *bool    `json:"bruxism" validate:"required"`
	LongevityExpectation string   `json:"longevityExpectation" validate:"required,longevity"`
	Budget               string   `json:"budget" validate:"required,budget"`
	ClinicalNotes        string   `json:"clinicalNotes,omitempty" validate:"omitempty,max=2000"`
	AestheticGoals       string   `json:"aestheticGoals,omitempty" validate:"omitempty,max=1000"`
	PhotoPaths           []string `json:"photoPaths,omitempty" validate:"omitempty,max=10,dive,max=500"`
}

// ClinicalData converts the request to the persisted clinical descriptors.
func (r *EvaluationRequest) ClinicalData() entities.ClinicalData {
	return entities.ClinicalData{
		PatientAge:           r.PatientAge,
		Region:               r.Region,
		CavityClass:          r.CavityClass,
		RestorationSize:      r.RestorationSize,
		Substrate:            r.Substrate,
		SubstrateCondition:   r.SubstrateCondition,
		EnamelCondition:      r.EnamelCondition,
		Depth:                r.Depth,
		AestheticLevel:       r.AestheticLevel,
		ToothColor:           r.ToothColor,
		StratificationNeeded: boolValue(r.StratificationNeeded),
		Bruxism:              boolValue(r.Bruxism),
		LongevityExpectation: r.LongevityExpectation,
		Budget:               r.Budget,
		ClinicalNotes:        r.ClinicalNotes,
		AestheticGoals:       r.AestheticGoals,
	}
}

// CementationRequest is the payload of a cementation recommendation
type CementationRequest struct {
	EvaluationID       string   `json:"evaluationId" validate:"required,uuid_rfc"`
	UserID             string   `json:"userId" validate:"required,uuid_rfc"`
	PatientID          string   `json:"patientId,omitempty" validate:"omitempty,uuid_rfc"`
	SessionID          string   `json:"sessionId,omitempty" validate:"omitempty,uuid_rfc"`
	Teeth              []string `json:"teeth" validate:"required,min=1,max=32,dive,tooth"`
	CeramicType        string   `json:"ceramicType" validate:"required,ceramic_type"`
	ToothColor         string   `json:"toothColor" validate:"required,vita_shade"`
	Substrate          string   `json:"substrate,omitempty" validate:"omitempty,substrate"`
	SubstrateCondition string   `json:"substrateCondition,omitempty" validate:"omitempty,max=200"`
	EnamelCondition    string   `json:"enamelCondition,omitempty" validate:"omitempty,max=200"`
	Bruxism            *bool    `json:"bruxism,omitempty"`
	ClinicalNotes      string   `json:"clinicalNotes,omitempty" validate:"omitempty,max=2000"`
	AestheticGoals     string   `json:"aestheticGoals,omitempty" validate:"omitempty,max=1000"`
	PhotoPaths         []string `json:"photoPaths,omitempty" validate:"omitempty,max=10,dive,max=500"`
}

// ToothSelection assigns a treatment type to one selected tooth
type ToothSelection struct {
	Tooth         string `json:"tooth" validate:"required,tooth"`
	TreatmentType string `json:"treatmentType" validate:"required,max=64"`
}

// SubmitTeethRequest is the payload of a multi-tooth submit
type SubmitTeethRequest struct {
	PatientID string           `json:"patientId,omitempty" validate:"omitempty,uuid_rfc"`
	Teeth     []ToothSelection `json:"teeth" validate:"required,min=1,max=32,unique=Tooth,dive"`
}

// RegenerateRequest is the payload of a session budget regeneration
type RegenerateRequest struct {
	Budget string `json:"budget" validate:"required,oneof=padrão premium"`
}

// ChecklistProgressRequest stores checklist step indices
type ChecklistProgressRequest struct {
	Progress []int `json:"progress" validate:"required,max=200,dive,gte=0"`
}

// ValidateEvaluationData validates a resin recommendation payload.
func ValidateEvaluationData(raw []byte) Result[EvaluationRequest] {
	var req EvaluationRequest
	if err := decodeAndValidate(raw, &req); err != nil {
		return fail[EvaluationRequest](err)
	}
	return passed(&req)
}

// ValidateCementationData validates a cementation payload. On success the
// ceramic type is replaced with its canonical key.
func ValidateCementationData(raw []byte) Result[CementationRequest] {
	var req CementationRequest
	if err := decodeAndValidate(raw, &req); err != nil {
		return fail[CementationRequest](err)
	}
	req.CeramicType, _ = NormalizeCeramicType(req.CeramicType)
	return passed(&req)
}

// ValidateSubmitTeeth validates a multi-tooth submit payload. Treatment types
// are canonicalized; unknown types are kept and routed as unrecognized later.
func ValidateSubmitTeeth(raw []byte) Result[SubmitTeethRequest] {
	var req SubmitTeethRequest
	if err := decodeAndValidate(raw, &req); err != nil {
		return fail[SubmitTeethRequest](err)
	}
	for i := range req.Teeth {
		req.Teeth[i].TreatmentType = string(entities.ParseTreatmentType(req.Teeth[i].TreatmentType))
	}
	return passed(&req)
}

// ValidateRegenerateBudget validates a budget regeneration payload.
func ValidateRegenerateBudget(raw []byte) Result[RegenerateRequest] {
	var req RegenerateRequest
	if err := decodeAndValidate(raw, &req); err != nil {
		return fail[RegenerateRequest](err)
	}
	return passed(&req)
}

// ValidateChecklistProgress validates a checklist progress payload.
func ValidateChecklistProgress(raw []byte) Result[ChecklistProgressRequest] {
	var req ChecklistProgressRequest
	if err := decodeAndValidate(raw, &req); err != nil {
		return fail[ChecklistProgressRequest](err)
	}
	return passed(&req)
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
