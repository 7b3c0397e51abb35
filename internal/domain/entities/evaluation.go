package entities

import (
	"strings"
	"time"
)

// EvaluationStatus represents the lifecycle state of an evaluation
type EvaluationStatus string

const (
	EvaluationStatusAnalyzing EvaluationStatus = "analyzing"
	EvaluationStatusDraft     EvaluationStatus = "draft"
	EvaluationStatusCompleted EvaluationStatus = "completed"
	EvaluationStatusError     EvaluationStatus = "error"
)

// IsTerminal reports whether no further automatic transition is expected.
func (s EvaluationStatus) IsTerminal() bool {
	return s == EvaluationStatusCompleted || s == EvaluationStatusError
}

// IsRetryable reports whether the user may re-run dispatch for this status.
func (s EvaluationStatus) IsRetryable() bool {
	return s == EvaluationStatusDraft || s == EvaluationStatusError
}

// TreatmentType is the treatment assigned to a tooth. Values outside the known
// set are kept verbatim and routed as unrecognized.
type TreatmentType string

const (
	TreatmentResin         TreatmentType = "resina"
	TreatmentPorcelain     TreatmentType = "porcelana"
	TreatmentCrown         TreatmentType = "coroa"
	TreatmentImplant       TreatmentType = "implante"
	TreatmentEndodontic    TreatmentType = "endodontia"
	TreatmentReferral      TreatmentType = "encaminhamento"
	TreatmentGingivoplasty TreatmentType = "gengivoplastia"
	TreatmentRootCoverage  TreatmentType = "recobrimento_radicular"
)

// DispatchRoute is the closed set of dispatch paths a treatment type maps to.
type DispatchRoute int

const (
	RouteUnrecognized DispatchRoute = iota
	RouteResin
	RouteCementation
	RouteGeneric
)

func (r DispatchRoute) String() string {
	switch r {
	case RouteResin:
		return "resin"
	case RouteCementation:
		return "cementation"
	case RouteGeneric:
		return "generic"
	case RouteUnrecognized:
		return "unrecognized"
	}
	return "unknown"
}

var treatmentAliases = map[string]TreatmentType{
	"resina":                 TreatmentResin,
	"resin":                  TreatmentResin,
	"porcelana":              TreatmentPorcelain,
	"ceramic-veneer":         TreatmentPorcelain,
	"coroa":                  TreatmentCrown,
	"crown":                  TreatmentCrown,
	"implante":               TreatmentImplant,
	"implant":                TreatmentImplant,
	"endodontia":             TreatmentEndodontic,
	"endodontic":             TreatmentEndodontic,
	"encaminhamento":         TreatmentReferral,
	"referral":               TreatmentReferral,
	"gengivoplastia":         TreatmentGingivoplasty,
	"gingivoplasty":          TreatmentGingivoplasty,
	"recobrimento_radicular": TreatmentRootCoverage,
	"recobrimento-radicular": TreatmentRootCoverage,
	"root-coverage":          TreatmentRootCoverage,
}

// ParseTreatmentType canonicalizes known spellings and keeps anything else as-is.
func ParseTreatmentType(value string) TreatmentType {
	key := strings.ToLower(strings.TrimSpace(value))
	if t, ok := treatmentAliases[key]; ok {
		return t
	}
	return TreatmentType(strings.TrimSpace(value))
}

// Route maps the treatment type to its dispatch path.
func (t TreatmentType) Route() DispatchRoute {
	switch t {
	case TreatmentResin:
		return RouteResin
	case TreatmentPorcelain:
		return RouteCementation
	case TreatmentCrown, TreatmentImplant, TreatmentEndodontic, TreatmentReferral,
		TreatmentGingivoplasty, TreatmentRootCoverage:
		return RouteGeneric
	}
	return RouteUnrecognized
}

// UsesAI reports whether dispatch for this treatment calls the AI provider.
func (t TreatmentType) UsesAI() bool {
	r := t.Route()
	return r == RouteResin || r == RouteCementation
}

// ProtocolField is the persisted column that holds a protocol of a given route
type ProtocolField string

const (
	ProtocolFieldStratification ProtocolField = "stratification_protocol"
	ProtocolFieldCementation    ProtocolField = "cementation_protocol"
	ProtocolFieldGeneric        ProtocolField = "generic_protocol"
)

// ProtocolField returns the single protocol column the treatment type selects.
func (t TreatmentType) ProtocolField() ProtocolField {
	switch t.Route() {
	case RouteResin:
		return ProtocolFieldStratification
	case RouteCementation:
		return ProtocolFieldCementation
	default:
		return ProtocolFieldGeneric
	}
}

// ClinicalData holds the clinical descriptors shared by evaluations and pending teeth.
type ClinicalData struct {
	PatientAge           string `json:"patient_age,omitempty" db:"patient_age"`
	Region               string `json:"region,omitempty" db:"region"`
	CavityClass          string `json:"cavity_class,omitempty" db:"cavity_class"`
	RestorationSize      string `json:"restoration_size,omitempty" db:"restoration_size"`
	Substrate            string `json:"substrate,omitempty" db:"substrate"`
	SubstrateCondition   string `json:"substrate_condition,omitempty" db:"substrate_condition"`
	EnamelCondition      string `json:"enamel_condition,omitempty" db:"enamel_condition"`
	Depth                string `json:"depth,omitempty" db:"depth"`
	AestheticLevel       string `json:"aesthetic_level,omitempty" db:"aesthetic_level"`
	ToothColor           string `json:"tooth_color,omitempty" db:"tooth_color"`
	StratificationNeeded bool   `json:"stratification_needed" db:"stratification_needed"`
	Bruxism              bool   `json:"bruxism" db:"bruxism"`
	LongevityExpectation string `json:"longevity_expectation,omitempty" db:"longevity_expectation"`
	Budget               string `json:"budget,omitempty" db:"budget"`
	ClinicalNotes        string `json:"clinical_notes,omitempty" db:"clinical_notes"`
	AestheticGoals       string `json:"aesthetic_goals,omitempty" db:"aesthetic_goals"`
	CeramicType          string `json:"ceramic_type,omitempty" db:"ceramic_type"`
}

// Evaluation is one clinical assessment of a single tooth within a session
type Evaluation struct {
	ID                 string           `json:"id" db:"id"`
	UserID             string           `json:"user_id" db:"user_id"`
	PatientID          string           `json:"patient_id,omitempty" db:"patient_id"`
	SessionID          string           `json:"session_id" db:"session_id"`
	Tooth              string           `json:"tooth" db:"tooth"`
	TreatmentType      TreatmentType    `json:"treatment_type" db:"treatment_type"`
	AIIndicationReason string           `json:"ai_indication_reason,omitempty" db:"ai_indication_reason"`
	Status             EvaluationStatus `json:"status" db:"status"`
	ClinicalData

	StratificationProtocol *ResinProtocol       `json:"stratification_protocol,omitempty" db:"stratification_protocol"`
	CementationProtocol    *CementationProtocol `json:"cementation_protocol,omitempty" db:"cementation_protocol"`
	GenericProtocol        *GenericProtocol     `json:"generic_protocol,omitempty" db:"generic_protocol"`
	ChecklistProgress      ChecklistProgress    `json:"checklist_progress" db:"checklist_progress"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasProtocol reports whether the protocol column selected by the treatment type is populated.
func (e *Evaluation) HasProtocol() bool {
	switch e.TreatmentType.ProtocolField() {
	case ProtocolFieldStratification:
		return e.StratificationProtocol != nil
	case ProtocolFieldCementation:
		return e.CementationProtocol != nil
	default:
		return e.GenericProtocol != nil
	}
}

// Checklist returns the checklist of whichever protocol is populated.
func (e *Evaluation) Checklist() []string {
	switch {
	case e.StratificationProtocol != nil:
		return e.StratificationProtocol.Checklist
	case e.CementationProtocol != nil:
		return e.CementationProtocol.Checklist
	case e.GenericProtocol != nil:
		return e.GenericProtocol.Checklist
	}
	return nil
}

// ChecklistProgress is the ordered list of completed checklist step indices
type ChecklistProgress []int

// Complete reports whether every step index in [0, checklistLen) is done.
// Duplicates count once; indices past the checklist are ignored, so progress
// recorded against a longer checklist still completes a shorter one.
func (p ChecklistProgress) Complete(checklistLen int) bool {
	done := make(map[int]struct{}, len(p))
	for _, i := range p {
		if i >= 0 && i < checklistLen {
			done[i] = struct{}{}
		}
	}
	return len(done) >= checklistLen
}

// EvaluationPatch holds the mutable fields of an evaluation. Nil fields are left untouched.
type EvaluationPatch struct {
	Status                 *EvaluationStatus
	Budget                 *string
	AestheticLevel         *string
	StratificationProtocol *ResinProtocol
	CementationProtocol    *CementationProtocol
	GenericProtocol        *GenericProtocol
	ChecklistProgress      *ChecklistProgress
}

// PendingTooth is the source record for a tooth awaiting evaluation in a session
type PendingTooth struct {
	SessionID          string        `json:"session_id" db:"session_id"`
	UserID             string        `json:"user_id" db:"user_id"`
	Tooth              string        `json:"tooth" db:"tooth"`
	TreatmentType      TreatmentType `json:"treatment_type" db:"treatment_type"`
	AIIndicationReason string        `json:"ai_indication_reason,omitempty" db:"ai_indication_reason"`
	ClinicalData
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
