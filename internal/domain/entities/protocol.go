package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Confidence is the self-reported confidence of a generated protocol
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts English and Portuguese spellings and defaults to medium.
func ParseConfidence(value string) Confidence {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high", "alta", "alto":
		return ConfidenceHigh
	case "low", "baixa", "baixo":
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// StratificationLayer is one layer of a resin build-up
type StratificationLayer struct {
	Order      int    `json:"order"`
	Name       string `json:"name"`
	ResinBrand string `json:"resin_brand"`
	Shade      string `json:"shade"`
	Thickness  string `json:"thickness"`
	Purpose    string `json:"purpose"`
	Technique  string `json:"technique"`
}

// ProtocolAlternative is the single alternative approach offered with a resin protocol
type ProtocolAlternative struct {
	Resin     string `json:"resin"`
	Shade     string `json:"shade"`
	Technique string `json:"technique"`
	Tradeoff  string `json:"tradeoff"`
}

// FinishingStep is one finishing/polishing step
type FinishingStep struct {
	Order int    `json:"order"`
	Tool  string `json:"tool"`
	Grit  string `json:"grit,omitempty"`
	Speed string `json:"speed,omitempty"`
	Time  string `json:"time,omitempty"`
	Tip   string `json:"tip,omitempty"`
}

// ResinProtocol is the layer-by-layer composite stratification plan
type ResinProtocol struct {
	Layers      []StratificationLayer `json:"layers"`
	Alternative ProtocolAlternative   `json:"alternative"`
	Finishing   []FinishingStep       `json:"finishing,omitempty"`
	Checklist   []string              `json:"checklist"`
	Alerts      []string              `json:"alerts"`
	Warnings    []string              `json:"warnings"`
	Confidence  Confidence            `json:"confidence"`
}

// CementationStep is one step of a cementation sequence
type CementationStep struct {
	Order    int    `json:"order"`
	Step     string `json:"step"`
	Material string `json:"material"`
	Duration string `json:"duration,omitempty"`
}

// CementationSpec describes the luting cement
type CementationSpec struct {
	CementType  string `json:"cement_type"`
	CementBrand string `json:"cement_brand"`
	Shade       string `json:"shade"`
	CureTime    string `json:"light_curing_time"`
	Technique   string `json:"technique"`
}

// CementationProtocol is the step sequence for bonding a ceramic restoration
type CementationProtocol struct {
	Preparation      []CementationStep `json:"preparation_steps"`
	CeramicTreatment []CementationStep `json:"ceramic_treatment"`
	ToothTreatment   []CementationStep `json:"tooth_treatment"`
	Cementation      CementationSpec   `json:"cementation"`
	Finishing        []CementationStep `json:"finishing"`
	PostOperative    []string          `json:"post_operative"`
	Checklist        []string          `json:"checklist"`
	Alerts           []string          `json:"alerts"`
	Warnings         []string          `json:"warnings"`
	Confidence       Confidence        `json:"confidence"`
}

// GenericProtocol is a template-based plan for treatments that need no shade selection
type GenericProtocol struct {
	TreatmentType      TreatmentType `json:"treatment_type"`
	Tooth              string        `json:"tooth"`
	Summary            string        `json:"summary"`
	Checklist          []string      `json:"checklist"`
	Alerts             []string      `json:"alerts"`
	Recommendations    []string      `json:"recommendations"`
	AIIndicationReason string        `json:"ai_reason,omitempty"`
}

// Value implements driver.Valuer for jsonb storage
func (p ResinProtocol) Value() (driver.Value, error) { return json.Marshal(p) }

// Scan implements sql.Scanner for jsonb storage
func (p *ResinProtocol) Scan(src interface{}) error { return scanJSON(src, p) }

// Value implements driver.Valuer for jsonb storage
func (p CementationProtocol) Value() (driver.Value, error) { return json.Marshal(p) }

// Scan implements sql.Scanner for jsonb storage
func (p *CementationProtocol) Scan(src interface{}) error { return scanJSON(src, p) }

// Value implements driver.Valuer for jsonb storage
func (p GenericProtocol) Value() (driver.Value, error) { return json.Marshal(p) }

// Scan implements sql.Scanner for jsonb storage
func (p *GenericProtocol) Scan(src interface{}) error { return scanJSON(src, p) }

// Value implements driver.Valuer for jsonb storage
func (p ChecklistProgress) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(p))
}

// Scan implements sql.Scanner for jsonb storage
func (p *ChecklistProgress) Scan(src interface{}) error { return scanJSON(src, p) }

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
