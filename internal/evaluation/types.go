package evaluation

import (
	"encoding/json"
	"time"
)

// Kind is the protocol family a golden case exercises.
type Kind string

const (
	KindResin       Kind = "resin"
	KindCementation Kind = "cementation"
)

// ValidKinds returns all valid kind values.
func ValidKinds() []Kind {
	return []Kind{KindResin, KindCementation}
}

// IsValid checks if the kind value is one of the defined constants.
func (k Kind) IsValid() bool {
	switch k {
	case KindResin, KindCementation:
		return true
	}
	return false
}

// GoldenCase is a recorded AI completion with the outcome the safety rules
// are expected to produce from it.
type GoldenCase struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	ToothColor  string          `json:"tooth_color,omitempty"`
	CeramicType string          `json:"ceramic_type,omitempty"`
	Completion  json.RawMessage `json:"completion"`
	// ExpectedShades lists the layer shades after correction, in layer order
	ExpectedShades []string `json:"expected_shades,omitempty"`
	// ExpectedAlerts are fragments that must appear in alerts or warnings
	ExpectedAlerts []string `json:"expected_alerts,omitempty"`
	Difficulty     string   `json:"difficulty"` // easy, medium, hard
}

// CaseResult holds the evaluation outcome for a single golden case.
type CaseResult struct {
	CaseID        string        `json:"case_id"`
	Kind          Kind          `json:"kind"`
	Parsed        bool          `json:"parsed"`
	ParseError    string        `json:"parse_error,omitempty"`
	ShadeAccuracy float64       `json:"shade_accuracy"`
	AlertRecall   float64       `json:"alert_recall"`
	Substitutions int           `json:"substitutions"`
	Violations    []string      `json:"violations,omitempty"`
	Latency       time.Duration `json:"latency"`
}

// Summary holds aggregate metrics across all golden cases.
type Summary struct {
	TotalCases       int                `json:"total_cases"`
	ParsedCases      int                `json:"parsed_cases"`
	AvgShadeAccuracy float64            `json:"avg_shade_accuracy"`
	AvgAlertRecall   float64            `json:"avg_alert_recall"`
	FlaggedCases     int                `json:"flagged_cases"`
	AvgLatency       time.Duration      `json:"avg_latency"`
	ByKind           map[Kind]*KindStat `json:"by_kind"`
	Results          []CaseResult       `json:"results"`
}

// KindStat holds metrics grouped by protocol kind.
type KindStat struct {
	Count            int     `json:"count"`
	AvgShadeAccuracy float64 `json:"avg_shade_accuracy"`
	AvgAlertRecall   float64 `json:"avg_alert_recall"`
}
