package safety

import (
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
)

// Processor applies deterministic clinical corrections to generated protocols.
// It never fails a protocol: rules that cannot be evaluated leave the input as is.
type Processor struct {
	catalog repositories.ShadeCatalogRepository
}

// NewProcessor creates a processor backed by the given shade catalog.
// A nil catalog disables shade normalization.
func NewProcessor(catalog repositories.ShadeCatalogRepository) *Processor {
	return &Processor{catalog: catalog}
}

// Substitution records one shade replacement on a layer
type Substitution struct {
	Layer  string `json:"layer"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Report lists what the processor changed
type Report struct {
	Substitutions  []Substitution `json:"substitutions,omitempty"`
	AlertsAdded    []string       `json:"alerts_added,omitempty"`
	WarningsAdded  []string       `json:"warnings_added,omitempty"`
	StepsRewritten int            `json:"steps_rewritten,omitempty"`
}

// Changed reports whether any rule modified the protocol.
func (r Report) Changed() bool {
	return len(r.Substitutions) > 0 || len(r.AlertsAdded) > 0 || len(r.WarningsAdded) > 0 || r.StepsRewritten > 0
}

// ResinContext carries the clinical facts the resin rules depend on
type ResinContext struct {
	ToothColor string
}

// CementationContext carries the clinical facts the cementation rules depend on
type CementationContext struct {
	CeramicType string
}

func appendOnce(list []string, value string) ([]string, bool) {
	for _, existing := range list {
		if existing == value {
			return list, false
		}
	}
	return append(list, value), true
}
