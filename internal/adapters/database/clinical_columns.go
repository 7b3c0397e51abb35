package database

import (
	"database/sql/driver"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

var clinicalColumns = []interface{}{
	"patient_age", "region", "cavity_class", "restoration_size", "substrate",
	"substrate_condition", "enamel_condition", "depth", "aesthetic_level", "tooth_color",
	"stratification_needed", "bruxism", "longevity_expectation", "budget",
	"clinical_notes", "aesthetic_goals", "ceramic_type",
}

func clinicalRecord(cd entities.ClinicalData) goqu.Record {
	return goqu.Record{
		"patient_age":           cd.PatientAge,
		"region":                cd.Region,
		"cavity_class":          cd.CavityClass,
		"restoration_size":      cd.RestorationSize,
		"substrate":             cd.Substrate,
		"substrate_condition":   cd.SubstrateCondition,
		"enamel_condition":      cd.EnamelCondition,
		"depth":                 cd.Depth,
		"aesthetic_level":       cd.AestheticLevel,
		"tooth_color":           cd.ToothColor,
		"stratification_needed": cd.StratificationNeeded,
		"bruxism":               cd.Bruxism,
		"longevity_expectation": cd.LongevityExpectation,
		"budget":                cd.Budget,
		"clinical_notes":        cd.ClinicalNotes,
		"aesthetic_goals":       cd.AestheticGoals,
		"ceramic_type":          cd.CeramicType,
	}
}

// clinicalTargets must stay in clinicalColumns order
func clinicalTargets(cd *entities.ClinicalData) []interface{} {
	return []interface{}{
		&cd.PatientAge, &cd.Region, &cd.CavityClass, &cd.RestorationSize, &cd.Substrate,
		&cd.SubstrateCondition, &cd.EnamelCondition, &cd.Depth, &cd.AestheticLevel, &cd.ToothColor,
		&cd.StratificationNeeded, &cd.Bruxism, &cd.LongevityExpectation, &cd.Budget,
		&cd.ClinicalNotes, &cd.AestheticGoals, &cd.CeramicType,
	}
}

// jsonbText renders a jsonb value as text so lib/pq sends it untyped
func jsonbText(v driver.Valuer) (interface{}, error) {
	raw, err := v.Value()
	if err != nil {
		return nil, err
	}
	if b, ok := raw.([]byte); ok {
		return string(b), nil
	}
	return raw, nil
}

func columns(groups ...[]interface{}) []interface{} {
	var out []interface{}
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
