package validation

import (
	"regexp"
	"strings"
)

// Closed value sets accepted from the clinical forms.
var (
	Regions = []string{
		"anterior-superior",
		"anterior-inferior",
		"posterior-superior",
		"posterior-inferior",
	}

	CavityClasses = []string{
		"Classe I",
		"Classe II",
		"Classe III",
		"Classe IV",
		"Classe V",
		"Classe VI",
		"Faceta Direta",
		"Recontorno Estético",
		"Fechamento de Diastema",
		"Reparo de Restauração",
		"Lente de Contato",
	}

	RestorationSizes = []string{"Pequena", "Média", "Grande", "Extensa"}

	Substrates = []string{"Esmalte", "Dentina", "Esmalte e Dentina", "Dentina profunda"}

	AestheticLevels = []string{"básico", "funcional", "estético", "alto", "muito alto", "máximo"}

	LongevityExpectations = []string{"curto", "médio", "longo"}

	Budgets = []string{"econômico", "moderado", "padrão", "premium"}
)

// Budget tiers that drive the regenerate flow
const (
	BudgetStandard = "padrão"
	BudgetPremium  = "premium"
)

// Aesthetic levels derived from a regenerated budget
const (
	AestheticLevelHigh       = "alto"
	AestheticLevelFunctional = "funcional"
)

// AestheticLevelForBudget derives the aesthetic level used when a session is
// regenerated with a new budget. ok is false for budgets the flow does not accept.
func AestheticLevelForBudget(budget string) (level string, ok bool) {
	switch budget {
	case BudgetPremium:
		return AestheticLevelHigh, true
	case BudgetStandard:
		return AestheticLevelFunctional, true
	}
	return "", false
}

var toothPattern = regexp.MustCompile(`^[1-4][1-8]$`)

// IsValidTooth reports whether t is a permanent-dentition FDI designator.
func IsValidTooth(t string) bool {
	return toothPattern.MatchString(t)
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "…"
}

func joinQuoted(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}
