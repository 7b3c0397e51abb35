package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

type genericTemplate struct {
	summary         string // formatted with the tooth
	checklist       []string
	alerts          []string
	recommendations []string
}

var genericTemplates = map[entities.TreatmentType]genericTemplate{
	entities.TreatmentCrown: {
		summary: "Coroa total indicada para o dente %s.",
		checklist: []string{
			"Avaliar remanescente coronário e necessidade de núcleo",
			"Realizar preparo com término definido",
			"Moldagem ou escaneamento intraoral",
			"Registrar cor e enviar ao laboratório",
			"Instalar provisório",
			"Prova e cimentação definitiva",
		},
		alerts: []string{
			"Verificar tratamento endodôntico prévio antes do preparo",
		},
		recommendations: []string{
			"Considerar coroa cerâmica em região estética",
			"Controle radiográfico após cimentação",
		},
	},
	entities.TreatmentImplant: {
		summary: "Reabilitação com implante planejada para a região do dente %s.",
		checklist: []string{
			"Solicitar tomografia computadorizada",
			"Avaliar disponibilidade óssea e necessidade de enxerto",
			"Planejamento cirúrgico e guia",
			"Instalação do implante",
			"Período de osseointegração",
			"Reabilitação protética",
		},
		alerts: []string{
			"Avaliar condição sistêmica e uso de medicamentos antes da cirurgia",
		},
		recommendations: []string{
			"Encaminhar para especialista em implantodontia se necessário",
			"Orientar higiene peri-implantar",
		},
	},
	entities.TreatmentEndodontic: {
		summary: "Tratamento endodôntico indicado para o dente %s.",
		checklist: []string{
			"Radiografia periapical inicial",
			"Testes de vitalidade pulpar",
			"Acesso e instrumentação dos canais",
			"Obturação dos canais",
			"Restauração provisória ou definitiva",
			"Radiografia final",
		},
		alerts: []string{
			"Confirmar diagnóstico pulpar antes de iniciar o acesso",
		},
		recommendations: []string{
			"Planejar restauração definitiva após o tratamento",
			"Proservação radiográfica em 6 e 12 meses",
		},
	},
	entities.TreatmentReferral: {
		summary: "Encaminhamento a especialista recomendado para o dente %s.",
		checklist: []string{
			"Registrar motivo do encaminhamento",
			"Anexar exames e fotografias",
			"Emitir carta de encaminhamento",
			"Agendar retorno para acompanhamento",
		},
		alerts: []string{
			"Informar ao paciente a urgência do encaminhamento",
		},
		recommendations: []string{
			"Manter comunicação com o especialista sobre o plano de tratamento",
		},
	},
	entities.TreatmentGingivoplasty: {
		summary: "Gengivoplastia indicada na região do dente %s.",
		checklist: []string{
			"Sondagem periodontal e avaliação das distâncias biológicas",
			"Planejamento do novo contorno gengival",
			"Anestesia local",
			"Incisão e remodelação do tecido gengival",
			"Orientações pós-operatórias",
		},
		alerts: []string{
			"Respeitar o espaço biológico para evitar recidiva",
		},
		recommendations: []string{
			"Aguardar cicatrização antes de procedimentos restauradores estéticos",
		},
	},
	entities.TreatmentRootCoverage: {
		summary: "Recobrimento radicular indicado para o dente %s.",
		checklist: []string{
			"Classificar a recessão gengival",
			"Avaliar área doadora de enxerto",
			"Preparo da superfície radicular",
			"Posicionamento e sutura do enxerto",
			"Orientações pós-operatórias e remoção de sutura",
		},
		alerts: []string{
			"Controlar fatores etiológicos da recessão antes da cirurgia",
		},
		recommendations: []string{
			"Orientar escovação com técnica não traumática",
		},
	},
}

var fallbackTemplate = genericTemplate{
	summary: "Tratamento planejado para o dente %s.",
	checklist: []string{
		"Revisar diagnóstico e exames complementares",
		"Definir plano de tratamento com o paciente",
		"Agendar procedimento",
	},
	alerts: []string{
		"Tipo de tratamento sem protocolo específico: revisar manualmente",
	},
	recommendations: []string{
		"Registrar detalhes do procedimento no prontuário",
	},
}

// BuildGenericProtocol synthesizes a template protocol for a tooth. Unknown
// treatment types get the fallback template.
func BuildGenericProtocol(treatment entities.TreatmentType, tooth, aiReason string) *entities.GenericProtocol {
	tmpl, ok := genericTemplates[treatment]
	if !ok {
		tmpl = fallbackTemplate
	}

	protocol := &entities.GenericProtocol{
		TreatmentType:   treatment,
		Tooth:           tooth,
		Summary:         fmt.Sprintf(tmpl.summary, tooth),
		Checklist:       append([]string(nil), tmpl.checklist...),
		Alerts:          append([]string(nil), tmpl.alerts...),
		Recommendations: append([]string(nil), tmpl.recommendations...),
	}

	if reason := strings.TrimSpace(aiReason); reason != "" {
		protocol.AIIndicationReason = reason
		protocol.Summary += " Motivo da indicação: " + reason
	}
	return protocol
}
