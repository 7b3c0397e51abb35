package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/internal/safety"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// ResinParams are the inputs of one resin stratification recommendation
type ResinParams struct {
	EvaluationID  string
	UserID        string
	IdempotencyID string
	Tooth         string
	ClinicalData  entities.ClinicalData
}

// CementationParams are the inputs of one cementation recommendation
type CementationParams struct {
	EvaluationID  string
	UserID        string
	IdempotencyID string
	Teeth         []string
	CeramicType   string
	ClinicalData  entities.ClinicalData
}

// RecommendationService generates AI protocols inside the usage guard
type RecommendationService struct {
	evaluations repositories.EvaluationRepository
	generator   providers.ProtocolGenerator
	processor   *safety.Processor
	guard       *UsageGuard
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	evaluations repositories.EvaluationRepository,
	generator providers.ProtocolGenerator,
	processor *safety.Processor,
	guard *UsageGuard,
) *RecommendationService {
	if processor == nil {
		processor = safety.NewProcessor(nil)
	}
	return &RecommendationService{
		evaluations: evaluations,
		generator:   generator,
		processor:   processor,
		guard:       guard,
	}
}

// RecommendResin generates, corrects and stores a stratification protocol.
func (s *RecommendationService) RecommendResin(ctx context.Context, params ResinParams) (*entities.ResinProtocol, error) {
	if err := s.authorize(ctx, params.EvaluationID, params.UserID); err != nil {
		return nil, err
	}

	return RunMetered(ctx, s.guard, MeteredCall[*entities.ResinProtocol]{
		UserID:        params.UserID,
		Operation:     config.OperationResinRecommendation,
		IdempotencyID: idempotencyKey(params.IdempotencyID),
		Generate: func(ctx context.Context) (*entities.ResinProtocol, error) {
			protocol, err := s.generateResin(ctx, params)
			if err != nil {
				return nil, s.aiError(ctx, params.EvaluationID, err)
			}
			report := s.processor.ApplyResinRules(ctx, protocol, safety.ResinContext{ToothColor: params.ClinicalData.ToothColor})
			logReport(ctx, params.EvaluationID, report)
			return protocol, nil
		},
		Persist: func(ctx context.Context, protocol *entities.ResinProtocol) error {
			status := entities.EvaluationStatusDraft
			return s.evaluations.Update(ctx, params.EvaluationID, entities.EvaluationPatch{
				Status:                 &status,
				StratificationProtocol: protocol,
			})
		},
	})
}

// RecommendCementation generates, corrects and stores a cementation protocol.
func (s *RecommendationService) RecommendCementation(ctx context.Context, params CementationParams) (*entities.CementationProtocol, error) {
	if err := s.authorize(ctx, params.EvaluationID, params.UserID); err != nil {
		return nil, err
	}

	ceramic, ok := validation.NormalizeCeramicType(params.CeramicType)
	if !ok {
		return nil, apperrors.NewValidationError("unknown ceramic type " + params.CeramicType)
	}
	params.CeramicType = ceramic

	return RunMetered(ctx, s.guard, MeteredCall[*entities.CementationProtocol]{
		UserID:        params.UserID,
		Operation:     config.OperationCementationRecommendation,
		IdempotencyID: idempotencyKey(params.IdempotencyID),
		Generate: func(ctx context.Context) (*entities.CementationProtocol, error) {
			protocol, err := s.generateCementation(ctx, params)
			if err != nil {
				return nil, s.aiError(ctx, params.EvaluationID, err)
			}
			report := s.processor.ApplyCementationRules(protocol, safety.CementationContext{CeramicType: params.CeramicType})
			logReport(ctx, params.EvaluationID, report)
			return protocol, nil
		},
		Persist: func(ctx context.Context, protocol *entities.CementationProtocol) error {
			status := entities.EvaluationStatusDraft
			return s.evaluations.Update(ctx, params.EvaluationID, entities.EvaluationPatch{
				Status:              &status,
				CementationProtocol: protocol,
			})
		},
	})
}

// InvokeResin satisfies DispatchClients.
func (s *RecommendationService) InvokeResin(ctx context.Context, params ResinParams) error {
	_, err := s.RecommendResin(ctx, params)
	return err
}

// InvokeCementation satisfies DispatchClients.
func (s *RecommendationService) InvokeCementation(ctx context.Context, params CementationParams) error {
	_, err := s.RecommendCementation(ctx, params)
	return err
}

func (s *RecommendationService) generateResin(ctx context.Context, params ResinParams) (*entities.ResinProtocol, error) {
	if s.generator == nil {
		return nil, providers.ErrGeneratorUnavailable
	}
	prompt := buildResinPrompt(params)
	call := observability.PromptCall{PromptID: prompt.ID, PromptVersion: prompt.Version, Model: s.generator.Model()}

	return observability.WithAIMetrics(ctx, call, func(ctx context.Context) (observability.AIExecution[*entities.ResinProtocol], error) {
		completion, err := s.generator.GenerateJSON(ctx, prompt)
		if err != nil {
			return observability.AIExecution[*entities.ResinProtocol]{}, err
		}
		protocol, err := validation.ParseResinProtocol(completion.Content)
		if err != nil {
			return observability.AIExecution[*entities.ResinProtocol]{}, err
		}
		return observability.AIExecution[*entities.ResinProtocol]{
			Result:    protocol,
			TokensIn:  completion.TokensIn,
			TokensOut: completion.TokensOut,
		}, nil
	})
}

func (s *RecommendationService) generateCementation(ctx context.Context, params CementationParams) (*entities.CementationProtocol, error) {
	if s.generator == nil {
		return nil, providers.ErrGeneratorUnavailable
	}
	prompt := buildCementationPrompt(params)
	call := observability.PromptCall{PromptID: prompt.ID, PromptVersion: prompt.Version, Model: s.generator.Model()}

	return observability.WithAIMetrics(ctx, call, func(ctx context.Context) (observability.AIExecution[*entities.CementationProtocol], error) {
		completion, err := s.generator.GenerateFunctionCall(ctx, prompt, CementationSchema)
		if err != nil {
			return observability.AIExecution[*entities.CementationProtocol]{}, err
		}
		protocol, err := validation.ParseCementationProtocol(completion.Content)
		if err != nil {
			return observability.AIExecution[*entities.CementationProtocol]{}, err
		}
		return observability.AIExecution[*entities.CementationProtocol]{
			Result:    protocol,
			TokensIn:  completion.TokensIn,
			TokensOut: completion.TokensOut,
		}, nil
	})
}

// authorize rejects unknown and foreign-owned evaluations before anything billable runs.
func (s *RecommendationService) authorize(ctx context.Context, evaluationID, userID string) error {
	evaluation, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return apperrors.NewInternalError("failed to load evaluation", err)
	}
	if evaluation == nil {
		return apperrors.NewNotFoundError("evaluation not found")
	}
	if evaluation.UserID != userID {
		return apperrors.NewForbiddenError("evaluation belongs to another user")
	}
	return nil
}

// aiError wraps a generation failure, logging structural and transient causes apart.
func (s *RecommendationService) aiError(ctx context.Context, evaluationID string, err error) error {
	logger := observability.LoggerFromContext(ctx)
	structural := errors.Is(err, validation.ErrEmptyProtocol) ||
		errors.Is(err, validation.ErrMalformedProtocol) ||
		errors.Is(err, providers.ErrMalformedCompletion)

	if structural {
		logger.Warn().Err(err).Str("evaluation_id", evaluationID).Msg("AI returned an unusable protocol")
		return apperrors.NewAIProviderError("AI returned an invalid protocol", err)
	}
	logger.Error().Err(err).Str("evaluation_id", evaluationID).Msg("AI provider call failed")
	return apperrors.NewAIProviderError("AI provider call failed", err)
}

func logReport(ctx context.Context, evaluationID string, report safety.Report) {
	if !report.Changed() {
		return
	}
	observability.LoggerFromContext(ctx).Info().
		Str("evaluation_id", evaluationID).
		Int("substitutions", len(report.Substitutions)).
		Int("alerts_added", len(report.AlertsAdded)).
		Int("warnings_added", len(report.WarningsAdded)).
		Int("steps_rewritten", report.StepsRewritten).
		Msg("Safety rules corrected protocol")
}

func idempotencyKey(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
