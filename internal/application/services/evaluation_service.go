package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// ChecklistState reports stored checklist progress against the protocol checklist
type ChecklistState struct {
	EvaluationID string                     `json:"evaluation_id"`
	Progress     entities.ChecklistProgress `json:"progress"`
	Total        int                        `json:"total"`
	Complete     bool                       `json:"complete"`
}

// EvaluationService handles reads and the manual lifecycle of a single evaluation
type EvaluationService struct {
	evaluations repositories.EvaluationRepository
	events      providers.EventBus
}

// NewEvaluationService creates a new evaluation service. events may be nil.
func NewEvaluationService(evaluations repositories.EvaluationRepository, events providers.EventBus) *EvaluationService {
	return &EvaluationService{evaluations: evaluations, events: events}
}

// Get returns an evaluation owned by the user
func (s *EvaluationService) Get(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error) {
	evaluation, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load evaluation", err)
	}
	if evaluation == nil {
		return nil, apperrors.NewNotFoundError("evaluation not found")
	}
	if evaluation.UserID != userID {
		return nil, apperrors.NewForbiddenError("evaluation belongs to another user")
	}
	return evaluation, nil
}

// UpdateChecklist stores the completed step indices. Progress longer than the
// checklist is accepted and reported complete.
func (s *EvaluationService) UpdateChecklist(ctx context.Context, userID, evaluationID string, progress entities.ChecklistProgress) (*ChecklistState, error) {
	evaluation, err := s.Get(ctx, userID, evaluationID)
	if err != nil {
		return nil, err
	}
	if !evaluation.HasProtocol() {
		return nil, apperrors.NewConflictError("evaluation has no protocol yet")
	}

	if progress == nil {
		progress = entities.ChecklistProgress{}
	}
	if err := s.evaluations.Update(ctx, evaluationID, entities.EvaluationPatch{ChecklistProgress: &progress}); err != nil {
		return nil, apperrors.NewInternalError("failed to save checklist progress", err)
	}

	total := len(evaluation.Checklist())
	return &ChecklistState{
		EvaluationID: evaluationID,
		Progress:     progress,
		Total:        total,
		Complete:     progress.Complete(total),
	}, nil
}

// Complete moves a draft evaluation whose checklist is done to completed
func (s *EvaluationService) Complete(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error) {
	evaluation, err := s.Get(ctx, userID, evaluationID)
	if err != nil {
		return nil, err
	}
	if evaluation.Status != entities.EvaluationStatusDraft {
		return nil, apperrors.NewConflictError(fmt.Sprintf("evaluation in status %s cannot be completed", evaluation.Status))
	}
	if total := len(evaluation.Checklist()); !evaluation.ChecklistProgress.Complete(total) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("checklist incomplete: %d of %d steps done", len(evaluation.ChecklistProgress), total))
	}

	if err := s.evaluations.UpdateStatus(ctx, evaluationID, entities.EvaluationStatusCompleted); err != nil {
		return nil, apperrors.NewInternalError("failed to complete evaluation", err)
	}
	evaluation.Status = entities.EvaluationStatusCompleted

	publishEvent(ctx, s.events, entities.NewEvaluationEvent(
		evaluation.SessionID, evaluation.ID, evaluation.Tooth,
		entities.EvaluationEventStatusChanged, entities.EvaluationStatusCompleted,
	))
	return evaluation, nil
}

// ListSession returns the user's evaluations of a session
func (s *EvaluationService) ListSession(ctx context.Context, userID, sessionID string) ([]*entities.Evaluation, error) {
	evaluations, err := s.evaluations.ListBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list evaluations", err)
	}
	return evaluations, nil
}
