package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// Dispatcher routes one evaluation to its protocol generator
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}

// SubmitOutcome is the overall result of a multi-tooth submit
type SubmitOutcome string

const (
	OutcomeSuccess SubmitOutcome = "success"
	OutcomePartial SubmitOutcome = "partial"
	OutcomeFailed  SubmitOutcome = "failed"
)

// ToothAssignment is one selected tooth with its treatment type
type ToothAssignment struct {
	Tooth         string
	TreatmentType entities.TreatmentType
}

// SubmitRequest is a multi-tooth submit, teeth in selection order
type SubmitRequest struct {
	UserID    string
	SessionID string
	PatientID string
	Teeth     []ToothAssignment
}

// ToothResult is the per-tooth outcome of a submit
type ToothResult struct {
	Tooth        string                    `json:"tooth"`
	EvaluationID string                    `json:"evaluation_id,omitempty"`
	Status       entities.EvaluationStatus `json:"status,omitempty"`
	Dispatched   bool                      `json:"dispatched"`
	Error        string                    `json:"error,omitempty"`
}

// SubmitResult is the structured result of a multi-tooth submit
type SubmitResult struct {
	Outcome     SubmitOutcome `json:"outcome"`
	Teeth       []ToothResult `json:"teeth"`
	FailedTeeth []string      `json:"failed_teeth"`
}

// RegenerateResult summarizes a budget regeneration
type RegenerateResult struct {
	Budget         string   `json:"budget"`
	AestheticLevel string   `json:"aesthetic_level"`
	Retried        int      `json:"retried"`
	Succeeded      int      `json:"succeeded"`
	FailedTeeth    []string `json:"failed_teeth"`
}

// ReconciliationService turns a selection of teeth into evaluations. AI
// dispatches run one at a time, in selection order.
type ReconciliationService struct {
	evaluations repositories.EvaluationRepository
	pending     repositories.PendingToothRepository
	dispatcher  Dispatcher
	sync        *ProtocolSyncService
	events      providers.EventBus
}

// NewReconciliationService creates a new reconciliation service. events may be nil.
func NewReconciliationService(
	evaluations repositories.EvaluationRepository,
	pending repositories.PendingToothRepository,
	dispatcher Dispatcher,
	sync *ProtocolSyncService,
	events providers.EventBus,
) *ReconciliationService {
	return &ReconciliationService{
		evaluations: evaluations,
		pending:     pending,
		dispatcher:  dispatcher,
		sync:        sync,
		events:      events,
	}
}

// SubmitTeeth creates one evaluation per selected tooth and dispatches the
// primary tooth of each AI group plus every non-AI tooth. A failing tooth
// never aborts the loop.
func (s *ReconciliationService) SubmitTeeth(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if len(req.Teeth) == 0 {
		return nil, apperrors.NewValidationError("at least one tooth is required")
	}
	logger := observability.LoggerFromContext(ctx).With().
		Str("session_id", req.SessionID).
		Str("user_id", req.UserID).
		Logger()

	pendingTeeth, err := s.pending.ListBySession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load pending teeth", err)
	}
	pendingByTooth := make(map[string]*entities.PendingTooth, len(pendingTeeth))
	for _, p := range pendingTeeth {
		pendingByTooth[p.Tooth] = p
	}

	var existingIDs []string
	existing, err := s.evaluations.ListBySession(ctx, req.SessionID, req.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load existing session evaluations")
	}
	for _, e := range existing {
		existingIDs = append(existingIDs, e.ID)
	}

	result := &SubmitResult{Teeth: make([]ToothResult, 0, len(req.Teeth)), FailedTeeth: []string{}}
	primaries := make(map[entities.TreatmentType]ToothResult)
	var succeededIDs, succeededTeeth, dispatchedIDs []string

	for _, assignment := range req.Teeth {
		tr := s.processTooth(ctx, req, assignment, pendingByTooth[assignment.Tooth], primaries)
		result.Teeth = append(result.Teeth, tr)

		if tr.Error != "" {
			result.FailedTeeth = append(result.FailedTeeth, tr.Tooth)
			logger.Warn().Str("tooth", tr.Tooth).Str("error", tr.Error).Msg("Tooth failed during submit")
			continue
		}
		succeededIDs = append(succeededIDs, tr.EvaluationID)
		succeededTeeth = append(succeededTeeth, tr.Tooth)
		if tr.Dispatched {
			dispatchedIDs = append(dispatchedIDs, tr.EvaluationID)
		}
	}

	if len(succeededIDs) > 0 {
		if err := s.evaluations.UpdateStatusBulk(ctx, succeededIDs, entities.EvaluationStatusDraft); err != nil {
			logger.Error().Err(err).Strs("evaluation_ids", succeededIDs).Msg("Failed to mark evaluations as draft")
		}
		for i := range result.Teeth {
			if result.Teeth[i].Error == "" {
				result.Teeth[i].Status = entities.EvaluationStatusDraft
				s.publishStatus(ctx, req.SessionID, result.Teeth[i].EvaluationID, result.Teeth[i].Tooth, entities.EvaluationStatusDraft)
			}
		}

		// the teeth dispatched now are the group sources, not older siblings
		s.syncBestEffort(ctx, req.UserID, req.SessionID, unionIDs(existingIDs, succeededIDs), dispatchedIDs)

		if err := s.pending.DeleteTeeth(ctx, req.SessionID, succeededTeeth); err != nil {
			logger.Error().Err(err).Strs("teeth", succeededTeeth).Msg("Failed to delete pending teeth")
		}
	}

	switch {
	case len(result.FailedTeeth) == 0:
		result.Outcome = OutcomeSuccess
	case len(result.FailedTeeth) == len(req.Teeth):
		result.Outcome = OutcomeFailed
	default:
		result.Outcome = OutcomePartial
	}

	publishEvent(ctx, s.events, entities.NewEvaluationEvent(req.SessionID, "", "", entities.EvaluationEventSubmitCompleted, ""))
	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("teeth", len(req.Teeth)).
		Strs("failed_teeth", result.FailedTeeth).
		Msg("Submit completed")

	return result, nil
}

// processTooth inserts the evaluation of one tooth and dispatches it when it
// is a group primary or a non-AI tooth.
func (s *ReconciliationService) processTooth(
	ctx context.Context,
	req SubmitRequest,
	assignment ToothAssignment,
	pending *entities.PendingTooth,
	primaries map[entities.TreatmentType]ToothResult,
) ToothResult {
	tr := ToothResult{Tooth: assignment.Tooth}
	if pending == nil {
		tr.Error = fmt.Sprintf("tooth %s is not pending in this session", assignment.Tooth)
		return tr
	}

	evaluation := &entities.Evaluation{
		UserID:             req.UserID,
		PatientID:          req.PatientID,
		SessionID:          req.SessionID,
		Tooth:              assignment.Tooth,
		TreatmentType:      assignment.TreatmentType,
		AIIndicationReason: pending.AIIndicationReason,
		Status:             entities.EvaluationStatusAnalyzing,
		ClinicalData:       pending.ClinicalData,
	}
	id, err := s.evaluations.Insert(ctx, evaluation)
	if err != nil {
		tr.Error = "failed to create evaluation: " + err.Error()
		return tr
	}
	evaluation.ID = id
	tr.EvaluationID = id
	tr.Status = entities.EvaluationStatusAnalyzing
	s.publishStatus(ctx, req.SessionID, id, assignment.Tooth, entities.EvaluationStatusAnalyzing)

	treatment := assignment.TreatmentType
	if primary, ok := primaries[treatment]; ok && treatment.UsesAI() {
		if primary.Error != "" {
			tr.Error = fmt.Sprintf("primary tooth %s failed", primary.Tooth)
			tr.Status = s.markError(ctx, req.SessionID, evaluation)
		}
		return tr
	}

	tr.Dispatched = true
	if err := s.dispatcher.Dispatch(ctx, dispatchRequestFor(evaluation, uuid.New().String())); err != nil {
		tr.Error = err.Error()
		tr.Status = s.markError(ctx, req.SessionID, evaluation)
	}
	if treatment.UsesAI() {
		primaries[treatment] = tr
	}
	return tr
}

// RetryEvaluation re-runs dispatch for one evaluation from its persisted
// clinical data, then syncs the session.
func (s *ReconciliationService) RetryEvaluation(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error) {
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
	if !evaluation.Status.IsRetryable() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("evaluation in status %s cannot be retried", evaluation.Status))
	}

	if err := s.retryOne(ctx, evaluation); err != nil {
		return nil, err
	}

	session, err := s.evaluations.ListBySession(ctx, evaluation.SessionID, userID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("session_id", evaluation.SessionID).Msg("Skipping sync after retry")
	} else if len(session) >= 2 {
		ids := make([]string, len(session))
		for i, e := range session {
			ids[i] = e.ID
		}
		s.syncBestEffort(ctx, userID, evaluation.SessionID, ids, []string{evaluation.ID})
	}

	return evaluation, nil
}

// RegenerateWithBudget applies a new budget tier to the whole session and
// retries every AI evaluation, one after another, syncing once at the end.
func (s *ReconciliationService) RegenerateWithBudget(ctx context.Context, userID, sessionID, budget string) (*RegenerateResult, error) {
	level, ok := validation.AestheticLevelForBudget(budget)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("budget must be one of: '%s', '%s'", validation.BudgetStandard, validation.BudgetPremium))
	}

	session, err := s.evaluations.ListBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load session evaluations", err)
	}
	if len(session) == 0 {
		return nil, apperrors.NewNotFoundError("session has no evaluations")
	}

	ids := make([]string, len(session))
	for i, e := range session {
		ids[i] = e.ID
	}
	if err := s.evaluations.UpdateBulk(ctx, ids, entities.EvaluationPatch{Budget: &budget, AestheticLevel: &level}); err != nil {
		return nil, apperrors.NewInternalError("failed to update session budget", err)
	}

	result := &RegenerateResult{Budget: budget, AestheticLevel: level, FailedTeeth: []string{}}
	var succeededIDs []string
	for _, e := range session {
		if !e.TreatmentType.UsesAI() {
			continue
		}
		e.Budget = budget
		e.AestheticLevel = level

		result.Retried++
		if err := s.retryOne(ctx, e); err != nil {
			result.FailedTeeth = append(result.FailedTeeth, e.Tooth)
			continue
		}
		result.Succeeded++
		succeededIDs = append(succeededIDs, e.ID)
	}

	if result.Succeeded >= 2 {
		s.syncBestEffort(ctx, userID, sessionID, succeededIDs, nil)
	}
	return result, nil
}

// retryOne moves an evaluation through analyzing to draft or error.
func (s *ReconciliationService) retryOne(ctx context.Context, evaluation *entities.Evaluation) error {
	if err := s.evaluations.UpdateStatus(ctx, evaluation.ID, entities.EvaluationStatusAnalyzing); err != nil {
		return apperrors.NewInternalError("failed to mark evaluation as analyzing", err)
	}
	evaluation.Status = entities.EvaluationStatusAnalyzing
	s.publishStatus(ctx, evaluation.SessionID, evaluation.ID, evaluation.Tooth, evaluation.Status)

	if err := s.dispatcher.Dispatch(ctx, dispatchRequestFor(evaluation, uuid.New().String())); err != nil {
		evaluation.Status = s.markError(ctx, evaluation.SessionID, evaluation)
		return err
	}

	if err := s.evaluations.UpdateStatus(ctx, evaluation.ID, entities.EvaluationStatusDraft); err != nil {
		return apperrors.NewInternalError("failed to mark evaluation as draft", err)
	}
	evaluation.Status = entities.EvaluationStatusDraft
	s.publishStatus(ctx, evaluation.SessionID, evaluation.ID, evaluation.Tooth, evaluation.Status)
	return nil
}

// markError moves an evaluation to error. A failing write is logged and swallowed.
func (s *ReconciliationService) markError(ctx context.Context, sessionID string, evaluation *entities.Evaluation) entities.EvaluationStatus {
	if err := s.evaluations.UpdateStatus(ctx, evaluation.ID, entities.EvaluationStatusError); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("evaluation_id", evaluation.ID).
			Msg("Failed to mark evaluation as error")
		return evaluation.Status
	}
	s.publishStatus(ctx, sessionID, evaluation.ID, evaluation.Tooth, entities.EvaluationStatusError)
	return entities.EvaluationStatusError
}

// syncBestEffort propagates protocols within the session; primaryIDs, when
// set, are the group sources.
func (s *ReconciliationService) syncBestEffort(ctx context.Context, userID, sessionID string, ids, primaryIDs []string) {
	if s.sync == nil || len(ids) < 2 {
		return
	}
	sync := BestEffort(func(ctx context.Context) error {
		_, err := s.sync.SyncFromPrimaries(ctx, userID, sessionID, ids, primaryIDs)
		return err
	})
	sync.Run(ctx, "sync_group_protocols")
}

func (s *ReconciliationService) publishStatus(ctx context.Context, sessionID, evaluationID, tooth string, status entities.EvaluationStatus) {
	publishEvent(ctx, s.events, entities.NewEvaluationEvent(sessionID, evaluationID, tooth, entities.EvaluationEventStatusChanged, status))
}

// dispatchRequestFor builds the dispatch of an evaluation from its stored clinical data.
func dispatchRequestFor(e *entities.Evaluation, idempotencyID string) DispatchRequest {
	req := DispatchRequest{
		EvaluationID:  e.ID,
		Tooth:         e.Tooth,
		TreatmentType: e.TreatmentType,
	}
	switch e.TreatmentType.Route() {
	case entities.RouteResin:
		req.Resin = &ResinParams{
			UserID:        e.UserID,
			IdempotencyID: idempotencyID,
			Tooth:         e.Tooth,
			ClinicalData:  e.ClinicalData,
		}
	case entities.RouteCementation:
		req.Cementation = &CementationParams{
			UserID:        e.UserID,
			IdempotencyID: idempotencyID,
			Teeth:         []string{e.Tooth},
			CeramicType:   e.CeramicType,
			ClinicalData:  e.ClinicalData,
		}
	case entities.RouteGeneric, entities.RouteUnrecognized:
		req.Generic = &GenericToothData{AIIndicationReason: e.AIIndicationReason}
	}
	return req
}

// unionIDs returns existing followed by added, without duplicates.
func unionIDs(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
