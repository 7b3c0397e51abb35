package services

import (
	"context"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// SyncResult summarizes one protocol sync
type SyncResult struct {
	Groups  int      `json:"groups"`
	Updated []string `json:"updated"`
}

// ProtocolSyncService propagates a group primary's protocol to its siblings
type ProtocolSyncService struct {
	evaluations repositories.EvaluationRepository
	events      providers.EventBus
}

// NewProtocolSyncService creates a new protocol sync service. events may be nil.
func NewProtocolSyncService(evaluations repositories.EvaluationRepository, events providers.EventBus) *ProtocolSyncService {
	return &ProtocolSyncService{evaluations: evaluations, events: events}
}

// SyncGroupProtocols groups the given evaluations by treatment type and copies,
// per AI group, the protocol of the first evaluation (in the given order) that
// has one onto every other member. Updated siblings are marked draft.
// Completed evaluations are never overwritten.
func (s *ProtocolSyncService) SyncGroupProtocols(ctx context.Context, userID, sessionID string, evaluationIDs []string) (*SyncResult, error) {
	return s.syncGroups(ctx, userID, sessionID, evaluationIDs, nil)
}

// SyncFromPrimaries is SyncGroupProtocols with the group primaries fixed: an
// evaluation listed in primaryIDs that has a protocol is the source of its
// group, whatever its position. Groups without a listed primary fall back to
// the first evaluation with a protocol.
func (s *ProtocolSyncService) SyncFromPrimaries(ctx context.Context, userID, sessionID string, evaluationIDs, primaryIDs []string) (*SyncResult, error) {
	preferred := make(map[string]struct{}, len(primaryIDs))
	for _, id := range primaryIDs {
		preferred[id] = struct{}{}
	}
	return s.syncGroups(ctx, userID, sessionID, evaluationIDs, preferred)
}

func (s *ProtocolSyncService) syncGroups(ctx context.Context, userID, sessionID string, evaluationIDs []string, preferred map[string]struct{}) (*SyncResult, error) {
	result := &SyncResult{Updated: []string{}}
	if len(evaluationIDs) < 2 {
		return result, nil
	}

	session, err := s.evaluations.ListBySession(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load session evaluations", err)
	}
	byID := make(map[string]*entities.Evaluation, len(session))
	for _, e := range session {
		byID[e.ID] = e
	}

	var order []entities.TreatmentType
	groups := make(map[entities.TreatmentType][]*entities.Evaluation)
	for _, id := range evaluationIDs {
		e, ok := byID[id]
		if !ok || !e.TreatmentType.UsesAI() {
			continue
		}
		if _, seen := groups[e.TreatmentType]; !seen {
			order = append(order, e.TreatmentType)
		}
		groups[e.TreatmentType] = append(groups[e.TreatmentType], e)
	}

	logger := observability.LoggerFromContext(ctx)
	for _, treatment := range order {
		members := groups[treatment]
		if len(members) < 2 {
			continue
		}

		primary := groupPrimary(members, preferred)
		if primary == nil {
			logger.Debug().Str("session_id", sessionID).Str("treatment_type", string(treatment)).Msg("No protocol to sync in group")
			continue
		}

		var siblings []*entities.Evaluation
		for _, e := range members {
			if e.ID != primary.ID && e.Status != entities.EvaluationStatusCompleted {
				siblings = append(siblings, e)
			}
		}
		if len(siblings) == 0 {
			continue
		}

		ids := make([]string, len(siblings))
		for i, e := range siblings {
			ids[i] = e.ID
		}

		status := entities.EvaluationStatusDraft
		patch := entities.EvaluationPatch{
			Status:                 &status,
			StratificationProtocol: primary.StratificationProtocol,
			CementationProtocol:    primary.CementationProtocol,
		}
		if err := s.evaluations.UpdateBulk(ctx, ids, patch); err != nil {
			return result, apperrors.NewInternalError("failed to sync group protocols", err)
		}

		result.Groups++
		result.Updated = append(result.Updated, ids...)
		for _, e := range siblings {
			publishEvent(ctx, s.events, entities.NewEvaluationEvent(sessionID, e.ID, e.Tooth, entities.EvaluationEventProtocolSynced, status))
		}
		logger.Info().
			Str("session_id", sessionID).
			Str("treatment_type", string(treatment)).
			Str("primary_id", primary.ID).
			Int("siblings", len(ids)).
			Msg("Synced group protocol")
	}

	return result, nil
}

// groupPrimary returns the preferred member with a protocol, or else the
// first member with one.
func groupPrimary(members []*entities.Evaluation, preferred map[string]struct{}) *entities.Evaluation {
	var first *entities.Evaluation
	for _, e := range members {
		if !e.HasProtocol() {
			continue
		}
		if _, ok := preferred[e.ID]; ok {
			return e
		}
		if first == nil {
			first = e
		}
	}
	return first
}

// publishEvent sends a session event without ever failing the caller.
func publishEvent(ctx context.Context, events providers.EventBus, event *entities.EvaluationEvent) {
	if events == nil {
		return
	}
	publish := BestEffort(func(ctx context.Context) error {
		return events.Publish(ctx, providers.GetSessionChannel(event.SessionID), event)
	})
	publish.Run(ctx, "publish_evaluation_event")
}
