package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/dentalprotocols/backend/internal/api/middleware"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

// maxSyncIDs bounds an explicit sync request, one id per tooth
const maxSyncIDs = 32

// ReconciliationService defines the multi-tooth operations used by the handler.
type ReconciliationService interface {
	SubmitTeeth(ctx context.Context, req services.SubmitRequest) (*services.SubmitResult, error)
	RetryEvaluation(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error)
	RegenerateWithBudget(ctx context.Context, userID, sessionID, budget string) (*services.RegenerateResult, error)
}

// ProtocolSyncService defines the explicit sync operation used by the handler.
type ProtocolSyncService interface {
	SyncGroupProtocols(ctx context.Context, userID, sessionID string, evaluationIDs []string) (*services.SyncResult, error)
}

// EvaluationService defines the evaluation reads and lifecycle used by the handler.
type EvaluationService interface {
	Get(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error)
	ListSession(ctx context.Context, userID, sessionID string) ([]*entities.Evaluation, error)
	UpdateChecklist(ctx context.Context, userID, evaluationID string, progress entities.ChecklistProgress) (*services.ChecklistState, error)
	Complete(ctx context.Context, userID, evaluationID string) (*entities.Evaluation, error)
}

// SessionHandler handles clinical sessions and their evaluations
type SessionHandler struct {
	reconciliation ReconciliationService
	sync           ProtocolSyncService
	evaluations    EvaluationService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(reconciliation ReconciliationService, sync ProtocolSyncService, evaluations EvaluationService) *SessionHandler {
	return &SessionHandler{
		reconciliation: reconciliation,
		sync:           sync,
		evaluations:    evaluations,
	}
}

type syncRequest struct {
	EvaluationIDs []string `json:"evaluationIds"`
}

// SubmitTeeth handles POST /api/sessions/{id}/teeth
func (h *SessionHandler) SubmitTeeth(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	validated := validation.ValidateSubmitTeeth(raw)
	if !validated.Success {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: validated.Error, Code: "VALIDATION"})
		return
	}

	teeth := make([]services.ToothAssignment, len(validated.Data.Teeth))
	for i, t := range validated.Data.Teeth {
		teeth[i] = services.ToothAssignment{Tooth: t.Tooth, TreatmentType: entities.TreatmentType(t.TreatmentType)}
	}

	result, err := h.reconciliation.SubmitTeeth(r.Context(), services.SubmitRequest{
		UserID:    middleware.UserIDFromContext(r.Context()),
		SessionID: sessionID,
		PatientID: validated.Data.PatientID,
		Teeth:     teeth,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == services.OutcomeFailed {
		status = http.StatusBadGateway
	}
	respondWithJSON(w, status, map[string]interface{}{
		"success": result.Outcome != services.OutcomeFailed,
		"result":  result,
	})
}

// RetryEvaluation handles POST /api/evaluations/{id}/retry
func (h *SessionHandler) RetryEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")
	if evaluationID == "" {
		respondWithError(w, http.StatusBadRequest, "evaluation ID is required")
		return
	}

	evaluation, err := h.reconciliation.RetryEvaluation(r.Context(), middleware.UserIDFromContext(r.Context()), evaluationID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"evaluation": evaluation,
	})
}

// RegenerateWithBudget handles POST /api/sessions/{id}/regenerate
func (h *SessionHandler) RegenerateWithBudget(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	validated := validation.ValidateRegenerateBudget(raw)
	if !validated.Success {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: validated.Error, Code: "VALIDATION"})
		return
	}

	result, err := h.reconciliation.RegenerateWithBudget(r.Context(), middleware.UserIDFromContext(r.Context()), sessionID, validated.Data.Budget)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// SyncProtocols handles POST /api/sessions/{id}/sync. An empty id list syncs
// every evaluation of the session in creation order.
func (h *SessionHandler) SyncProtocols(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())

	var payload syncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
	}
	if len(payload.EvaluationIDs) > maxSyncIDs {
		respondWithError(w, http.StatusBadRequest, "too many evaluation IDs")
		return
	}

	ids := payload.EvaluationIDs
	if len(ids) == 0 {
		session, err := h.evaluations.ListSession(r.Context(), userID, sessionID)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		for _, e := range session {
			ids = append(ids, e.ID)
		}
	}

	result, err := h.sync.SyncGroupProtocols(r.Context(), userID, sessionID, ids)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// ListEvaluations handles GET /api/sessions/{id}/evaluations
func (h *SessionHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	evaluations, err := h.evaluations.ListSession(r.Context(), middleware.UserIDFromContext(r.Context()), sessionID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if evaluations == nil {
		evaluations = []*entities.Evaluation{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"evaluations": evaluations,
		"count":       len(evaluations),
	})
}

// GetEvaluation handles GET /api/evaluations/{id}
func (h *SessionHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")
	if evaluationID == "" {
		respondWithError(w, http.StatusBadRequest, "evaluation ID is required")
		return
	}

	evaluation, err := h.evaluations.Get(r.Context(), middleware.UserIDFromContext(r.Context()), evaluationID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, evaluation)
}

// UpdateChecklist handles PATCH /api/evaluations/{id}/checklist
func (h *SessionHandler) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")
	if evaluationID == "" {
		respondWithError(w, http.StatusBadRequest, "evaluation ID is required")
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	validated := validation.ValidateChecklistProgress(raw)
	if !validated.Success {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: validated.Error, Code: "VALIDATION"})
		return
	}

	state, err := h.evaluations.UpdateChecklist(r.Context(), middleware.UserIDFromContext(r.Context()), evaluationID,
		entities.ChecklistProgress(validated.Data.Progress))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

// CompleteEvaluation handles POST /api/evaluations/{id}/complete
func (h *SessionHandler) CompleteEvaluation(w http.ResponseWriter, r *http.Request) {
	evaluationID := r.PathValue("id")
	if evaluationID == "" {
		respondWithError(w, http.StatusBadRequest, "evaluation ID is required")
		return
	}

	evaluation, err := h.evaluations.Complete(r.Context(), middleware.UserIDFromContext(r.Context()), evaluationID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"evaluation": evaluation,
	})
}
