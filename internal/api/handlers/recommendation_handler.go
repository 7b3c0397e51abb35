package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/dentalprotocols/backend/internal/api/middleware"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

// IdempotencyHeader lets clients replay a recommendation without paying twice
const IdempotencyHeader = "Idempotency-Key"

// RecommendationService defines the protocol generation operations used by the handler.
type RecommendationService interface {
	RecommendResin(ctx context.Context, params services.ResinParams) (*entities.ResinProtocol, error)
	RecommendCementation(ctx context.Context, params services.CementationParams) (*entities.CementationProtocol, error)
}

// RecommendationHandler handles single-evaluation AI recommendations
type RecommendationHandler struct {
	service RecommendationService
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

type recommendationResponse struct {
	Success  bool        `json:"success"`
	Protocol interface{} `json:"protocol"`
}

// RecommendResin handles POST /api/recommendations/resin
func (h *RecommendationHandler) RecommendResin(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result := validation.ValidateEvaluationData(raw)
	if !result.Success {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: result.Error, Code: "VALIDATION"})
		return
	}
	req := result.Data
	if !sameUser(r, req.UserID) {
		respondWithError(w, http.StatusForbidden, "userId does not match the authenticated user")
		return
	}

	protocol, err := h.service.RecommendResin(r.Context(), services.ResinParams{
		EvaluationID:  req.EvaluationID,
		UserID:        middleware.UserIDFromContext(r.Context()),
		IdempotencyID: r.Header.Get(IdempotencyHeader),
		Tooth:         req.Tooth,
		ClinicalData:  req.ClinicalData(),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, recommendationResponse{Success: true, Protocol: protocol})
}

// RecommendCementation handles POST /api/recommendations/cementation
func (h *RecommendationHandler) RecommendCementation(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result := validation.ValidateCementationData(raw)
	if !result.Success {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: result.Error, Code: "VALIDATION"})
		return
	}
	req := result.Data
	if !sameUser(r, req.UserID) {
		respondWithError(w, http.StatusForbidden, "userId does not match the authenticated user")
		return
	}

	bruxism := req.Bruxism != nil && *req.Bruxism
	protocol, err := h.service.RecommendCementation(r.Context(), services.CementationParams{
		EvaluationID:  req.EvaluationID,
		UserID:        middleware.UserIDFromContext(r.Context()),
		IdempotencyID: r.Header.Get(IdempotencyHeader),
		Teeth:         req.Teeth,
		CeramicType:   req.CeramicType,
		ClinicalData: entities.ClinicalData{
			Substrate:          req.Substrate,
			SubstrateCondition: req.SubstrateCondition,
			EnamelCondition:    req.EnamelCondition,
			ToothColor:         req.ToothColor,
			Bruxism:            bruxism,
			ClinicalNotes:      req.ClinicalNotes,
			AestheticGoals:     req.AestheticGoals,
			CeramicType:        req.CeramicType,
		},
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, recommendationResponse{Success: true, Protocol: protocol})
}

// ValidateEvaluation handles POST /api/validate/evaluation. It never calls
// the AI provider and never touches credits.
func (h *RecommendationHandler) ValidateEvaluation(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result := validation.ValidateEvaluationData(raw)
	if !result.Success {
		respondWithJSON(w, http.StatusBadRequest, result)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func sameUser(r *http.Request, bodyUserID string) bool {
	return strings.EqualFold(middleware.UserIDFromContext(r.Context()), bodyUserID)
}
