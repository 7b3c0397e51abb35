package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/api/handlers"
	"github.com/zatekoja/dentalprotocols/backend/internal/api/middleware"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

const (
	testUserID       = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	testEvaluationID = "3f1c2a4e-8b7d-4c1a-9e2f-0a1b2c3d4e5f"
	testSessionID    = "5d6e7f80-1a2b-4c3d-8e9f-a0b1c2d3e4f5"
)

type stubRecommendationService struct {
	resinParams       *services.ResinParams
	cementationParams *services.CementationParams
	err               error
}

func (s *stubRecommendationService) RecommendResin(ctx context.Context, params services.ResinParams) (*entities.ResinProtocol, error) {
	s.resinParams = &params
	if s.err != nil {
		return nil, s.err
	}
	return &entities.ResinProtocol{Checklist: []string{"Isolamento absoluto"}}, nil
}

func (s *stubRecommendationService) RecommendCementation(ctx context.Context, params services.CementationParams) (*entities.CementationProtocol, error) {
	s.cementationParams = &params
	if s.err != nil {
		return nil, s.err
	}
	return &entities.CementationProtocol{}, nil
}

func resinBody(userID string) string {
	payload := map[string]interface{}{
		"evaluationId":         testEvaluationID,
		"userId":               userID,
		"patientAge":           "35",
		"tooth":                "11",
		"region":               "anterior-superior",
		"cavityClass":          "Classe IV",
		"restorationSize":      "Média",
		"substrate":            "Esmalte",
		"aestheticLevel":       "estético",
		"toothColor":           "A2",
		"stratificationNeeded": true,
		"bruxism":              false,
		"longevityExpectation": "longo",
		"budget":               "padrão",
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithUserID(req.Context(), testUserID))
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestRecommendationHandler_RecommendResin_Success(t *testing.T) {
	service := &stubRecommendationService{}
	handler := handlers.NewRecommendationHandler(service)

	req := authedRequest("POST", "/api/recommendations/resin", resinBody(strings.ToUpper(testUserID)))
	req.Header.Set(handlers.IdempotencyHeader, "retry-key-1")
	w := httptest.NewRecorder()

	handler.RecommendResin(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, service.resinParams)
	assert.Equal(t, testUserID, service.resinParams.UserID)
	assert.Equal(t, "retry-key-1", service.resinParams.IdempotencyID)
	assert.Equal(t, "11", service.resinParams.Tooth)
	assert.True(t, service.resinParams.ClinicalData.StratificationNeeded)

	body := decodeMap(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["protocol"])
}

func TestRecommendationHandler_RecommendResin_InvalidPayload(t *testing.T) {
	service := &stubRecommendationService{}
	handler := handlers.NewRecommendationHandler(service)

	w := httptest.NewRecorder()
	handler.RecommendResin(w, authedRequest("POST", "/api/recommendations/resin", `{"tooth":"99"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, service.resinParams)
	assert.Equal(t, "VALIDATION", decodeMap(t, w)["code"])
}

func TestRecommendationHandler_RecommendResin_OtherUser(t *testing.T) {
	service := &stubRecommendationService{}
	handler := handlers.NewRecommendationHandler(service)

	w := httptest.NewRecorder()
	handler.RecommendResin(w, authedRequest("POST", "/api/recommendations/resin", resinBody("0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9")))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, service.resinParams)
}

func TestRecommendationHandler_ErrorMapping(t *testing.T) {
	resetAt := time.Date(2030, 1, 1, 12, 1, 0, 0, time.UTC)
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", apperrors.NewNotFoundError("evaluation not found"), http.StatusNotFound},
		{"forbidden", apperrors.NewForbiddenError("evaluation belongs to another user"), http.StatusForbidden},
		{"no credits", apperrors.NewInsufficientCreditsError("insufficient credits"), http.StatusPaymentRequired},
		{"rate limited", apperrors.NewRateLimitedError("rate limit exceeded", 1500*time.Millisecond, 0, resetAt), http.StatusTooManyRequests},
		{"ai failure", apperrors.NewAIProviderError("provider timeout", nil), http.StatusBadGateway},
		{"save failure", apperrors.NewPersistenceError("failed to save protocol", nil), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := handlers.NewRecommendationHandler(&stubRecommendationService{err: tc.err})
			w := httptest.NewRecorder()

			handler.RecommendResin(w, authedRequest("POST", "/api/recommendations/resin", resinBody(testUserID)))

			assert.Equal(t, tc.status, w.Code)
		})
	}

	t.Run("rate limit headers", func(t *testing.T) {
		err := apperrors.NewRateLimitedError("rate limit exceeded", 1500*time.Millisecond, 0, resetAt)
		handler := handlers.NewRecommendationHandler(&stubRecommendationService{err: err})
		w := httptest.NewRecorder()

		handler.RecommendResin(w, authedRequest("POST", "/api/recommendations/resin", resinBody(testUserID)))

		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1893499260", w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("persistence message asks for a retry", func(t *testing.T) {
		handler := handlers.NewRecommendationHandler(&stubRecommendationService{err: apperrors.NewPersistenceError("failed to save protocol", nil)})
		w := httptest.NewRecorder()

		handler.RecommendResin(w, authedRequest("POST", "/api/recommendations/resin", resinBody(testUserID)))

		body := decodeMap(t, w)
		assert.Contains(t, body["error"], "retry")
		assert.Equal(t, "PERSISTENCE", body["code"])
	})
}

func TestRecommendationHandler_RecommendCementation_NormalizesCeramic(t *testing.T) {
	service := &stubRecommendationService{}
	handler := handlers.NewRecommendationHandler(service)

	body := `{"evaluationId":"` + testEvaluationID + `","userId":"` + testUserID + `",` +
		`"teeth":["11","21"],"ceramicType":"IPS e.max","toothColor":"A2","bruxism":true}`
	w := httptest.NewRecorder()

	handler.RecommendCementation(w, authedRequest("POST", "/api/recommendations/cementation", body))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, service.cementationParams)
	assert.Equal(t, []string{"11", "21"}, service.cementationParams.Teeth)
	assert.Equal(t, "dissilicato_de_litio", service.cementationParams.CeramicType)
	assert.True(t, service.cementationParams.ClinicalData.Bruxism)
}

func TestRecommendationHandler_ValidateEvaluation(t *testing.T) {
	service := &stubRecommendationService{}
	handler := handlers.NewRecommendationHandler(service)

	w := httptest.NewRecorder()
	handler.ValidateEvaluation(w, authedRequest("POST", "/api/validate/evaluation", resinBody(testUserID)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeMap(t, w)["success"])

	w = httptest.NewRecorder()
	handler.ValidateEvaluation(w, authedRequest("POST", "/api/validate/evaluation", `{"tooth":"11"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	assert.Nil(t, service.resinParams)
}
