package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

// maxBodyBytes caps request payloads; photo paths are the largest field
const maxBodyBytes = 1 << 20

const persistenceMessage = "protocol generated but failed to save, retry"

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// respondWithAppError maps an application error to its HTTP status. Errors
// that are not AppErrors are reported as internal.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	code := string(appErr.Type)
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeUnauthorized:
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeForbidden:
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeNotFound:
		respondWithJSON(w, http.StatusNotFound, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeConflict:
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeInsufficientCredits:
		respondWithJSON(w, http.StatusPaymentRequired, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeRateLimited:
		setRateLimitHeaders(w, appErr)
		respondWithJSON(w, http.StatusTooManyRequests, errorResponse{Error: appErr.Message, Code: code})
	case apperrors.ErrorTypeAIProvider, apperrors.ErrorTypeExternal:
		logFailure(r, err)
		respondWithJSON(w, http.StatusBadGateway, errorResponse{Error: "protocol generation failed", Code: code, Message: appErr.Message})
	case apperrors.ErrorTypePersistence:
		logFailure(r, err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: persistenceMessage, Code: code})
	default:
		logFailure(r, err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: string(apperrors.ErrorTypeInternal)})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, appErr *apperrors.AppError) {
	retryAfter := int(math.Ceil(appErr.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(appErr.Remaining))
	if !appErr.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(appErr.ResetAt.Unix(), 10))
	}
}

func logFailure(r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Request failed")
}

// readBody reads a size-capped request body
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}
