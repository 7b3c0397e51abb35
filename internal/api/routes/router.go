package routes

import (
	"net/http"

	"github.com/zatekoja/dentalprotocols/backend/internal/api/handlers"
	"github.com/zatekoja/dentalprotocols/backend/internal/api/middleware"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	recommendationHandler *handlers.RecommendationHandler
	sessionHandler        *handlers.SessionHandler
	sseHandler            *handlers.SSEHandler

	metrics        *observability.Metrics
	allowedOrigins []string
}

// NewRouter creates a new router
func NewRouter(
	recommendationHandler *handlers.RecommendationHandler,
	sessionHandler *handlers.SessionHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                   http.NewServeMux(),
		recommendationHandler: recommendationHandler,
		sessionHandler:        sessionHandler,
		sseHandler:            sseHandler,
		metrics:               metrics,
	}
}

// WithAllowedOrigins restricts CORS to the given origins
func (r *Router) WithAllowedOrigins(origins []string) *Router {
	r.allowedOrigins = origins
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Recommendation endpoints
	r.handle("POST /api/recommendations/resin", r.recommendationHandler.RecommendResin)
	r.handle("POST /api/recommendations/cementation", r.recommendationHandler.RecommendCementation)
	r.handle("POST /api/validate/evaluation", r.recommendationHandler.ValidateEvaluation)

	// Session endpoints
	r.handle("POST /api/sessions/{id}/teeth", r.sessionHandler.SubmitTeeth)
	r.handle("POST /api/sessions/{id}/regenerate", r.sessionHandler.RegenerateWithBudget)
	r.handle("POST /api/sessions/{id}/sync", r.sessionHandler.SyncProtocols)
	r.handle("GET /api/sessions/{id}/evaluations", r.sessionHandler.ListEvaluations)

	// Evaluation endpoints
	r.handle("GET /api/evaluations/{id}", r.sessionHandler.GetEvaluation)
	r.handle("POST /api/evaluations/{id}/retry", r.sessionHandler.RetryEvaluation)
	r.handle("PATCH /api/evaluations/{id}/checklist", r.sessionHandler.UpdateChecklist)
	r.handle("POST /api/evaluations/{id}/complete", r.sessionHandler.CompleteEvaluation)

	// Status stream
	if r.sseHandler != nil {
		r.handle("GET /api/stream/sessions/{id}", r.sseHandler.StreamSession)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics, r.routePattern)(handler)

	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}

// handle registers an authenticated API route
func (r *Router) handle(pattern string, fn http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.RequireUser(fn))
}

func (r *Router) routePattern(req *http.Request) string {
	_, pattern := r.mux.Handler(req)
	return pattern
}
