package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/dentalprotocols/backend/internal/api/middleware"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams evaluation status events of a clinical session
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration

	mu      sync.Mutex
	clients map[string]int // channel -> open streams
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
		clients:   make(map[string]int),
	}
}

// WithHeartbeat overrides the heartbeat interval
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	h.heartbeat = interval
	return h
}

// StreamSession handles GET /api/stream/sessions/{id}
func (h *SSEHandler) StreamSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx).With().
		Str("session_id", sessionID).
		Str("user_id", middleware.UserIDFromContext(ctx)).
		Logger()

	channel := providers.GetSessionChannel(sessionID)
	events, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to session events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	h.register(channel)
	defer h.unregister(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.sendEvent(w, "connected", map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Client disconnected from session stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// ClientCount returns the number of open session streams
func (h *SSEHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}

func (h *SSEHandler) register(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *SSEHandler) unregister(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event_type", eventType).Msg("Failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
