package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// EvaluationEventType represents the type of evaluation event
type EvaluationEventType string

const (
	EvaluationEventStatusChanged   EvaluationEventType = "status_changed"
	EvaluationEventProtocolSynced  EvaluationEventType = "protocol_synced"
	EvaluationEventSubmitCompleted EvaluationEventType = "submit_completed"
)

// EvaluationEvent is a real-time update about evaluations in a session
type EvaluationEvent struct {
	ID           string              `json:"id"`
	SessionID    string              `json:"session_id"`
	EvaluationID string              `json:"evaluation_id,omitempty"`
	Tooth        string              `json:"tooth,omitempty"`
	EventType    EvaluationEventType `json:"event_type"`
	Status       EvaluationStatus    `json:"status,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// NewEvaluationEvent creates a new evaluation event
func NewEvaluationEvent(sessionID, evaluationID, tooth string, eventType EvaluationEventType, status EvaluationStatus) *EvaluationEvent {
	return &EvaluationEvent{
		ID:           generateEventID(),
		SessionID:    sessionID,
		EvaluationID: evaluationID,
		Tooth:        tooth,
		EventType:    eventType,
		Status:       status,
		Timestamp:    time.Now(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
