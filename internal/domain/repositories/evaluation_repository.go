package repositories

import (
	"context"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// EvaluationRepository defines operations for evaluation storage
type EvaluationRepository interface {
	Insert(ctx context.Context, evaluation *entities.Evaluation) (string, error)
	Update(ctx context.Context, id string, patch entities.EvaluationPatch) error
	UpdateStatus(ctx context.Context, id string, status entities.EvaluationStatus) error
	UpdateStatusBulk(ctx context.Context, ids []string, status entities.EvaluationStatus) error
	UpdateBulk(ctx context.Context, ids []string, patch entities.EvaluationPatch) error
	GetByID(ctx context.Context, id string) (*entities.Evaluation, error)
	ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.Evaluation, error)
}

// PendingToothRepository defines operations for the per-session pending teeth store
type PendingToothRepository interface {
	ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.PendingTooth, error)
	DeleteTeeth(ctx context.Context, sessionID string, teeth []string) error
}

// GenericProtocolRepository persists template-based protocols
type GenericProtocolRepository interface {
	SaveGenericProtocol(ctx context.Context, evaluationID string, protocol *entities.GenericProtocol) error
}
