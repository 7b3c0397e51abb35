package repositories

import (
	"context"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// RateLimitRepository stores per-(user, operation) sliding counters.
// Increment is a conditional increment that must be atomic in the store
// itself: implementations may run on many processes at once.
type RateLimitRepository interface {
	Get(ctx context.Context, userID, operation string) (*entities.RateLimitCounters, error)
	// Increment counts one use in every window unless a positive ceiling in
	// limits is already reached, and reports whether the use was counted.
	Increment(ctx context.Context, userID, operation string, windows entities.RateLimitWindows, limits entities.RateLimitConfig) (bool, error)
}

// CreditRepository stores the metered credit balance and its ledger
type CreditRepository interface {
	Consume(ctx context.Context, userID, operation, idempotencyID string, amount int) (entities.CreditResult, error)
	Refund(ctx context.Context, userID, operation, idempotencyID string) error
	// Settled reports a consumed, unrefunded attempt for the idempotency id
	Settled(ctx context.Context, userID, operation, idempotencyID string) (bool, error)
	RecordRefundFailure(ctx context.Context, failure *entities.RefundFailure) error
	ListRefundFailures(ctx context.Context, limit int) ([]*entities.RefundFailure, error)
	ResolveRefundFailure(ctx context.Context, id string, lastErr error) error
}
