package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

// BestEffort is a follow-up action whose failure is logged and never reaches
// the caller. Protocol sync and credit refunds run this way.
type BestEffort func(ctx context.Context) error

// Run executes the action synchronously and reports whether it succeeded.
// Cancellation of the parent context does not abort the action.
func (b BestEffort) Run(ctx context.Context, action string) (ok bool) {
	ctx = context.WithoutCancel(ctx)
	logger := observability.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("action", action).
				Str("panic", fmt.Sprint(r)).
				Msg("Best-effort action panicked")
			ok = false
		}
	}()

	if err := b(ctx); err != nil {
		logger.Warn().Err(err).Str("action", action).Msg("Best-effort action failed")
		return false
	}
	return true
}
