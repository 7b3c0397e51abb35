package services

import (
	"context"
	"time"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
	"github.com/zatekoja/dentalprotocols/backend/pkg/retry"
)

// SweepResult summarizes one pass over the refund outbox
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// RefundSweeper replays refunds that failed inline. Refunds are idempotent, so
// replaying a row whose refund did land is harmless.
type RefundSweeper struct {
	credits  repositories.CreditRepository
	retryCfg retry.Config
}

// NewRefundSweeper creates a new refund sweeper
func NewRefundSweeper(credits repositories.CreditRepository, retryCfg retry.Config) *RefundSweeper {
	return &RefundSweeper{credits: credits, retryCfg: retryCfg}
}

// DefaultSweepRetry is a short backoff for one refund replay.
func DefaultSweepRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 10 * time.Second,
	}
}

// Sweep replays up to limit unresolved refund failures.
func (s *RefundSweeper) Sweep(ctx context.Context, limit int) (*SweepResult, error) {
	logger := observability.LoggerFromContext(ctx)

	failures, err := s.credits.ListRefundFailures(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list refund failures", err)
	}

	result := &SweepResult{Scanned: len(failures)}
	for _, f := range failures {
		refundErr := retry.DoWithLog(ctx, s.retryCfg, "refund_sweeper", func() error {
			return s.credits.Refund(ctx, f.UserID, f.Operation, f.IdempotencyID)
		}, func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).
				Str("refund_failure_id", f.ID).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Msg("Refund replay failed, retrying")
		})

		if err := s.credits.ResolveRefundFailure(ctx, f.ID, refundErr); err != nil {
			logger.Error().Err(err).Str("refund_failure_id", f.ID).Msg("Failed to update refund failure")
		}

		if refundErr != nil {
			result.Failed++
			logger.Error().Err(refundErr).
				Str("refund_failure_id", f.ID).
				Str("user_id", f.UserID).
				Str("idempotency_id", f.IdempotencyID).
				Msg("Refund replay exhausted retries")
			continue
		}
		result.Resolved++
	}

	logger.Info().
		Int("scanned", result.Scanned).
		Int("resolved", result.Resolved).
		Int("failed", result.Failed).
		Msg("Refund sweep completed")
	return result, nil
}
