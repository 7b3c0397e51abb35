package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// UsageGuard enforces per-user rate limits and meters credits for AI-backed operations
type UsageGuard struct {
	rateLimits repositories.RateLimitRepository
	credits    repositories.CreditRepository
	limits     config.RateLimitConfig
	costs      config.CreditsConfig
	now        func() time.Time
}

// NewUsageGuard creates a new usage guard
func NewUsageGuard(
	rateLimits repositories.RateLimitRepository,
	credits repositories.CreditRepository,
	limits config.RateLimitConfig,
	costs config.CreditsConfig,
) *UsageGuard {
	return &UsageGuard{
		rateLimits: rateLimits,
		credits:    credits,
		limits:     limits,
		costs:      costs,
		now:        time.Now,
	}
}

// WithClock replaces the guard's clock. Used by tests and the CLI.
func (g *UsageGuard) WithClock(now func() time.Time) *UsageGuard {
	g.now = now
	return g
}

// LimitsFor returns the configured ceilings of an operation.
func (g *UsageGuard) LimitsFor(operation string) entities.RateLimitConfig {
	l := g.limits.LimitFor(operation)
	return entities.RateLimitConfig{PerMinute: l.PerMinute, PerHour: l.PerHour, PerDay: l.PerDay}
}

// CheckRateLimit applies the minute, hour and day ceilings of an operation and
// counts the request when it is allowed. The store re-checks the ceilings while
// incrementing, so concurrent requests cannot overshoot them. Store failures
// let the request through.
func (g *UsageGuard) CheckRateLimit(ctx context.Context, userID, operation string, cfg entities.RateLimitConfig) entities.RateLimitResult {
	logger := observability.LoggerFromContext(ctx)
	now := g.now()
	w := entities.WindowsAt(now)
	minuteEnd := w.Minute.Add(time.Minute)

	counters, err := g.rateLimits.Get(ctx, userID, operation)
	if err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Str("operation", operation).
			Msg("Rate limit lookup failed, allowing request")
		return entities.RateLimitResult{Allowed: true, Remaining: -1, ResetAt: minuteEnd}
	}

	if result, over := exceeded(now, w, counters, cfg); over {
		return result
	}

	counted, err := g.rateLimits.Increment(ctx, userID, operation, w, cfg)
	if err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Str("operation", operation).
			Msg("Rate limit increment failed, allowing request")
	} else if !counted {
		// a concurrent request took the last slot between the read and the increment
		return g.lostRace(ctx, now, w, userID, operation, cfg)
	}

	minute, hour, day := counters.Current(w)
	remaining := -1
	for _, window := range []struct{ used, limit int }{
		{minute, cfg.PerMinute}, {hour, cfg.PerHour}, {day, cfg.PerDay},
	} {
		if window.limit <= 0 {
			continue
		}
		left := window.limit - window.used - 1
		if remaining < 0 || left < remaining {
			remaining = left
		}
	}

	return entities.RateLimitResult{Allowed: true, Remaining: remaining, ResetAt: minuteEnd}
}

// exceeded applies the ceilings to stored counters. The day window takes
// precedence over the hour, and the hour over the minute, for the reset time.
func exceeded(now time.Time, w entities.RateLimitWindows, counters *entities.RateLimitCounters, cfg entities.RateLimitConfig) (entities.RateLimitResult, bool) {
	minute, hour, day := counters.Current(w)
	switch {
	case reached(day, cfg.PerDay):
		return denied(now, w.Day.AddDate(0, 0, 1)), true
	case reached(hour, cfg.PerHour):
		return denied(now, w.Hour.Add(time.Hour)), true
	case reached(minute, cfg.PerMinute):
		return denied(now, w.Minute.Add(time.Minute)), true
	}
	return entities.RateLimitResult{}, false
}

// lostRace denies a request whose conditional increment was refused, taking the
// reset time from a fresh read. Without one the minute window is assumed.
func (g *UsageGuard) lostRace(ctx context.Context, now time.Time, w entities.RateLimitWindows, userID, operation string, cfg entities.RateLimitConfig) entities.RateLimitResult {
	counters, err := g.rateLimits.Get(ctx, userID, operation)
	if err == nil {
		if result, over := exceeded(now, w, counters, cfg); over {
			return result
		}
	}
	return denied(now, w.Minute.Add(time.Minute))
}

// reached reports whether a counter hit its ceiling. A non-positive ceiling is unlimited.
func reached(count, limit int) bool {
	return limit > 0 && count >= limit
}

func denied(now, resetAt time.Time) entities.RateLimitResult {
	return entities.RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// ConsumeCredits charges the configured cost of an operation once per idempotency id.
func (g *UsageGuard) ConsumeCredits(ctx context.Context, userID, operation, idempotencyID string) (entities.CreditResult, error) {
	result, err := g.credits.Consume(ctx, userID, operation, idempotencyID, g.costs.CostOf(operation))
	if err != nil {
		return result, apperrors.NewInternalError("failed to consume credits", err)
	}
	if !result.Allowed {
		return result, apperrors.NewInsufficientCreditsError(
			fmt.Sprintf("insufficient credits for %s (balance %d)", operation, result.Balance))
	}
	return result, nil
}

// settled reports whether the idempotency id already paid for a completed request.
// A ledger read failure is logged and treated as unsettled; the consume step
// still catches the replay.
func (g *UsageGuard) settled(ctx context.Context, userID, operation, idempotencyID string) bool {
	done, err := g.credits.Settled(ctx, userID, operation, idempotencyID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("operation", operation).
			Str("idempotency_id", idempotencyID).
			Msg("Idempotency lookup failed")
		return false
	}
	return done
}

func errAlreadyProcessed(operation string) error {
	return apperrors.NewConflictError(
		fmt.Sprintf("request for %s with this idempotency key was already processed", operation))
}

// RefundCredits returns the credits of a consumed idempotency id. Repeated refunds are no-ops.
func (g *UsageGuard) RefundCredits(ctx context.Context, userID, operation, idempotencyID string) error {
	return g.credits.Refund(ctx, userID, operation, idempotencyID)
}

// RefundBestEffort refunds without ever failing the caller. A refund that cannot
// be applied is written to the refund outbox for the sweeper.
func (g *UsageGuard) RefundBestEffort(ctx context.Context, userID, operation, idempotencyID string, cause error) {
	var refundErr error
	refund := BestEffort(func(ctx context.Context) error {
		refundErr = g.RefundCredits(ctx, userID, operation, idempotencyID)
		return refundErr
	})
	if refund.Run(ctx, "refund_credits") {
		observability.LoggerFromContext(ctx).Info().
			Str("user_id", userID).
			Str("operation", operation).
			Str("idempotency_id", idempotencyID).
			AnErr("cause", cause).
			Msg("Credits refunded")
		return
	}

	observability.RecordRefundFailure(ctx, operation)
	lastErr := "refund panicked"
	if refundErr != nil {
		lastErr = refundErr.Error()
	}
	record := BestEffort(func(ctx context.Context) error {
		return g.credits.RecordRefundFailure(ctx, &entities.RefundFailure{
			UserID:        userID,
			Operation:     operation,
			IdempotencyID: idempotencyID,
			LastError:     lastErr,
			Attempts:      1,
			CreatedAt:     g.now(),
		})
	})
	record.Run(ctx, "record_refund_failure")
}

// MeteredCall describes one credit-protected AI operation
type MeteredCall[T any] struct {
	UserID        string
	Operation     string
	IdempotencyID string
	// Generate calls the AI provider and returns a validated, corrected result.
	Generate func(ctx context.Context) (T, error)
	// Persist stores the result. A failure here refunds the consumed credits.
	Persist func(ctx context.Context, result T) error
}

// RunMetered runs rate limit, generation, credit consumption and persistence in
// that order, refunding the credits when anything fails after consumption.
// An idempotency id that already paid for a completed request is rejected
// before the AI call, and a consume that turns out to be a replay is never persisted.
func RunMetered[T any](ctx context.Context, guard *UsageGuard, call MeteredCall[T]) (T, error) {
	var zero T

	ctx, span := observability.StartSpan(ctx, "metered."+call.Operation)
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("operation", call.Operation),
		attribute.String("idempotency_id", call.IdempotencyID),
	)

	if guard.settled(ctx, call.UserID, call.Operation, call.IdempotencyID) {
		return zero, errAlreadyProcessed(call.Operation)
	}

	rl := guard.CheckRateLimit(ctx, call.UserID, call.Operation, guard.LimitsFor(call.Operation))
	if !rl.Allowed {
		observability.RecordGuardDenial(ctx, call.Operation, observability.DenialRateLimit)
		return zero, apperrors.NewRateLimitedError(
			fmt.Sprintf("rate limit exceeded for %s", call.Operation), rl.RetryAfter, rl.Remaining, rl.ResetAt)
	}

	result, err := call.Generate(ctx)
	if err != nil {
		if apperrors.TypeOf(err) != "" {
			return zero, err
		}
		return zero, apperrors.NewAIProviderError("failed to generate protocol", err)
	}

	consumed, err := guard.ConsumeCredits(ctx, call.UserID, call.Operation, call.IdempotencyID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInsufficientCredits) {
			observability.RecordGuardDenial(ctx, call.Operation, observability.DenialCredits)
		}
		return zero, err
	}
	if consumed.Replayed {
		// a concurrent request with the same id paid first
		return zero, errAlreadyProcessed(call.Operation)
	}

	if err := call.Persist(ctx, result); err != nil {
		guard.RefundBestEffort(ctx, call.UserID, call.Operation, call.IdempotencyID, err)
		return zero, apperrors.NewPersistenceError("protocol generated but failed to save, retry", err)
	}
	return result, nil
}
