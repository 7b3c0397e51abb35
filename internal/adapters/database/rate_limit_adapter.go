package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

const rateLimitsTable = "usage_rate_limits"

// RateLimitAdapter stores sliding counters in one row per (user, operation)
type RateLimitAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRateLimitAdapter creates a new postgres rate limit adapter
func NewRateLimitAdapter(client *postgres.Client) repositories.RateLimitRepository {
	return &RateLimitAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Get returns the stored counters, or nil when the pair has never been used
func (a *RateLimitAdapter) Get(ctx context.Context, userID, operation string) (*entities.RateLimitCounters, error) {
	query, args, err := a.db.Select(
		"user_id", "operation",
		"minute_count", "minute_window",
		"hour_count", "hour_window",
		"day_count", "day_window",
	).From(rateLimitsTable).
		Prepared(true).
		Where(goqu.Ex{"user_id": userID, "operation": operation}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	counters := &entities.RateLimitCounters{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&counters.UserID, &counters.Operation,
		&counters.MinuteCount, &counters.MinuteWindow,
		&counters.HourCount, &counters.HourWindow,
		&counters.DayCount, &counters.DayWindow,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get rate limit counters", err)
	}
	return counters, nil
}

// windowCase bumps a counter that is still in its window and restarts a stale one.
// A window older than the stored one (clock skew between writers) counts against the stored window.
func windowCase(prefix string) goqu.Record {
	count := prefix + "_count"
	window := prefix + "_window"
	return goqu.Record{
		count: goqu.L(
			"CASE WHEN " + rateLimitsTable + "." + window + " >= EXCLUDED." + window +
				" THEN " + rateLimitsTable + "." + count + " + 1 ELSE 1 END",
		),
		window: goqu.L("GREATEST(" + rateLimitsTable + "." + window + ", EXCLUDED." + window + ")"),
	}
}

// underCeiling builds the upsert guard: the counter of every limited window,
// as it would stand before this use, must still be below its ceiling.
func underCeiling(limits entities.RateLimitConfig) exp.Expression {
	var conds []exp.Expression
	for _, window := range []struct {
		prefix string
		limit  int
	}{{"minute", limits.PerMinute}, {"hour", limits.PerHour}, {"day", limits.PerDay}} {
		if window.limit <= 0 {
			continue
		}
		count := rateLimitsTable + "." + window.prefix + "_count"
		stored := rateLimitsTable + "." + window.prefix + "_window"
		conds = append(conds, goqu.L(
			"(CASE WHEN "+stored+" >= EXCLUDED."+window.prefix+"_window THEN "+count+" ELSE 0 END) < ?",
			window.limit,
		))
	}
	if len(conds) == 0 {
		return nil
	}
	return goqu.And(conds...)
}

// Increment counts one use in every window with a single conditional upsert.
// The update only applies while every ceiling has room, so the check and the
// increment are one atomic statement.
func (a *RateLimitAdapter) Increment(ctx context.Context, userID, operation string, windows entities.RateLimitWindows, limits entities.RateLimitConfig) (bool, error) {
	update := goqu.Record{"updated_at": goqu.L("NOW()")}
	for _, prefix := range []string{"minute", "hour", "day"} {
		for k, v := range windowCase(prefix) {
			update[k] = v
		}
	}

	conflict := goqu.DoUpdate("user_id, operation", update)
	if guard := underCeiling(limits); guard != nil {
		conflict = conflict.Where(guard)
	}

	query, args, err := a.db.Insert(rateLimitsTable).
		Prepared(true).
		Rows(goqu.Record{
			"user_id":       userID,
			"operation":     operation,
			"minute_count":  1,
			"minute_window": windows.Minute,
			"hour_count":    1,
			"hour_window":   windows.Hour,
			"day_count":     1,
			"day_window":    windows.Day,
			"updated_at":    goqu.L("NOW()"),
		}).
		OnConflict(conflict).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build upsert query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to increment rate limit counters", err)
	}
	counted, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return counted > 0, nil
}
