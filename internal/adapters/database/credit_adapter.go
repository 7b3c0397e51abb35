package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

const refundFailuresTable = "credit_refund_failures"

// Ledger statements run inside one transaction per call. Each consume of an
// idempotency id opens an attempt; a refund closes the latest one, so the
// next consume of the same id opens attempt n+1 and debits again. The unique
// key (user_id, operation, idempotency_id, kind, attempt) makes consume and
// refund replay-safe within an attempt.
const (
	insertConsumeSQL = `INSERT INTO credit_ledger (id, user_id, operation, idempotency_id, kind, amount, attempt, created_at)
VALUES ($1, $2, $3, $4, 'consume', $5,
	(SELECT COUNT(*) + 1 FROM credit_ledger WHERE user_id = $2 AND operation = $3 AND idempotency_id = $4 AND kind = 'refund'),
	$6)
ON CONFLICT (user_id, operation, idempotency_id, kind, attempt) DO NOTHING`

	debitBalanceSQL = `UPDATE user_credits SET balance = balance - $2, updated_at = NOW()
WHERE user_id = $1 AND balance >= $2
RETURNING balance`

	selectBalanceSQL = `SELECT balance FROM user_credits WHERE user_id = $1`

	insertRefundSQL = `INSERT INTO credit_ledger (id, user_id, operation, idempotency_id, kind, amount, attempt, created_at)
SELECT $1, user_id, operation, idempotency_id, 'refund', amount, attempt, $5
FROM credit_ledger
WHERE user_id = $2 AND operation = $3 AND idempotency_id = $4 AND kind = 'consume'
ORDER BY attempt DESC
LIMIT 1
ON CONFLICT (user_id, operation, idempotency_id, kind, attempt) DO NOTHING
RETURNING amount`

	settledConsumeSQL = `SELECT EXISTS (
	SELECT 1 FROM credit_ledger c
	WHERE c.user_id = $1 AND c.operation = $2 AND c.idempotency_id = $3 AND c.kind = 'consume'
	AND NOT EXISTS (
		SELECT 1 FROM credit_ledger r
		WHERE r.user_id = c.user_id AND r.operation = c.operation AND r.idempotency_id = c.idempotency_id
		AND r.kind = 'refund' AND r.attempt = c.attempt
	)
)`

	creditBalanceSQL = `UPDATE user_credits SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1`
)

// CreditAdapter implements the CreditRepository interface
type CreditAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewCreditAdapter creates a new credit adapter
func NewCreditAdapter(client *postgres.Client) repositories.CreditRepository {
	return &CreditAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

// Consume debits amount once per open attempt of an idempotency id. A replayed
// id reports the current balance without debiting again; an id whose last
// attempt was refunded is debited afresh.
func (a *CreditAdapter) Consume(ctx context.Context, userID, operation, idempotencyID string, amount int) (entities.CreditResult, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return entities.CreditResult{}, apperrors.NewInternalError("failed to begin credit transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, insertConsumeSQL, uuid.NewString(), userID, operation, idempotencyID, amount, a.now())
	if err != nil {
		return entities.CreditResult{}, apperrors.NewInternalError("failed to write credit ledger", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return entities.CreditResult{}, apperrors.NewInternalError("failed to get rows affected", err)
	}

	if inserted == 0 {
		balance, err := balanceOf(ctx, tx, userID)
		if err != nil {
			return entities.CreditResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return entities.CreditResult{}, apperrors.NewInternalError("failed to commit credit transaction", err)
		}
		return entities.CreditResult{Allowed: true, Balance: balance, Replayed: true}, nil
	}

	var balance int
	err = tx.QueryRowContext(ctx, debitBalanceSQL, userID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// rolling back also discards the ledger row written above
		_ = tx.Rollback()
		current, err := balanceOf(ctx, a.client.DB(), userID)
		if err != nil {
			return entities.CreditResult{}, err
		}
		return entities.CreditResult{Allowed: false, Balance: current}, nil
	}
	if err != nil {
		return entities.CreditResult{}, apperrors.NewInternalError("failed to debit credits", err)
	}

	if err := tx.Commit(); err != nil {
		return entities.CreditResult{}, apperrors.NewInternalError("failed to commit credit transaction", err)
	}
	return entities.CreditResult{Allowed: true, Balance: balance}, nil
}

// Refund re-credits the latest consumed attempt at most once. Refunding an id
// that was never consumed, or whose latest attempt was already refunded, is a no-op.
func (a *CreditAdapter) Refund(ctx context.Context, userID, operation, idempotencyID string) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin refund transaction", err)
	}
	defer tx.Rollback()

	var amount int
	err = tx.QueryRowContext(ctx, insertRefundSQL, uuid.NewString(), userID, operation, idempotencyID, a.now()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.Commit()
	}
	if err != nil {
		return apperrors.NewInternalError("failed to write refund ledger", err)
	}

	if _, err := tx.ExecContext(ctx, creditBalanceSQL, userID, amount); err != nil {
		return apperrors.NewInternalError("failed to credit balance", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit refund transaction", err)
	}
	return nil
}

// Settled reports whether the idempotency id holds a consumed attempt that was
// not refunded, meaning a request under that id already completed.
func (a *CreditAdapter) Settled(ctx context.Context, userID, operation, idempotencyID string) (bool, error) {
	var settled bool
	if err := a.client.DB().QueryRowContext(ctx, settledConsumeSQL, userID, operation, idempotencyID).Scan(&settled); err != nil {
		return false, apperrors.NewInternalError("failed to read credit ledger", err)
	}
	return settled, nil
}

// RecordRefundFailure writes an outbox row for the sweeper
func (a *CreditAdapter) RecordRefundFailure(ctx context.Context, failure *entities.RefundFailure) error {
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	if failure.Attempts == 0 {
		failure.Attempts = 1
	}
	failure.CreatedAt = a.now()

	query, args, err := a.db.Insert(refundFailuresTable).
		Prepared(true).
		Rows(goqu.Record{
			"id":             failure.ID,
			"user_id":        failure.UserID,
			"operation":      failure.Operation,
			"idempotency_id": failure.IdempotencyID,
			"last_error":     failure.LastError,
			"attempts":       failure.Attempts,
			"created_at":     failure.CreatedAt,
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record refund failure", err)
	}
	return nil
}

// ListRefundFailures returns the oldest unresolved outbox rows
func (a *CreditAdapter) ListRefundFailures(ctx context.Context, limit int) ([]*entities.RefundFailure, error) {
	ds := a.db.Select("id", "user_id", "operation", "idempotency_id", "last_error", "attempts", "created_at").
		From(refundFailuresTable).
		Prepared(true).
		Where(goqu.C("resolved_at").IsNull()).
		Order(goqu.I("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list refund failures", err)
	}
	defer rows.Close()

	var failures []*entities.RefundFailure
	for rows.Next() {
		f := &entities.RefundFailure{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.Operation, &f.IdempotencyID, &f.LastError, &f.Attempts, &f.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan refund failure", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate refund failures", err)
	}
	return failures, nil
}

// ResolveRefundFailure marks a row resolved, or records another failed attempt when lastErr is set
func (a *CreditAdapter) ResolveRefundFailure(ctx context.Context, id string, lastErr error) error {
	record := goqu.Record{"attempts": goqu.L("attempts + 1")}
	if lastErr != nil {
		record["last_error"] = lastErr.Error()
	} else {
		record["resolved_at"] = a.now()
	}

	query, args, err := a.db.Update(refundFailuresTable).
		Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update refund failure", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("refund failure with id %s not found", id))
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// balanceOf treats a user without a credits row as having zero balance
func balanceOf(ctx context.Context, q queryRower, userID string) (int, error) {
	var balance int
	err := q.QueryRowContext(ctx, selectBalanceSQL, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read credit balance", err)
	}
	return balance, nil
}
