package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

const pendingTeethTable = "session_pending_teeth"

// PendingToothAdapter implements the PendingToothRepository interface
type PendingToothAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPendingToothAdapter creates a new pending tooth adapter
func NewPendingToothAdapter(client *postgres.Client) repositories.PendingToothRepository {
	return &PendingToothAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListBySession returns the teeth still awaiting evaluation in a session
func (a *PendingToothAdapter) ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.PendingTooth, error) {
	cols := columns(
		[]interface{}{"session_id", "user_id", "tooth", "treatment_type", "ai_indication_reason"},
		clinicalColumns,
		[]interface{}{"created_at"},
	)
	query, args, err := a.db.Select(cols...).
		From(pendingTeethTable).
		Prepared(true).
		Where(goqu.Ex{"session_id": sessionID, "user_id": userID}).
		Order(goqu.I("created_at").Asc(), goqu.I("tooth").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list pending teeth", err)
	}
	defer rows.Close()

	var teeth []*entities.PendingTooth
	for rows.Next() {
		tooth := &entities.PendingTooth{}
		var treatmentType string
		targets := []interface{}{&tooth.SessionID, &tooth.UserID, &tooth.Tooth, &treatmentType, &tooth.AIIndicationReason}
		targets = append(targets, clinicalTargets(&tooth.ClinicalData)...)
		targets = append(targets, &tooth.CreatedAt)

		if err := rows.Scan(targets...); err != nil {
			return nil, apperrors.NewInternalError("failed to scan pending tooth", err)
		}
		tooth.TreatmentType = entities.ParseTreatmentType(treatmentType)
		teeth = append(teeth, tooth)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate pending teeth", err)
	}

	return teeth, nil
}

// DeleteTeeth removes the given teeth from a session's pending set
func (a *PendingToothAdapter) DeleteTeeth(ctx context.Context, sessionID string, teeth []string) error {
	if len(teeth) == 0 {
		return nil
	}

	query, args, err := a.db.Delete(pendingTeethTable).
		Prepared(true).
		Where(goqu.Ex{"session_id": sessionID, "tooth": teeth}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete pending teeth", err)
	}
	return nil
}
