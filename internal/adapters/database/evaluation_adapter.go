package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

const evaluationsTable = "evaluations"

var evaluationColumns = []interface{}{
	"id", "user_id", "patient_id", "session_id", "tooth", "treatment_type",
	"ai_indication_reason", "status",
}

var evaluationTailColumns = []interface{}{
	"stratification_protocol", "cementation_protocol", "generic_protocol",
	"checklist_progress", "created_at", "updated_at",
}

// EvaluationAdapter implements EvaluationRepository and GenericProtocolRepository
type EvaluationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewEvaluationAdapter creates a new evaluation adapter
func NewEvaluationAdapter(client *postgres.Client) *EvaluationAdapter {
	return &EvaluationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

// Insert creates an evaluation row and returns its id
func (a *EvaluationAdapter) Insert(ctx context.Context, evaluation *entities.Evaluation) (string, error) {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := a.now()
	evaluation.CreatedAt = now
	evaluation.UpdatedAt = now

	record := clinicalRecord(evaluation.ClinicalData)
	record["id"] = evaluation.ID
	record["user_id"] = evaluation.UserID
	record["patient_id"] = nullableString(evaluation.PatientID)
	record["session_id"] = evaluation.SessionID
	record["tooth"] = evaluation.Tooth
	record["treatment_type"] = string(evaluation.TreatmentType)
	record["ai_indication_reason"] = evaluation.AIIndicationReason
	record["status"] = string(evaluation.Status)
	record["created_at"] = now
	record["updated_at"] = now

	progress, err := jsonbText(evaluation.ChecklistProgress)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode checklist progress", err)
	}
	record["checklist_progress"] = progress

	query, args, err := a.db.Insert(evaluationsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return "", apperrors.NewInternalError("failed to create evaluation", err)
	}

	return evaluation.ID, nil
}

// Update applies a patch to one evaluation
func (a *EvaluationAdapter) Update(ctx context.Context, id string, patch entities.EvaluationPatch) error {
	record, err := a.patchRecord(patch)
	if err != nil {
		return err
	}
	return a.updateOne(ctx, id, record)
}

// UpdateStatus sets the status of one evaluation
func (a *EvaluationAdapter) UpdateStatus(ctx context.Context, id string, status entities.EvaluationStatus) error {
	return a.updateOne(ctx, id, goqu.Record{"status": string(status), "updated_at": a.now()})
}

// UpdateStatusBulk sets the status of many evaluations in one statement
func (a *EvaluationAdapter) UpdateStatusBulk(ctx context.Context, ids []string, status entities.EvaluationStatus) error {
	return a.updateMany(ctx, ids, goqu.Record{"status": string(status), "updated_at": a.now()})
}

// UpdateBulk applies the same patch to many evaluations in one statement
func (a *EvaluationAdapter) UpdateBulk(ctx context.Context, ids []string, patch entities.EvaluationPatch) error {
	record, err := a.patchRecord(patch)
	if err != nil {
		return err
	}
	return a.updateMany(ctx, ids, record)
}

// SaveGenericProtocol stores a template-based protocol on its evaluation
func (a *EvaluationAdapter) SaveGenericProtocol(ctx context.Context, evaluationID string, protocol *entities.GenericProtocol) error {
	return a.Update(ctx, evaluationID, entities.EvaluationPatch{GenericProtocol: protocol})
}

// GetByID retrieves an evaluation; a missing row yields nil without error
func (a *EvaluationAdapter) GetByID(ctx context.Context, id string) (*entities.Evaluation, error) {
	query, args, err := a.selectEvaluations().
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	evaluation, err := scanEvaluation(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get evaluation", err)
	}
	return evaluation, nil
}

// ListBySession returns a user's evaluations of a session in creation order
func (a *EvaluationAdapter) ListBySession(ctx context.Context, sessionID, userID string) ([]*entities.Evaluation, error) {
	query, args, err := a.selectEvaluations().
		Where(goqu.Ex{"session_id": sessionID, "user_id": userID}).
		Order(goqu.I("created_at").Asc(), goqu.I("tooth").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list evaluations", err)
	}
	defer rows.Close()

	var evaluations []*entities.Evaluation
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan evaluation", err)
		}
		evaluations = append(evaluations, evaluation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate evaluations", err)
	}

	return evaluations, nil
}

func (a *EvaluationAdapter) selectEvaluations() *goqu.SelectDataset {
	return a.db.Select(columns(evaluationColumns, clinicalColumns, evaluationTailColumns)...).
		From(evaluationsTable).
		Prepared(true)
}

func (a *EvaluationAdapter) updateOne(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update(evaluationsTable).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update evaluation", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("evaluation with id %s not found", id))
	}
	return nil
}

func (a *EvaluationAdapter) updateMany(ctx context.Context, ids []string, record goqu.Record) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := a.db.Update(evaluationsTable).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build bulk update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update evaluations", err)
	}
	return nil
}

// patchRecord renders the non-nil fields of a patch; jsonb columns go as text
func (a *EvaluationAdapter) patchRecord(patch entities.EvaluationPatch) (goqu.Record, error) {
	record := goqu.Record{"updated_at": a.now()}

	if patch.Status != nil {
		record["status"] = string(*patch.Status)
	}
	if patch.Budget != nil {
		record["budget"] = *patch.Budget
	}
	if patch.AestheticLevel != nil {
		record["aesthetic_level"] = *patch.AestheticLevel
	}

	if patch.StratificationProtocol != nil {
		v, err := jsonbText(patch.StratificationProtocol)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode stratification protocol", err)
		}
		record["stratification_protocol"] = v
	}
	if patch.CementationProtocol != nil {
		v, err := jsonbText(patch.CementationProtocol)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode cementation protocol", err)
		}
		record["cementation_protocol"] = v
	}
	if patch.GenericProtocol != nil {
		v, err := jsonbText(patch.GenericProtocol)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode generic protocol", err)
		}
		record["generic_protocol"] = v
	}
	if patch.ChecklistProgress != nil {
		v, err := jsonbText(*patch.ChecklistProgress)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode checklist progress", err)
		}
		record["checklist_progress"] = v
	}

	return record, nil
}

func scanEvaluation(row rowScanner) (*entities.Evaluation, error) {
	evaluation := &entities.Evaluation{}
	var patientID sql.NullString
	var treatmentType, status string

	targets := []interface{}{
		&evaluation.ID, &evaluation.UserID, &patientID, &evaluation.SessionID, &evaluation.Tooth,
		&treatmentType, &evaluation.AIIndicationReason, &status,
	}
	targets = append(targets, clinicalTargets(&evaluation.ClinicalData)...)
	targets = append(targets,
		&evaluation.StratificationProtocol, &evaluation.CementationProtocol, &evaluation.GenericProtocol,
		&evaluation.ChecklistProgress, &evaluation.CreatedAt, &evaluation.UpdatedAt,
	)

	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	evaluation.PatientID = patientID.String
	evaluation.TreatmentType = entities.ParseTreatmentType(treatmentType)
	evaluation.Status = entities.EvaluationStatus(status)
	return evaluation, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
