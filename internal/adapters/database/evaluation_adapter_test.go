package database

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// statementLog records every SQL statement the mock receives
type statementLog struct {
	mu   sync.Mutex
	sqls []string
}

func (l *statementLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sqls) == 0 {
		return ""
	}
	return l.sqls[len(l.sqls)-1]
}

func setupMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock, *statementLog) {
	t.Helper()
	log := &statementLog{}
	matcher := sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		log.mu.Lock()
		log.sqls = append(log.sqls, actual)
		log.mu.Unlock()
		return sqlmock.QueryMatcherRegexp.Match(expected, actual)
	})

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return postgres.NewClientFromDB(db), mock, log
}

func newTestEvaluationAdapter(t *testing.T) (*EvaluationAdapter, sqlmock.Sqlmock, *statementLog) {
	client, mock, log := setupMockClient(t)
	adapter := NewEvaluationAdapter(client)
	adapter.now = func() time.Time { return fixedNow }
	return adapter, mock, log
}

func evaluationRowColumns() []string {
	var cols []string
	for _, c := range columns(evaluationColumns, clinicalColumns, evaluationTailColumns) {
		cols = append(cols, c.(string))
	}
	return cols
}

func evaluationRow(id, tooth string, treatment entities.TreatmentType, status entities.EvaluationStatus, stratification []byte) []driver.Value {
	row := []driver.Value{id, "7f1c2d3e-4b5a-4c6d-8e9f-0a1b2c3d4e5f", nil, "session-1", tooth, string(treatment), "", string(status)}
	row = append(row,
		"45", "anterior-superior", "Classe IV", "média", "esmalte",
		"saudável", "íntegro", "média", "alto", "A2",
		true, false, "longo", "premium", "", "", "",
	)
	row = append(row, stratification, nil, nil, []byte("[0,1]"), fixedNow, fixedNow)
	return row
}

func TestEvaluationAdapter_Insert(t *testing.T) {
	adapter, mock, log := newTestEvaluationAdapter(t)
	mock.ExpectExec(`INSERT INTO "evaluations"`).WillReturnResult(sqlmock.NewResult(0, 1))

	evaluation := &entities.Evaluation{
		UserID:        "7f1c2d3e-4b5a-4c6d-8e9f-0a1b2c3d4e5f",
		SessionID:     "session-1",
		Tooth:         "11",
		TreatmentType: entities.TreatmentResin,
		Status:        entities.EvaluationStatusAnalyzing,
		ClinicalData:  entities.ClinicalData{ToothColor: "A2"},
	}
	id, err := adapter.Insert(context.Background(), evaluation)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, evaluation.ID)
	assert.Equal(t, fixedNow, evaluation.CreatedAt)
	assert.Contains(t, log.last(), `"tooth_color"`)
	assert.Contains(t, log.last(), `"checklist_progress"`)
}

func TestEvaluationAdapter_GetByID(t *testing.T) {
	adapter, mock, _ := newTestEvaluationAdapter(t)
	protocol := []byte(`{"layers":[{"order":1,"name":"Esmalte palatino","resin_brand":"3M - Filtek Z350 XT","shade":"WE","thickness":"0.3mm","purpose":"parede palatina","technique":"guia de silicone"}],"checklist":["Aplicar WE"],"confidence":"alta"}`)

	mock.ExpectQuery(`SELECT .* FROM "evaluations" WHERE \("id" = \$1\)`).
		WithArgs("eval-1").
		WillReturnRows(sqlmock.NewRows(evaluationRowColumns()).
			AddRow(evaluationRow("eval-1", "11", entities.TreatmentResin, entities.EvaluationStatusDraft, protocol)...))

	evaluation, err := adapter.GetByID(context.Background(), "eval-1")

	require.NoError(t, err)
	require.NotNil(t, evaluation)
	assert.Equal(t, entities.TreatmentResin, evaluation.TreatmentType)
	assert.Equal(t, entities.EvaluationStatusDraft, evaluation.Status)
	assert.Equal(t, "A2", evaluation.ToothColor)
	assert.True(t, evaluation.StratificationNeeded)
	assert.Empty(t, evaluation.PatientID)
	require.NotNil(t, evaluation.StratificationProtocol)
	assert.Equal(t, "WE", evaluation.StratificationProtocol.Layers[0].Shade)
	assert.Nil(t, evaluation.CementationProtocol)
	assert.Nil(t, evaluation.GenericProtocol)
	assert.Equal(t, entities.ChecklistProgress{0, 1}, evaluation.ChecklistProgress)
	assert.True(t, evaluation.HasProtocol())
}

func TestEvaluationAdapter_GetByIDMissing(t *testing.T) {
	adapter, mock, _ := newTestEvaluationAdapter(t)
	mock.ExpectQuery(`SELECT .* FROM "evaluations"`).
		WillReturnRows(sqlmock.NewRows(evaluationRowColumns()))

	evaluation, err := adapter.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, evaluation)
}

func TestEvaluationAdapter_ListBySessionKeepsOrder(t *testing.T) {
	adapter, mock, log := newTestEvaluationAdapter(t)
	mock.ExpectQuery(`SELECT .* FROM "evaluations"`).
		WillReturnRows(sqlmock.NewRows(evaluationRowColumns()).
			AddRow(evaluationRow("e1", "21", entities.TreatmentPorcelain, entities.EvaluationStatusAnalyzing, nil)...).
			AddRow(evaluationRow("e2", "11", entities.TreatmentPorcelain, entities.EvaluationStatusAnalyzing, nil)...))

	evaluations, err := adapter.ListBySession(context.Background(), "session-1", "user-1")

	require.NoError(t, err)
	require.Len(t, evaluations, 2)
	assert.Equal(t, "21", evaluations[0].Tooth)
	assert.Equal(t, "11", evaluations[1].Tooth)
	assert.Contains(t, log.last(), `ORDER BY "created_at" ASC`)
}

func TestEvaluationAdapter_UpdateWritesOnlyPatchedColumns(t *testing.T) {
	adapter, mock, log := newTestEvaluationAdapter(t)
	mock.ExpectExec(`UPDATE "evaluations" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	draft := entities.EvaluationStatusDraft
	err := adapter.Update(context.Background(), "eval-1", entities.EvaluationPatch{
		Status:                 &draft,
		StratificationProtocol: &entities.ResinProtocol{Checklist: []string{"Aplicar A2"}},
	})

	require.NoError(t, err)
	statement := log.last()
	assert.Contains(t, statement, `"stratification_protocol"`)
	assert.Contains(t, statement, `"status"`)
	assert.NotContains(t, statement, `"cementation_protocol"`)
	assert.NotContains(t, statement, `"generic_protocol"`)
	assert.NotContains(t, statement, `"budget"`)
}

func TestEvaluationAdapter_UpdateStatusNotFound(t *testing.T) {
	adapter, mock, _ := newTestEvaluationAdapter(t)
	mock.ExpectExec(`UPDATE "evaluations" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.UpdateStatus(context.Background(), "ghost", entities.EvaluationStatusError)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestEvaluationAdapter_BulkUpdates(t *testing.T) {
	adapter, mock, log := newTestEvaluationAdapter(t)
	mock.ExpectExec(`UPDATE "evaluations" SET .* WHERE \("id" IN \(\$\d+, \$\d+\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	budget, level := "premium", "alto"
	err := adapter.UpdateBulk(context.Background(), []string{"e1", "e2"}, entities.EvaluationPatch{
		Budget:         &budget,
		AestheticLevel: &level,
	})
	require.NoError(t, err)
	assert.Contains(t, log.last(), `"aesthetic_level"`)

	// empty id lists never reach the database
	require.NoError(t, adapter.UpdateStatusBulk(context.Background(), nil, entities.EvaluationStatusDraft))
}

func TestEvaluationAdapter_SaveGenericProtocol(t *testing.T) {
	adapter, mock, log := newTestEvaluationAdapter(t)
	mock.ExpectExec(`UPDATE "evaluations" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.SaveGenericProtocol(context.Background(), "eval-3", &entities.GenericProtocol{
		TreatmentType: entities.TreatmentCrown,
		Tooth:         "36",
		Summary:       "Coroa total no dente 36.",
	})

	require.NoError(t, err)
	assert.True(t, strings.Contains(log.last(), `"generic_protocol"`))
}

func TestPendingToothAdapter(t *testing.T) {
	client, mock, log := setupMockClient(t)
	adapter := NewPendingToothAdapter(client)

	cols := []string{"session_id", "user_id", "tooth", "treatment_type", "ai_indication_reason"}
	for _, c := range clinicalColumns {
		cols = append(cols, c.(string))
	}
	cols = append(cols, "created_at")

	row := []driver.Value{"session-1", "user-1", "36", "crown", "fratura extensa",
		"", "", "", "", "", "", "", "", "", "A3", false, true, "", "padrão", "", "", "", fixedNow}
	mock.ExpectQuery(`SELECT .* FROM "session_pending_teeth"`).
		WithArgs("session-1", "user-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))
	mock.ExpectExec(`DELETE FROM "session_pending_teeth"`).WillReturnResult(sqlmock.NewResult(0, 2))

	teeth, err := adapter.ListBySession(context.Background(), "session-1", "user-1")
	require.NoError(t, err)
	require.Len(t, teeth, 1)
	assert.Equal(t, entities.TreatmentCrown, teeth[0].TreatmentType)
	assert.Equal(t, "fratura extensa", teeth[0].AIIndicationReason)
	assert.True(t, teeth[0].Bruxism)

	require.NoError(t, adapter.DeleteTeeth(context.Background(), "session-1", []string{"11", "21"}))
	assert.Contains(t, log.last(), `"tooth" IN`)
	require.NoError(t, adapter.DeleteTeeth(context.Background(), "session-1", nil))
}
