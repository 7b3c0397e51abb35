package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

func seedResin(m *memoryEvaluations, id, tooth string, checklist ...string) {
	e := &entities.Evaluation{
		ID:            id,
		UserID:        testUserID,
		SessionID:     testSessionID,
		Tooth:         tooth,
		TreatmentType: entities.TreatmentResin,
		Status:        entities.EvaluationStatusDraft,
	}
	if len(checklist) > 0 {
		e.StratificationProtocol = &entities.ResinProtocol{Checklist: checklist}
	}
	m.seed(e)
}

func TestProtocolSync_FirstProtocolInOrderWins(t *testing.T) {
	evaluations := newMemoryEvaluations()
	seedResin(evaluations, "a", "11", "protocol of 11")
	seedResin(evaluations, "b", "12", "protocol of 12")
	seedResin(evaluations, "c", "13")
	sync := services.NewProtocolSyncService(evaluations, nil)

	result, err := sync.SyncGroupProtocols(context.Background(), testUserID, testSessionID, []string{"b", "a", "c"})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Groups)
	assert.ElementsMatch(t, []string{"a", "c"}, result.Updated)
	assert.Equal(t, []string{"protocol of 12"}, evaluations.byTooth("11").StratificationProtocol.Checklist)
	assert.Equal(t, []string{"protocol of 12"}, evaluations.byTooth("13").StratificationProtocol.Checklist)
}

func TestProtocolSync_ListedPrimaryWinsOverEarlierSibling(t *testing.T) {
	evaluations := newMemoryEvaluations()
	seedResin(evaluations, "a", "11", "protocol of 11")
	seedResin(evaluations, "b", "12", "protocol of 12")
	sync := services.NewProtocolSyncService(evaluations, nil)

	_, err := sync.SyncFromPrimaries(context.Background(), testUserID, testSessionID, []string{"a", "b"}, []string{"b"})

	require.NoError(t, err)
	assert.Equal(t, []string{"protocol of 12"}, evaluations.byTooth("11").StratificationProtocol.Checklist)
	assert.Equal(t, []string{"protocol of 12"}, evaluations.byTooth("12").StratificationProtocol.Checklist)
}

func TestProtocolSync_ListedPrimaryWithoutProtocolFallsBack(t *testing.T) {
	evaluations := newMemoryEvaluations()
	seedResin(evaluations, "a", "11", "protocol of 11")
	seedResin(evaluations, "b", "12")
	sync := services.NewProtocolSyncService(evaluations, nil)

	_, err := sync.SyncFromPrimaries(context.Background(), testUserID, testSessionID, []string{"a", "b"}, []string{"b"})

	require.NoError(t, err)
	assert.Equal(t, []string{"protocol of 11"}, evaluations.byTooth("12").StratificationProtocol.Checklist)
}
