package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

func TestDispatch_ResinCallsOnlyResin(t *testing.T) {
	clients := &MockDispatchClients{}
	clients.On("InvokeResin", mock.Anything, mock.MatchedBy(func(p services.ResinParams) bool {
		return p.EvaluationID == "eval-1" && p.Tooth == "11" && p.ClinicalData.ToothColor == "A2"
	})).Return(nil).Once()

	dispatcher := services.NewDispatchService(clients, nil)
	err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{
		EvaluationID:  "eval-1",
		Tooth:         "11",
		TreatmentType: entities.TreatmentResin,
		Resin:         &services.ResinParams{Tooth: "11", ClinicalData: entities.ClinicalData{ToothColor: "A2"}},
	})

	require.NoError(t, err)
	clients.AssertExpectations(t)
	clients.AssertNotCalled(t, "InvokeCementation", mock.Anything, mock.Anything)
	clients.AssertNotCalled(t, "SaveGenericProtocol", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PorcelainCallsOnlyCementation(t *testing.T) {
	clients := &MockDispatchClients{}
	clients.On("InvokeCementation", mock.Anything, mock.MatchedBy(func(p services.CementationParams) bool {
		return p.EvaluationID == "eval-2"
	})).Return(nil).Once()

	dispatcher := services.NewDispatchService(clients, nil)
	err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{
		EvaluationID:  "eval-2",
		Tooth:         "21",
		TreatmentType: entities.ParseTreatmentType("ceramic-veneer"),
		Cementation:   &services.CementationParams{Teeth: []string{"21"}, CeramicType: "e.max"},
	})

	require.NoError(t, err)
	clients.AssertNumberOfCalls(t, "InvokeCementation", 1)
	clients.AssertNotCalled(t, "InvokeResin", mock.Anything, mock.Anything)
	clients.AssertNotCalled(t, "SaveGenericProtocol", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_MissingParams(t *testing.T) {
	dispatcher := services.NewDispatchService(&MockDispatchClients{}, nil)

	err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{EvaluationID: "e", TreatmentType: entities.TreatmentResin})
	assert.ErrorIs(t, err, services.ErrMissingResinParams)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = dispatcher.Dispatch(context.Background(), services.DispatchRequest{EvaluationID: "e", TreatmentType: entities.TreatmentPorcelain})
	assert.ErrorIs(t, err, services.ErrMissingCementationParams)
}

func TestDispatch_GenericTreatments(t *testing.T) {
	for _, treatment := range []entities.TreatmentType{
		entities.TreatmentCrown, entities.TreatmentImplant, entities.TreatmentEndodontic,
		entities.TreatmentReferral, entities.TreatmentGingivoplasty, entities.TreatmentRootCoverage,
	} {
		t.Run(string(treatment), func(t *testing.T) {
			clients := &MockDispatchClients{}
			var saved *entities.GenericProtocol
			clients.On("SaveGenericProtocol", mock.Anything, "eval-3", mock.Anything).
				Run(func(args mock.Arguments) { saved = args.Get(2).(*entities.GenericProtocol) }).
				Return(nil).Once()

			dispatcher := services.NewDispatchService(clients, nil)
			err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{
				EvaluationID:  "eval-3",
				Tooth:         "36",
				TreatmentType: treatment,
				Generic:       &services.GenericToothData{AIIndicationReason: "lesão extensa"},
			})

			require.NoError(t, err)
			require.NotNil(t, saved)
			assert.Equal(t, treatment, saved.TreatmentType)
			assert.Contains(t, saved.Summary, "36")
			assert.Contains(t, saved.Summary, "lesão extensa")
			assert.Equal(t, "lesão extensa", saved.AIIndicationReason)
			assert.NotEmpty(t, saved.Checklist)
			assert.NotEmpty(t, saved.Alerts)
			assert.NotEmpty(t, saved.Recommendations)
			clients.AssertNotCalled(t, "InvokeResin", mock.Anything, mock.Anything)
			clients.AssertNotCalled(t, "InvokeCementation", mock.Anything, mock.Anything)
		})
	}
}

func TestDispatch_UnrecognizedUsesFallback(t *testing.T) {
	clients := &MockDispatchClients{}
	var saved *entities.GenericProtocol
	clients.On("SaveGenericProtocol", mock.Anything, "eval-4", mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*entities.GenericProtocol) }).
		Return(nil)

	dispatcher := services.NewDispatchService(clients, nil)
	err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{
		EvaluationID:  "eval-4",
		Tooth:         "14",
		TreatmentType: entities.ParseTreatmentType("clareamento"),
	})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, entities.TreatmentType("clareamento"), saved.TreatmentType)
	assert.Contains(t, saved.Summary, "14")
	assert.Empty(t, saved.AIIndicationReason)
}

func TestDispatch_EnricherRunsBeforeSave(t *testing.T) {
	clients := &MockDispatchClients{}
	clients.On("SaveGenericProtocol", mock.Anything, "eval-5", mock.MatchedBy(func(p *entities.GenericProtocol) bool {
		return len(p.Recommendations) > 0 && p.Recommendations[len(p.Recommendations)-1] == "Considerar análise DSD"
	})).Return(nil).Once()

	enricher := func(ctx context.Context, req services.DispatchRequest, p *entities.GenericProtocol) {
		p.Recommendations = append(p.Recommendations, "Considerar análise DSD")
	}
	dispatcher := services.NewDispatchService(clients, enricher)

	require.NoError(t, dispatcher.Dispatch(context.Background(), services.DispatchRequest{
		EvaluationID:  "eval-5",
		Tooth:         "11",
		TreatmentType: entities.TreatmentCrown,
	}))
	clients.AssertExpectations(t)

	// templates are not mutated by the enricher
	fresh := services.BuildGenericProtocol(entities.TreatmentCrown, "11", "")
	assert.NotContains(t, fresh.Recommendations, "Considerar análise DSD")
}

func TestDispatch_PropagatesDownstreamErrors(t *testing.T) {
	downstream := errors.New("provider timeout")
	clients := &MockDispatchClients{}
	clients.On("InvokeResin", mock.Anything, mock.Anything).Return(downstream)

	dispatcher := services.NewDispatchService(clients, nil)
	err := dispatcher.Dispatch(context.Background(), services.DispatchRequest{
		EvaluationID:  "eval-6",
		TreatmentType: entities.TreatmentResin,
		Resin:         &services.ResinParams{},
	})
	assert.Same(t, downstream, err)
}
