package services

import (
	"context"
	"errors"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/dentalprotocols/backend/pkg/errors"
)

var (
	// ErrMissingResinParams is returned when a resin dispatch carries no resin params
	ErrMissingResinParams = errors.New("resin params are required for resin treatment")

	// ErrMissingCementationParams is returned when a porcelain dispatch carries no cementation params
	ErrMissingCementationParams = errors.New("cementation params are required for porcelain treatment")
)

// DispatchClients are the downstream ports a dispatch may call. Exactly one is
// called per dispatch.
type DispatchClients interface {
	InvokeResin(ctx context.Context, params ResinParams) error
	InvokeCementation(ctx context.Context, params CementationParams) error
	SaveGenericProtocol(ctx context.Context, evaluationID string, protocol *entities.GenericProtocol) error
}

// GenericToothData is the pending-tooth context merged into a template protocol
type GenericToothData struct {
	AIIndicationReason string
}

// DispatchRequest routes one evaluation to its protocol generator
type DispatchRequest struct {
	EvaluationID  string
	Tooth         string
	TreatmentType entities.TreatmentType
	Resin         *ResinParams
	Cementation   *CementationParams
	Generic       *GenericToothData
}

// Enricher may amend a synthesized generic protocol before it is saved.
type Enricher func(ctx context.Context, req DispatchRequest, protocol *entities.GenericProtocol)

// DispatchService routes evaluations by treatment type
type DispatchService struct {
	clients  DispatchClients
	enricher Enricher
}

// NewDispatchService creates a new dispatch service. enricher may be nil.
func NewDispatchService(clients DispatchClients, enricher Enricher) *DispatchService {
	return &DispatchService{clients: clients, enricher: enricher}
}

// Dispatch calls the single client the treatment type routes to. Downstream
// errors are returned unchanged.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) error {
	switch route := req.TreatmentType.Route(); route {
	case entities.RouteResin:
		if req.Resin == nil {
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "missing resin params", Err: ErrMissingResinParams}
		}
		params := *req.Resin
		params.EvaluationID = req.EvaluationID
		return s.clients.InvokeResin(ctx, params)

	case entities.RouteCementation:
		if req.Cementation == nil {
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "missing cementation params", Err: ErrMissingCementationParams}
		}
		params := *req.Cementation
		params.EvaluationID = req.EvaluationID
		return s.clients.InvokeCementation(ctx, params)

	case entities.RouteGeneric:
		return s.saveGeneric(ctx, req)

	case entities.RouteUnrecognized:
		observability.LoggerFromContext(ctx).Warn().
			Str("treatment_type", string(req.TreatmentType)).
			Str("evaluation_id", req.EvaluationID).
			Str("tooth", req.Tooth).
			Msg("Unrecognized treatment type, using generic protocol")
		return s.saveGeneric(ctx, req)

	default:
		return apperrors.NewInternalError("unhandled dispatch route "+route.String(), nil)
	}
}

func (s *DispatchService) saveGeneric(ctx context.Context, req DispatchRequest) error {
	var reason string
	if req.Generic != nil {
		reason = req.Generic.AIIndicationReason
	}
	protocol := BuildGenericProtocol(req.TreatmentType, req.Tooth, reason)
	if s.enricher != nil {
		s.enricher(ctx, req, protocol)
	}
	return s.clients.SaveGenericProtocol(ctx, req.EvaluationID, protocol)
}

type dispatchClients struct {
	*RecommendationService
	repositories.GenericProtocolRepository
}

// NewDispatchClients joins the AI recommendation service and the generic protocol store.
func NewDispatchClients(recommendations *RecommendationService, generic repositories.GenericProtocolRepository) DispatchClients {
	return dispatchClients{RecommendationService: recommendations, GenericProtocolRepository: generic}
}
