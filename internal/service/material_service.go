package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/documents"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// MaterialService runs the parts-procurement pause: deposit-gated entry into
// pendiente_material, then two independently auditable sub-steps (ordered,
// received) that keep the primary status unchanged.
type MaterialService struct {
	tickets    repository.TicketRepository
	state      *TicketService
	docs       documents.DocumentGenerator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// MaterialDependencies bundles collaborators for the material service.
type MaterialDependencies struct {
	TicketRepo repository.TicketRepository
	State      *TicketService
	Documents  documents.DocumentGenerator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewMaterialService constructs the service.
func NewMaterialService(deps MaterialDependencies) *MaterialService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &MaterialService{
		tickets:    deps.TicketRepo,
		state:      deps.State,
		docs:       deps.Documents,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// MaterialRequestInput carries the deposit agreement captured at diagnosis.
type MaterialRequestInput struct {
	Description  string
	Deposit      decimal.Decimal
	SignatureRef string
	Priority     domain.PartRequestPriority
}

// RequestMaterial pauses the ticket while parts are procured. Description
// and a positive deposit are mandatory regardless of signature state. The
// receipt document and the transition are one failure domain.
func (s *MaterialService) RequestMaterial(ctx context.Context, ticketID string, input MaterialRequestInput, actor domain.Actor) (*domain.Ticket, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("material description required", nil)
	}
	if !input.Deposit.IsPositive() {
		return nil, apperrors.NewValidationError("deposit must be greater than zero", map[string]any{
			"deposit": input.Deposit.String(),
		})
	}
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(ticket.Status, domain.StatusPendienteMaterial) {
		return nil, apperrors.NewStateError("material can only be requested during diagnosis", map[string]any{
			"status": ticket.Status,
		})
	}

	receiptRef, err := s.docs.MaterialReceipt(ctx, ticket)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("material receipt generation failed", err)
	}

	ticket.RequiredPartsDescription = description
	ticket.DepositAmount = input.Deposit
	ticket.MaterialReceiptRef = &receiptRef
	if sig := strings.TrimSpace(input.SignatureRef); sig != "" {
		ticket.ClientSignatureRef = &sig
	}
	ticket.PartRequest = domain.RequestedParts(input.Priority)
	ticket.MaterialOrdered = domain.StepMark{}
	ticket.MaterialReceived = domain.StepMark{}
	ticket.SupplierName = ""

	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusPendienteMaterial, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"required_parts_description": ticket.RequiredPartsDescription,
		"deposit_amount":             ticket.DepositAmount.String(),
		"material_receipt_ref":       ticket.MaterialReceiptRef,
		"part_request":               ticket.PartRequest,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventMaterialRequested,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload: events.MaterialPayload{
			Description: description,
			Deposit:     input.Deposit,
		},
	})
	return ticket, nil
}

// MarkOrdered records that parts were ordered from a supplier. The primary
// status stays pendiente_material.
func (s *MaterialService) MarkOrdered(ctx context.Context, ticketID, supplierName string, actor domain.Actor) (*domain.Ticket, error) {
	supplierName = strings.TrimSpace(supplierName)
	if supplierName == "" {
		return nil, apperrors.NewValidationError("supplier name required", nil)
	}
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.StatusPendienteMaterial {
		return nil, apperrors.NewStateError("ticket is not awaiting material", map[string]any{
			"status": ticket.Status,
		})
	}
	at := s.now()
	ticket.MaterialOrdered = domain.StepMark{Done: true, Actor: actor.ID, At: &at}
	ticket.SupplierName = supplierName
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"material_ordered": ticket.MaterialOrdered,
		"supplier_name":    ticket.SupplierName,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventMaterialOrdered,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.MaterialPayload{SupplierName: supplierName},
	})
	return ticket, nil
}

// MarkReceived records material arrival. The assigned technician can set it;
// an office actor can force it. Once received the ticket is eligible again
// for scheduling.
func (s *MaterialService) MarkReceived(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.StatusPendienteMaterial {
		return nil, apperrors.NewStateError("ticket is not awaiting material", map[string]any{
			"status": ticket.Status,
		})
	}
	forced := actor.Type == domain.SubjectTypeOperator
	if !forced {
		if ticket.TechnicianID == nil || *ticket.TechnicianID != actor.ID {
			return nil, apperrors.NewForbidden("only the assigned technician may mark material received")
		}
	}
	at := s.now()
	ticket.MaterialReceived = domain.StepMark{Done: true, Actor: actor.ID, At: &at}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"material_received": ticket.MaterialReceived,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventMaterialReceived,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.MaterialPayload{Forced: forced},
	})
	return ticket, nil
}

func (s *MaterialService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
