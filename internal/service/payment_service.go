package service

import (
	"context"
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

// PaymentService closes tickets. Digital payments suspend on
// PENDING_PAYMENT until an external confirmation event arrives; manual
// payments are proof-gated and require a signature and a service report.
type PaymentService struct {
	tickets    repository.TicketRepository
	state      *TicketService
	docs       documents.DocumentGenerator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// PaymentDependencies bundles collaborators for the payment service.
type PaymentDependencies struct {
	TicketRepo repository.TicketRepository
	State      *TicketService
	Documents  documents.DocumentGenerator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewPaymentService constructs the service.
func NewPaymentService(deps PaymentDependencies) *PaymentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentService{
		tickets:    deps.TicketRepo,
		state:      deps.State,
		docs:       deps.Documents,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// StartDigitalPayment suspends the ticket on PENDING_PAYMENT with the method
// and final price recorded in the same transition. The workflow then waits
// for the external confirmation event; closing the client UI does not roll
// the status back, and there is no timeout. Only ConfirmDigitalPayment or an
// operator reset move the ticket on.
func (s *PaymentService) StartDigitalPayment(ctx context.Context, ticketID string, finalPrice decimal.Decimal, actor domain.Actor) (*domain.Ticket, error) {
	if !finalPrice.IsPositive() {
		return nil, apperrors.NewValidationError("final price must be greater than zero", map[string]any{
			"final_price": finalPrice.String(),
		})
	}
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.PaymentMethod = domain.PaymentDigital
	ticket.FinalPrice = &finalPrice
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusPendingPayment, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"payment_method": string(ticket.PaymentMethod),
		"final_price":    finalPrice.String(),
	})
	s.publish(ctx, events.Event{
		Type:     events.EventPaymentPending,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.PaymentPayload{Method: domain.PaymentDigital, FinalPrice: finalPrice},
	})
	return ticket, nil
}

// ConfirmDigitalPayment resumes a suspended digital payment after the
// external provider confirms. Driven by the confirmation subscription, not
// by operator input.
func (s *PaymentService) ConfirmDigitalPayment(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.StatusPendingPayment {
		return nil, apperrors.NewStateError("ticket is not awaiting payment", map[string]any{
			"status": ticket.Status,
		})
	}
	ticket.IsPaid = true
	actor := domain.Actor{Type: domain.SubjectTypeOperator, ID: "payment-provider"}
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusFinalizado, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{"is_paid": true})
	s.publishConfirmed(ctx, ticket, actor)
	return ticket, nil
}

// ResetPendingPayment is the operator escape hatch for an abandoned digital
// payment: back to en_reparacion with the pending payment fields cleared.
func (s *PaymentService) ResetPendingPayment(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.StatusPendingPayment {
		return nil, apperrors.NewStateError("ticket is not awaiting payment", map[string]any{
			"status": ticket.Status,
		})
	}
	ticket.PaymentMethod = ""
	ticket.FinalPrice = nil
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusEnReparacion, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"payment_method": "",
		"final_price":    nil,
	})
	return ticket, nil
}

// ManualFinalizeInput carries the closure payload for non-digital payments.
type ManualFinalizeInput struct {
	Method       domain.PaymentMethod
	FinalPrice   decimal.Decimal
	ProofRef     string
	SignatureRef string
}

// FinalizeManual closes the ticket with an on-site payment. Non-cash methods
// require a proof reference; every manual finalize requires a client
// signature and a service report, generated here when missing. Report
// generation failure blocks the finalize entirely.
func (s *PaymentService) FinalizeManual(ctx context.Context, ticketID string, input ManualFinalizeInput, actor domain.Actor) (*domain.Ticket, error) {
	if input.Method == "" || input.Method == domain.PaymentDigital {
		return nil, apperrors.NewValidationError("manual finalize requires a non-digital payment method", nil)
	}
	if !input.FinalPrice.IsPositive() {
		return nil, apperrors.NewValidationError("final price must be greater than zero", nil)
	}
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.finalizeManual(ctx, ticket, input, actor)
}

func (s *PaymentService) finalizeManual(ctx context.Context, ticket *domain.Ticket, input ManualFinalizeInput, actor domain.Actor) (*domain.Ticket, error) {
	// A suspended digital payment and the manual path are mutually
	// exclusive; the operator reset is the only way back.
	if ticket.Status == domain.StatusPendingPayment {
		return nil, apperrors.NewStateError("digital payment awaiting confirmation; reset it before a manual finalize", map[string]any{
			"status": ticket.Status,
		})
	}
	if input.Method.RequiresProof() && input.ProofRef == "" && ticket.PaymentProofRef == nil {
		return nil, apperrors.NewValidationError("payment proof required for non-cash methods", map[string]any{
			"method": input.Method,
		})
	}
	if input.SignatureRef == "" && ticket.ClientSignatureRef == nil {
		return nil, apperrors.NewValidationError("client signature required to finalize", nil)
	}

	if input.ProofRef != "" {
		proof := input.ProofRef
		ticket.PaymentProofRef = &proof
	}
	if input.SignatureRef != "" {
		sig := input.SignatureRef
		ticket.ClientSignatureRef = &sig
	}
	ticket.PaymentMethod = input.Method
	ticket.FinalPrice = &input.FinalPrice
	ticket.IsPaid = true

	if ticket.ServiceReportRef == nil {
		ref, err := s.docs.ServiceReport(ctx, ticket)
		if err != nil {
			return nil, apperrors.NewExternalServiceError("service report generation failed", err)
		}
		ticket.ServiceReportRef = &ref
	}

	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusFinalizado, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"payment_method":     string(ticket.PaymentMethod),
		"final_price":        input.FinalPrice.String(),
		"is_paid":            true,
		"service_report_ref": ticket.ServiceReportRef,
	})
	s.publishConfirmed(ctx, ticket, actor)
	return ticket, nil
}

// WarrantyFinalizeInput extends the manual closure with coverage windows.
type WarrantyFinalizeInput struct {
	ManualFinalizeInput
	LaborMonths int
	PartsMonths int
}

// FinalizeWarranty computes the coverage windows from now, then follows the
// manual finalize path.
func (s *PaymentService) FinalizeWarranty(ctx context.Context, ticketID string, input WarrantyFinalizeInput, actor domain.Actor) (*domain.Ticket, error) {
	if input.LaborMonths <= 0 && input.PartsMonths <= 0 {
		return nil, apperrors.NewValidationError("warranty requires labor or parts months", nil)
	}
	if input.Method == "" || input.Method == domain.PaymentDigital {
		return nil, apperrors.NewValidationError("manual finalize requires a non-digital payment method", nil)
	}
	if !input.FinalPrice.IsPositive() {
		return nil, apperrors.NewValidationError("final price must be greater than zero", nil)
	}
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	warranty := domain.Warranty{LaborMonths: input.LaborMonths, PartsMonths: input.PartsMonths}
	if input.LaborMonths > 0 {
		until := now.AddDate(0, input.LaborMonths, 0)
		warranty.LaborUntil = &until
	}
	if input.PartsMonths > 0 {
		until := now.AddDate(0, input.PartsMonths, 0)
		warranty.PartsUntil = &until
	}
	warranty.Until = maxTime(warranty.LaborUntil, warranty.PartsUntil)
	ticket.Warranty = warranty

	return s.finalizeManual(ctx, ticket, input.ManualFinalizeInput, actor)
}

func (s *PaymentService) publishConfirmed(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) {
	price := decimal.Zero
	if ticket.FinalPrice != nil {
		price = *ticket.FinalPrice
	}
	s.publish(ctx, events.Event{
		Type:     events.EventPaymentConfirmed,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.PaymentPayload{Method: ticket.PaymentMethod, FinalPrice: price, IsPaid: true},
	})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketFinalized,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.PaymentPayload{Method: ticket.PaymentMethod, FinalPrice: price, IsPaid: true},
	})
}

func (s *PaymentService) publish(ctx context.Context, event events.Event) {
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

func maxTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}
