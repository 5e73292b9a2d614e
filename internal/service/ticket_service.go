package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/config"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// minCancelReasonLen is the shortest accepted cancellation reason.
const minCancelReasonLen = 5

// TicketService owns the ticket status state machine: the transition table,
// the call-time guards, and the atomic snapshot-plus-history persistence.
type TicketService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	dispatcher  events.Dispatcher
	changes     events.ChangeStream
	policy      config.PolicyConfig
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	Dispatcher     events.Dispatcher
	Changes        events.ChangeStream
	Policy         config.PolicyConfig
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		dispatcher:  deps.Dispatcher,
		changes:     deps.Changes,
		policy:      deps.Policy,
		logger:      deps.Logger,
		now:         now,
	}
}

// TicketCreateInput describes intake payload (direct office entry or
// web-originated request).
type TicketCreateInput struct {
	ClientID    string
	ClientName  string
	ClientPhone string
	Address     string
	Description string
}

// TransitionSnapshot carries the fields persisted together with a status
// change so a concurrent reader never observes status ahead of its
// supporting data.
type TransitionSnapshot struct {
	Diagnosis  *string
	LaborItems []domain.LineItem
	PartItems  []domain.LineItem
	FinalPrice *decimal.Decimal
}

// CreateTicket registers a new repair job in solicitado.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.ClientName) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("client_name and description required", nil)
	}
	now := s.now()
	ticket := &domain.Ticket{
		ExternalKey:       generateTicketKey(),
		ClientID:          input.ClientID,
		ClientName:        strings.TrimSpace(input.ClientName),
		ClientPhone:       strings.TrimSpace(input.ClientPhone),
		Address:           strings.TrimSpace(input.Address),
		Description:       strings.TrimSpace(input.Description),
		Status:            domain.StatusSolicitado,
		AppointmentStatus: domain.AppointmentPending,
		PartRequest:       domain.NoPartRequest(),
		DepositAmount:     decimal.Zero,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.StatusSolicitado,
			Label:     domain.StatusLabel(domain.StatusSolicitado),
			Timestamp: now,
		}},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.StatusChangedPayload{
			NewStatus: ticket.Status,
			Label:     domain.StatusLabel(ticket.Status),
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket with its history.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns paginated tickets for the operator board.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Transition validates and applies a status change, persisting the snapshot
// fields in the same write.
func (s *TicketService) Transition(ctx context.Context, ticketID string, newStatus domain.TicketStatus, snapshot TransitionSnapshot, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if snapshot.Diagnosis != nil {
		ticket.Diagnosis = strings.TrimSpace(*snapshot.Diagnosis)
	}
	if snapshot.LaborItems != nil {
		ticket.LaborItems = snapshot.LaborItems
	}
	if snapshot.PartItems != nil {
		ticket.PartItems = snapshot.PartItems
	}
	if snapshot.FinalPrice != nil {
		ticket.FinalPrice = snapshot.FinalPrice
	}
	if err := s.ApplyTransition(ctx, ticket, newStatus, actor); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ApplyTransition is the single transition primitive shared by the
// workflows. The caller mutates snapshot fields on ticket first; the status
// change, those fields and the history entry are persisted in one
// transaction. Guards are evaluated at call time, never cached.
func (s *TicketService) ApplyTransition(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus, actor domain.Actor) error {
	if !domain.CanTransition(ticket.Status, newStatus) {
		return apperrors.NewStateError("illegal status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}
	// The procurement pause holds until material arrives; only the
	// terminal branches may leave it early.
	if ticket.MaterialPending() && !newStatus.IsTerminal() {
		return apperrors.NewStateError("material not yet received", map[string]any{
			"to": newStatus,
		})
	}
	now := s.now()
	if domain.StartsTravelOrDiagnosis(newStatus) {
		policy := s.guardPolicy(actor)
		if !policy.AllowsStart(now, ticket.ScheduledAt) {
			return apperrors.NewStateError("outside operating window", map[string]any{
				"to":           newStatus,
				"scheduled_at": ticket.ScheduledAt,
			})
		}
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	entry := domain.StatusHistoryEntry{
		Status:    newStatus,
		Label:     domain.StatusLabel(newStatus),
		Timestamp: now,
	}
	if err := s.tickets.ApplyTransition(ctx, ticket, entry); err != nil {
		ticket.Status = oldStatus
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload: events.StatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Label:     entry.Label,
		},
	})
	s.publishChange(ctx, ticket.ID, map[string]any{
		"status":     string(newStatus),
		"updated_at": now,
	})
	return nil
}

// Cancel moves the ticket to cancelado. The reason is mandatory, at least
// five characters, and always recorded.
func (s *TicketService) Cancel(ctx context.Context, ticketID, reason string, actor domain.Actor) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < minCancelReasonLen {
		return nil, apperrors.NewValidationError("cancellation reason must be at least 5 characters", nil)
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.CancellationReason = reason
	if err := s.ApplyTransition(ctx, ticket, domain.StatusCancelado, actor); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCancelled,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  map[string]any{"reason": reason},
	})
	return ticket, nil
}

// Reject moves the ticket to the rejected terminal branch.
func (s *TicketService) Reject(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyTransition(ctx, ticket, domain.StatusRejected, actor); err != nil {
		return nil, err
	}
	return ticket, nil
}

// NotifyChange pushes non-status field updates onto the change stream so
// replica caches converge without polling.
func (s *TicketService) NotifyChange(ctx context.Context, ticketID string, fields map[string]any) {
	s.publishChange(ctx, ticketID, fields)
}

// guardPolicy builds the explicit policy value for one guard evaluation.
func (s *TicketService) guardPolicy(actor domain.Actor) domain.GuardPolicy {
	return domain.GuardPolicy{
		OpenHour:     s.policy.OpenHour,
		CloseHour:    s.policy.CloseHour,
		MaxStartLead: s.policy.MaxStartLead(),
		Override:     actor.OverrideTimeGate,
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func (s *TicketService) publishChange(ctx context.Context, ticketID string, fields map[string]any) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, events.TicketChange{TicketID: ticketID, Fields: fields, At: s.now()}); err != nil && s.logger != nil {
		s.logger.Warn("change stream publish failed", zap.Error(err), zap.String("ticket_id", ticketID))
	}
}

func generateTicketKey() string {
	return "SVC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
