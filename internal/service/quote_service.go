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
	"github.com/taller-labs/fieldservice/internal/documents"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// QuoteService handles quote issuance, expiry, revalidation, forced
// acceptance, and the one-way budget-to-ticket conversion.
type QuoteService struct {
	tickets    repository.TicketRepository
	budgets    repository.BudgetRepository
	state      *TicketService
	docs       documents.DocumentGenerator
	dispatcher events.Dispatcher
	validity   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// QuoteDependencies bundles collaborators for the quote service.
type QuoteDependencies struct {
	TicketRepo repository.TicketRepository
	BudgetRepo repository.BudgetRepository
	State      *TicketService
	Documents  documents.DocumentGenerator
	Dispatcher events.Dispatcher
	Quote      config.QuoteConfig
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewQuoteService constructs the service.
func NewQuoteService(deps QuoteDependencies) *QuoteService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	days := deps.Quote.ValidityDays
	if days <= 0 {
		days = 15
	}
	return &QuoteService{
		tickets:    deps.TicketRepo,
		budgets:    deps.BudgetRepo,
		state:      deps.State,
		docs:       deps.Documents,
		dispatcher: deps.Dispatcher,
		validity:   time.Duration(days) * 24 * time.Hour,
		logger:     deps.Logger,
		now:        now,
	}
}

// GenerateQuote renders the quote document and transitions the ticket to
// presupuesto_pendiente. Document and transition are one failure domain: if
// rendering fails the ticket keeps its prior status for manual retry.
func (s *QuoteService) GenerateQuote(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(ticket.Status, domain.StatusPresupuestoPendiente) {
		return nil, apperrors.NewStateError("quote cannot be generated from current status", map[string]any{
			"status": ticket.Status,
		})
	}
	ref, err := s.docs.QuoteDocument(ctx, ticket)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("quote document generation failed", err)
	}
	generatedAt := s.now()
	ticket.QuoteGeneratedAt = &generatedAt
	ticket.QuoteDocumentRef = &ref
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusPresupuestoPendiente, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"quote_generated_at": ticket.QuoteGeneratedAt,
		"quote_document_ref": ticket.QuoteDocumentRef,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventQuoteGenerated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.QuotePayload{GeneratedAt: ticket.QuoteGeneratedAt, DocumentRef: ticket.QuoteDocumentRef},
	})
	return ticket, nil
}

// IsExpired reports whether the quote's validity window has lapsed. A quote
// under client revision is always treated as expired.
func (s *QuoteService) IsExpired(ticket *domain.Ticket, now time.Time) bool {
	if ticket.Status == domain.StatusPresupuestoRevision {
		return true
	}
	if ticket.QuoteGeneratedAt == nil {
		return false
	}
	return now.After(ticket.QuoteGeneratedAt.Add(s.validity))
}

// Revalidate refreshes an expired quote in place: generated_at moves to now
// and the ticket returns to presupuesto_pendiente. Legal only while expired;
// idempotent under repeated invocation while still expired.
func (s *QuoteService) Revalidate(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !s.IsExpired(ticket, now) {
		return nil, apperrors.NewStateError("quote is not expired", map[string]any{
			"generated_at": ticket.QuoteGeneratedAt,
		})
	}
	ticket.QuoteGeneratedAt = &now
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusPresupuestoPendiente, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"quote_generated_at": ticket.QuoteGeneratedAt,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventQuoteRevalidated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.QuotePayload{GeneratedAt: ticket.QuoteGeneratedAt, DocumentRef: ticket.QuoteDocumentRef},
	})
	return ticket, nil
}

// ForceAccept moves the quote to presupuesto_aceptado regardless of expiry.
// Acceptance may arrive late enough that the original technician and date
// are stale, so the appointment returns to pending with the technician kept
// as a hint. The quote document is not regenerated.
func (s *QuoteService) ForceAccept(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.AppointmentStatus = domain.AppointmentPending
	ticket.ScheduledAt = nil
	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusPresupuestoAceptado, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"appointment_status": string(ticket.AppointmentStatus),
		"scheduled_at":       nil,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventQuoteForceAccepted,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.QuotePayload{GeneratedAt: ticket.QuoteGeneratedAt, DocumentRef: ticket.QuoteDocumentRef},
	})
	return ticket, nil
}

// BudgetCreateInput describes a standalone estimate.
type BudgetCreateInput struct {
	ClientID    string
	ClientName  string
	Description string
	Items       []domain.LineItem
	TaxRate     decimal.Decimal
}

// CreateBudget registers a pre-ticket estimate with computed totals.
func (s *QuoteService) CreateBudget(ctx context.Context, input BudgetCreateInput) (*domain.Budget, error) {
	if strings.TrimSpace(input.ClientName) == "" || len(input.Items) == 0 {
		return nil, apperrors.NewValidationError("client_name and items required", nil)
	}
	budget := &domain.Budget{
		Number:      generateBudgetNumber(),
		ClientID:    input.ClientID,
		ClientName:  strings.TrimSpace(input.ClientName),
		Description: strings.TrimSpace(input.Description),
		Items:       input.Items,
		Totals:      domain.ComputeTotals(input.Items, input.TaxRate),
		Status:      domain.BudgetPending,
	}
	if err := s.budgets.Create(ctx, budget); err != nil {
		return nil, apperrors.MapError(err)
	}
	return budget, nil
}

// GetBudget fetches an estimate.
func (s *QuoteService) GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	budget, err := s.budgets.GetByID(ctx, budgetID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("budget", map[string]any{"budget_id": budgetID})
		}
		return nil, apperrors.MapError(err)
	}
	return budget, nil
}

// ConvertBudgetToTicket creates a ticket from an accepted estimate and marks
// the budget converted. The two writes form one logical operation: if the
// mark fails after the ticket insert succeeded, the partial state surfaces
// as a ConsistencyError carrying both IDs for manual reconciliation. It is
// never retried here, because a retry could double-create tickets.
func (s *QuoteService) ConvertBudgetToTicket(ctx context.Context, budgetID string, actor domain.Actor) (*domain.Ticket, error) {
	budget, err := s.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if budget.Converted() {
		return nil, apperrors.NewConflictError("budget already converted", map[string]any{
			"budget_id":           budget.ID,
			"converted_ticket_id": *budget.ConvertedTicketID,
		})
	}
	if budget.Status == domain.BudgetRejected {
		return nil, apperrors.NewStateError("rejected budget cannot convert", nil)
	}

	now := s.now()
	var labor, parts []domain.LineItem
	for _, item := range budget.Items {
		if item.Kind == domain.LineItemPart {
			parts = append(parts, item)
		} else {
			labor = append(labor, item)
		}
	}
	budgetRef := budget.Number
	ticket := &domain.Ticket{
		ExternalKey:       generateTicketKey(),
		ClientID:          budget.ClientID,
		ClientName:        budget.ClientName,
		Description:       budget.Description,
		Status:            domain.StatusSolicitado,
		AppointmentStatus: domain.AppointmentPending,
		DepositAmount:     decimal.Zero,
		LaborItems:        labor,
		PartItems:         parts,
		BudgetRef:         &budgetRef,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.StatusSolicitado,
			Label:     domain.StatusLabel(domain.StatusSolicitado),
			Timestamp: now,
		}},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.budgets.MarkConverted(ctx, budget.ID, ticket.ID); err != nil {
		s.logger.Error("budget conversion partially applied",
			zap.String("budget_id", budget.ID),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return nil, apperrors.NewConsistencyError("ticket created but budget not marked converted", map[string]any{
			"budget_id": budget.ID,
			"ticket_id": ticket.ID,
		}, err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventBudgetConverted,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload:  events.BudgetConvertedPayload{BudgetID: budget.ID, BudgetNumber: budget.Number},
	})
	return ticket, nil
}

func (s *QuoteService) publish(ctx context.Context, event events.Event) {
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

func generateBudgetNumber() string {
	return "PRE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
