package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/messaging"
	"github.com/taller-labs/fieldservice/internal/repository"
)

// NotificationService fans out client-facing messages after workflow
// completion. Delivery is fire-and-forget and sits outside every
// transactional boundary: a failed send never affects ticket state.
type NotificationService struct {
	tickets       repository.TicketRepository
	channels      messaging.Channels
	quoteValidity int
	logger        *zap.Logger
}

// NewNotificationService constructs the service. quoteValidityDays is quoted
// to the client in the quote-available message.
func NewNotificationService(tickets repository.TicketRepository, channels messaging.Channels, quoteValidityDays int, logger *zap.Logger) *NotificationService {
	if quoteValidityDays <= 0 {
		quoteValidityDays = 15
	}
	return &NotificationService{tickets: tickets, channels: channels, quoteValidity: quoteValidityDays, logger: logger}
}

// Register subscribes the notification handlers on the dispatcher.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventSlotsCommitted, s.onSlotsCommitted)
	dispatcher.Subscribe(events.EventQuoteGenerated, s.onQuoteGenerated)
	dispatcher.Subscribe(events.EventMaterialReceived, s.onMaterialReceived)
	dispatcher.Subscribe(events.EventTicketFinalized, s.onFinalized)
}

func (s *NotificationService) onSlotsCommitted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlotsCommittedPayload)
	if !ok {
		return nil
	}
	if payload.Direct && payload.ScheduledAt != nil {
		s.notify(ctx, event.TicketID,
			fmt.Sprintf("Su visita ha sido confirmada para el %s.", payload.ScheduledAt.Format("02/01/2006 15:04")))
		return nil
	}
	s.notify(ctx, event.TicketID, "Le hemos propuesto horarios de visita. Por favor confirme uno.")
	return nil
}

func (s *NotificationService) onQuoteGenerated(ctx context.Context, event events.Event) error {
	s.notify(ctx, event.TicketID,
		fmt.Sprintf("Su presupuesto está disponible. Tiene %d días para aceptarlo.", s.quoteValidity))
	return nil
}

func (s *NotificationService) onMaterialReceived(ctx context.Context, event events.Event) error {
	s.notify(ctx, event.TicketID, "El material de su reparación ha llegado. Coordinaremos la visita.")
	return nil
}

func (s *NotificationService) onFinalized(ctx context.Context, event events.Event) error {
	s.notify(ctx, event.TicketID, "Su reparación ha sido finalizada. Gracias por confiar en nosotros.")
	return nil
}

func (s *NotificationService) notify(ctx context.Context, ticketID, message string) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("notification skipped, ticket lookup failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	s.send(ctx, ticket, message)
}

func (s *NotificationService) send(ctx context.Context, ticket *domain.Ticket, message string) {
	if ticket.ClientPhone == "" {
		return
	}
	if err := s.channels.SMS.Send(ctx, ticket.ClientPhone, message); err != nil {
		s.logger.Warn("sms notification failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}
