package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// maxSlotProposals bounds the proposal set per ticket.
const maxSlotProposals = 3

const (
	slotDateLayout = "2006-01-02"
	slotTimeLayout = "15:04"
)

// ScheduleService builds slot proposals, ranks technicians by conflict and
// workload, and commits assignments either directly or as a proposal set
// awaiting client choice.
type ScheduleService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	state       *TicketService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// ScheduleDependencies bundles collaborators for the schedule service.
type ScheduleDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	State          *TicketService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewScheduleService constructs the service.
func NewScheduleService(deps ScheduleDependencies) *ScheduleService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		state:       deps.State,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		now:         now,
	}
}

// TechnicianRanking is one candidate row for operator selection at a
// (date, time). Conflicted technicians sort last, then ascending workload.
type TechnicianRanking struct {
	TechnicianID   string `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
	Conflict       bool   `json:"conflict"`
	Workload       int    `json:"workload"`
}

// RankTechnicians computes conflict and same-day workload for every active
// technician at the candidate (date, time). Read-then-decide, no locking:
// two operators racing to the same slot is an accepted business-level race
// because client confirmation is a distinct later step.
func (s *ScheduleService) RankTechnicians(ctx context.Context, date, timeOfDay string) ([]TechnicianRanking, error) {
	if err := validateSlotClock(date, timeOfDay); err != nil {
		return nil, err
	}
	techs, err := s.technicians.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	rankings := make([]TechnicianRanking, 0, len(techs))
	for _, tech := range techs {
		conflict, err := s.tickets.HasAppointmentAt(ctx, tech.ID, date, timeOfDay)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		workload, err := s.tickets.CountAppointmentsOn(ctx, tech.ID, date)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		rankings = append(rankings, TechnicianRanking{
			TechnicianID:   tech.ID,
			TechnicianName: tech.Name,
			Conflict:       conflict,
			Workload:       workload,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Conflict != rankings[j].Conflict {
			return !rankings[i].Conflict
		}
		return rankings[i].Workload < rankings[j].Workload
	})
	return rankings, nil
}

// SlotBuilder accumulates up to three slot proposals, unique by (date, time).
type SlotBuilder struct {
	slots []domain.SlotProposal
}

// NewSlotBuilder starts an empty proposal set.
func NewSlotBuilder() *SlotBuilder {
	return &SlotBuilder{}
}

// AddSlot appends one candidate appointment.
func (b *SlotBuilder) AddSlot(slot domain.SlotProposal) error {
	if strings.TrimSpace(slot.TechnicianID) == "" {
		return apperrors.NewValidationError("slot requires a technician", nil)
	}
	if err := validateSlotClock(slot.Date, slot.Time); err != nil {
		return err
	}
	if len(b.slots) >= maxSlotProposals {
		return apperrors.NewConflictError("at most 3 slot proposals per ticket", nil)
	}
	for _, existing := range b.slots {
		if existing.Date == slot.Date && existing.Time == slot.Time {
			return apperrors.NewConflictError("duplicate slot proposal", map[string]any{
				"date": slot.Date,
				"time": slot.Time,
			})
		}
	}
	b.slots = append(b.slots, slot)
	return nil
}

// Slots returns the accumulated proposals.
func (b *SlotBuilder) Slots() []domain.SlotProposal {
	return b.slots
}

// Commit assigns the ticket. Direct mode (exactly one slot) confirms the
// appointment immediately; proposal mode stores the set for client choice
// with slots[0]'s technician as a tentative hint and scheduled_at cleared.
func (s *ScheduleService) Commit(ctx context.Context, ticketID string, slots []domain.SlotProposal, direct bool, actor domain.Actor) (*domain.Ticket, error) {
	if len(slots) == 0 {
		return nil, apperrors.NewValidationError("commit requires at least one slot", nil)
	}
	if direct && len(slots) != 1 {
		return nil, apperrors.NewValidationError("direct commit requires exactly one slot", map[string]any{
			"slots": len(slots),
		})
	}
	builder := NewSlotBuilder()
	for _, slot := range slots {
		if err := builder.AddSlot(slot); err != nil {
			return nil, err
		}
	}

	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if direct {
		slot := slots[0]
		scheduledAt, err := slotClock(slot.Date, slot.Time)
		if err != nil {
			return nil, err
		}
		techID := slot.TechnicianID
		ticket.TechnicianID = &techID
		ticket.ScheduledAt = &scheduledAt
		ticket.AppointmentStatus = domain.AppointmentConfirmed
		ticket.ProposedSlots = nil
	} else {
		techID := slots[0].TechnicianID
		ticket.TechnicianID = &techID
		ticket.ScheduledAt = nil
		ticket.AppointmentStatus = domain.AppointmentPending
		ticket.ProposedSlots = slots
	}

	if err := s.state.ApplyTransition(ctx, ticket, domain.StatusAsignado, actor); err != nil {
		return nil, err
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"technician_id":      ticket.TechnicianID,
		"scheduled_at":       ticket.ScheduledAt,
		"appointment_status": string(ticket.AppointmentStatus),
		"proposed_slots":     ticket.ProposedSlots,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventSlotsCommitted,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: actor.Type, ID: actor.ID},
		Payload: events.SlotsCommittedPayload{
			Direct:            direct,
			TechnicianID:      ticket.TechnicianID,
			ScheduledAt:       ticket.ScheduledAt,
			AppointmentStatus: ticket.AppointmentStatus,
			Slots:             ticket.ProposedSlots,
		},
	})
	return ticket, nil
}

// ConfirmSlot records the client's choice among the proposed slots. The
// primary status stays asignado; only the appointment fields change.
func (s *ScheduleService) ConfirmSlot(ctx context.Context, ticketID, date, timeOfDay string) (*domain.Ticket, error) {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	var chosen *domain.SlotProposal
	for i := range ticket.ProposedSlots {
		if ticket.ProposedSlots[i].Date == date && ticket.ProposedSlots[i].Time == timeOfDay {
			chosen = &ticket.ProposedSlots[i]
			break
		}
	}
	if chosen == nil {
		return nil, apperrors.NewValidationError("slot is not among the proposals", map[string]any{
			"date": date,
			"time": timeOfDay,
		})
	}
	scheduledAt, err := slotClock(chosen.Date, chosen.Time)
	if err != nil {
		return nil, err
	}
	techID := chosen.TechnicianID
	ticket.TechnicianID = &techID
	ticket.ScheduledAt = &scheduledAt
	ticket.AppointmentStatus = domain.AppointmentConfirmed
	ticket.ProposedSlots = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.state.NotifyChange(ctx, ticket.ID, map[string]any{
		"technician_id":      ticket.TechnicianID,
		"scheduled_at":       ticket.ScheduledAt,
		"appointment_status": string(ticket.AppointmentStatus),
		"proposed_slots":     nil,
	})
	return ticket, nil
}

func (s *ScheduleService) publish(ctx context.Context, event events.Event) {
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

func validateSlotClock(date, timeOfDay string) error {
	if _, err := slotClock(date, timeOfDay); err != nil {
		return apperrors.NewValidationError("invalid slot date or time", map[string]any{
			"date": date,
			"time": timeOfDay,
		})
	}
	return nil
}

func slotClock(date, timeOfDay string) (time.Time, error) {
	return time.ParseInLocation(slotDateLayout+" "+slotTimeLayout, date+" "+timeOfDay, time.Local)
}
