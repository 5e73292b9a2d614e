package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/config"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/repository"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// PositionSource is the raw GPS sample feed. Only the location service
// consumes it; sampling frequency is the sensor's business, persistence
// frequency is ours.
type PositionSource interface {
	Samples(ctx context.Context) (<-chan domain.Position, error)
}

// LocationService gates technician position broadcasting on the operating
// window and throttles persisted writes. Broadcasting requires a fresh
// policy pass via Start; a failed mid-interval check stops it immediately
// and it is never auto-resumed.
type LocationService struct {
	positions repository.PositionRepository
	state     *TicketService
	policy    config.PolicyConfig
	throttle  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	active map[string]*broadcastState
}

type broadcastState struct {
	ticketID    string
	override    bool
	lastPersist time.Time
}

// LocationDependencies bundles collaborators for the location service.
type LocationDependencies struct {
	PositionRepo repository.PositionRepository
	State        *TicketService
	Policy       config.PolicyConfig
	Location     config.LocationConfig
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewLocationService constructs the service.
func NewLocationService(deps LocationDependencies) *LocationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	throttle := deps.Location.Throttle()
	if throttle <= 0 {
		throttle = 20 * time.Second
	}
	return &LocationService{
		positions: deps.PositionRepo,
		state:     deps.State,
		policy:    deps.Policy,
		throttle:  throttle,
		logger:    deps.Logger,
		now:       now,
		active:    make(map[string]*broadcastState),
	}
}

// Start begins broadcasting for a technician travelling to a ticket. It is
// the only entry point: a stopped broadcast must come back through here so
// every (re)start gets a fresh policy pass.
func (s *LocationService) Start(ctx context.Context, technicianID, ticketID string, actor domain.Actor) error {
	ticket, err := s.state.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status != domain.StatusEnCamino {
		return apperrors.NewStateError("broadcasting requires an en_camino ticket", map[string]any{
			"status": ticket.Status,
		})
	}
	if ticket.TechnicianID == nil || *ticket.TechnicianID != technicianID {
		return apperrors.NewForbidden("ticket is assigned to another technician")
	}
	policy := s.guardPolicy(actor)
	if !policy.AllowsBroadcast(s.now()) {
		return apperrors.NewStateError("broadcasting not permitted outside operating hours", nil)
	}

	s.mu.Lock()
	s.active[technicianID] = &broadcastState{ticketID: ticketID, override: actor.OverrideTimeGate}
	s.mu.Unlock()
	s.logger.Info("position broadcast started",
		zap.String("technician_id", technicianID),
		zap.String("ticket_id", ticketID))
	return nil
}

// Stop ends broadcasting for a technician.
func (s *LocationService) Stop(technicianID string) {
	s.mu.Lock()
	_, was := s.active[technicianID]
	delete(s.active, technicianID)
	s.mu.Unlock()
	if was {
		s.logger.Info("position broadcast stopped", zap.String("technician_id", technicianID))
	}
}

// Broadcasting reports whether the technician is currently permitted to
// broadcast.
func (s *LocationService) Broadcasting(technicianID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[technicianID]
	return ok
}

// Record ingests one GPS sample. The policy is re-checked per sample: if it
// fails mid-interval, broadcasting stops immediately rather than waiting for
// the next minute tick. Writes are throttled to one persisted update per
// throttle interval regardless of sensor frequency; throttled samples are
// dropped silently.
func (s *LocationService) Record(ctx context.Context, sample domain.Position) error {
	now := s.now()

	s.mu.Lock()
	state, ok := s.active[sample.TechnicianID]
	if !ok {
		s.mu.Unlock()
		return apperrors.NewStateError("technician is not broadcasting", nil)
	}
	policy := s.broadcastPolicy(state.override)
	if !policy.AllowsBroadcast(now) {
		delete(s.active, sample.TechnicianID)
		s.mu.Unlock()
		s.logger.Info("position broadcast stopped by policy",
			zap.String("technician_id", sample.TechnicianID))
		return apperrors.NewStateError("broadcasting no longer permitted", nil)
	}
	if !state.lastPersist.IsZero() && now.Sub(state.lastPersist) < s.throttle {
		s.mu.Unlock()
		return nil
	}
	state.lastPersist = now
	ticketID := state.ticketID
	s.mu.Unlock()

	sample.TicketID = ticketID
	sample.SampledAt = now
	if err := s.positions.Insert(ctx, sample); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Recheck re-evaluates the operating-window policy for every active
// broadcaster. The location worker calls it once per minute; any broadcaster
// that fails the check is stopped and must Start again.
func (s *LocationService) Recheck(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	for technicianID, state := range s.active {
		if !s.broadcastPolicy(state.override).AllowsBroadcast(now) {
			delete(s.active, technicianID)
			s.logger.Info("position broadcast stopped by periodic recheck",
				zap.String("technician_id", technicianID))
		}
	}
	s.mu.Unlock()
}

// Consume drains a position feed into Record until the context ends or the
// feed closes. Gating errors stop consumption for that technician but not
// the feed.
func (s *LocationService) Consume(ctx context.Context, source PositionSource) error {
	samples, err := source.Samples(ctx)
	if err != nil {
		return apperrors.NewExternalServiceError("position feed unavailable", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			if err := s.Record(ctx, sample); err != nil && !apperrors.IsCode(err, "STATE_ERROR") {
				s.logger.Warn("position sample dropped", zap.Error(err))
			}
		}
	}
}

func (s *LocationService) guardPolicy(actor domain.Actor) domain.GuardPolicy {
	return s.broadcastPolicy(actor.OverrideTimeGate)
}

func (s *LocationService) broadcastPolicy(override bool) domain.GuardPolicy {
	return domain.GuardPolicy{
		OpenHour:     s.policy.OpenHour,
		CloseHour:    s.policy.CloseHour,
		MaxStartLead: s.policy.MaxStartLead(),
		Override:     override,
	}
}
