package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/config"
	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

type locationFixture struct {
	repo      *fakeTicketRepo
	positions *fakePositionRepo
	clock     *testClock
	svc       *LocationService
}

func newLocationFixture() *locationFixture {
	repo := newFakeTicketRepo()
	positions := &fakePositionRepo{}
	clock := newTestClock(workday(10, 0))
	state := newTestState(repo, newFakeTechnicianRepo(), &recordingDispatcher{}, &recordingChangeStream{}, clock)
	svc := NewLocationService(LocationDependencies{
		PositionRepo: positions,
		State:        state,
		Policy:       testPolicy(),
		Location:     config.LocationConfig{ThrottleSeconds: 20},
		Logger:       zap.NewNop(),
		Now:          clock.Now,
	})
	return &locationFixture{repo: repo, positions: positions, clock: clock, svc: svc}
}

func (fx *locationFixture) seedEnCamino(techID string) *domain.Ticket {
	return fx.repo.seed(&domain.Ticket{Status: domain.StatusEnCamino, TechnicianID: &techID})
}

func sample(techID string) domain.Position {
	return domain.Position{TechnicianID: techID, Latitude: 40.4168, Longitude: -3.7038}
}

func TestStartBroadcast(t *testing.T) {
	fx := newLocationFixture()
	ticket := fx.seedEnCamino("tech-1")

	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !fx.svc.Broadcasting("tech-1") {
		t.Fatal("technician should be broadcasting")
	}
}

func TestStartBroadcastGuards(t *testing.T) {
	fx := newLocationFixture()

	notTravelling := fx.repo.seed(&domain.Ticket{Status: domain.StatusAsignado, TechnicianID: strPtr("tech-1")})
	if err := fx.svc.Start(context.Background(), "tech-1", notTravelling.ID, technicianActor); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("non en_camino error = %v, want STATE_ERROR", err)
	}

	foreign := fx.seedEnCamino("tech-2")
	if err := fx.svc.Start(context.Background(), "tech-1", foreign.ID, technicianActor); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("foreign ticket error = %v, want FORBIDDEN", err)
	}

	ticket := fx.seedEnCamino("tech-1")
	fx.clock.Set(workday(21, 0))
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("after-hours error = %v, want STATE_ERROR", err)
	}
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, overrideActor); err != nil {
		t.Fatalf("override start: %v", err)
	}
}

func TestRecordThrottlesWrites(t *testing.T) {
	fx := newLocationFixture()
	ticket := fx.seedEnCamino("tech-1")
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First sample persists; the next 19 seconds of samples are dropped.
	if err := fx.svc.Record(context.Background(), sample("tech-1")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	for i := 0; i < 19; i++ {
		fx.clock.Advance(time.Second)
		if err := fx.svc.Record(context.Background(), sample("tech-1")); err != nil {
			t.Fatalf("throttled Record: %v", err)
		}
	}
	if got := fx.positions.count(); got != 1 {
		t.Fatalf("persisted = %d, want 1 inside the throttle window", got)
	}

	fx.clock.Advance(time.Second)
	if err := fx.svc.Record(context.Background(), sample("tech-1")); err != nil {
		t.Fatalf("Record after window: %v", err)
	}
	if got := fx.positions.count(); got != 2 {
		t.Fatalf("persisted = %d, want 2 after the window elapsed", got)
	}
	if fx.positions.inserted[1].TicketID != ticket.ID {
		t.Fatal("sample must be stamped with the broadcast ticket")
	}
}

func TestRecordRequiresBroadcast(t *testing.T) {
	fx := newLocationFixture()
	if err := fx.svc.Record(context.Background(), sample("tech-1")); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("error = %v, want STATE_ERROR", err)
	}
}

func TestRecordStopsImmediatelyOnPolicyFailure(t *testing.T) {
	fx := newLocationFixture()
	ticket := fx.seedEnCamino("tech-1")
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The window closes mid-interval; the very next sample must stop the
	// broadcast without waiting for the periodic recheck.
	fx.clock.Set(workday(20, 1))
	if err := fx.svc.Record(context.Background(), sample("tech-1")); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("error = %v, want STATE_ERROR", err)
	}
	if fx.svc.Broadcasting("tech-1") {
		t.Fatal("broadcast must stop immediately")
	}
	if fx.positions.count() != 0 {
		t.Fatal("no position may persist after the policy fails")
	}

	// No auto-resume: even back inside the window, Record stays rejected
	// until a fresh Start.
	fx.clock.Set(workday(10, 0).AddDate(0, 0, 1))
	if err := fx.svc.Record(context.Background(), sample("tech-1")); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("error = %v, want STATE_ERROR until restarted", err)
	}
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := fx.svc.Record(context.Background(), sample("tech-1")); err != nil {
		t.Fatalf("Record after restart: %v", err)
	}
}

func TestRecheckStopsExpiredBroadcasts(t *testing.T) {
	fx := newLocationFixture()
	plain := fx.seedEnCamino("tech-1")
	privileged := fx.seedEnCamino("tech-2")

	if err := fx.svc.Start(context.Background(), "tech-1", plain.ID, technicianActor); err != nil {
		t.Fatalf("Start tech-1: %v", err)
	}
	withOverride := domain.Actor{Type: domain.SubjectTypeTechnician, ID: "tech-2", OverrideTimeGate: true}
	if err := fx.svc.Start(context.Background(), "tech-2", privileged.ID, withOverride); err != nil {
		t.Fatalf("Start tech-2: %v", err)
	}

	fx.clock.Set(workday(20, 1))
	fx.svc.Recheck(context.Background())

	if fx.svc.Broadcasting("tech-1") {
		t.Fatal("recheck must stop the non-override broadcast")
	}
	if !fx.svc.Broadcasting("tech-2") {
		t.Fatal("override broadcast must survive the recheck")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fx := newLocationFixture()
	ticket := fx.seedEnCamino("tech-1")
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.svc.Stop("tech-1")
	fx.svc.Stop("tech-1")
	if fx.svc.Broadcasting("tech-1") {
		t.Fatal("technician should not be broadcasting")
	}
}

func TestConsumeDrainsFeed(t *testing.T) {
	fx := newLocationFixture()
	ticket := fx.seedEnCamino("tech-1")
	if err := fx.svc.Start(context.Background(), "tech-1", ticket.ID, technicianActor); err != nil {
		t.Fatalf("Start: %v", err)
	}

	feed := make(chan domain.Position, 3)
	feed <- sample("tech-1")
	feed <- sample("tech-1")
	feed <- sample("tech-1")
	close(feed)

	if err := fx.svc.Consume(context.Background(), staticSource(feed)); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got := fx.positions.count(); got != 1 {
		t.Fatalf("persisted = %d, want 1 (same-instant samples throttle)", got)
	}
}

type staticSource <-chan domain.Position

func (s staticSource) Samples(ctx context.Context) (<-chan domain.Position, error) {
	return s, nil
}

func strPtr(s string) *string { return &s }
