package service

import (
	"context"
	"testing"

	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

func newScheduleFixture(repo *fakeTicketRepo, techs *fakeTechnicianRepo, dispatcher *recordingDispatcher) *ScheduleService {
	clock := newTestClock(workday(9, 0))
	state := newTestState(repo, techs, dispatcher, &recordingChangeStream{}, clock)
	return NewScheduleService(ScheduleDependencies{
		TicketRepo:     repo,
		TechnicianRepo: techs,
		State:          state,
		Dispatcher:     dispatcher,
		Logger:         state.logger,
		Now:            clock.Now,
	})
}

func slot(date, timeOfDay, techID string) domain.SlotProposal {
	return domain.SlotProposal{Date: date, Time: timeOfDay, TechnicianID: techID, TechnicianName: "Tech " + techID}
}

func TestSlotBuilder(t *testing.T) {
	builder := NewSlotBuilder()

	if err := builder.AddSlot(slot("2024-05-02", "10:00", "")); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("missing technician error = %v, want VALIDATION_FAILED", err)
	}
	if err := builder.AddSlot(slot("2024-13-02", "10:00", "tech-1")); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("bad date error = %v, want VALIDATION_FAILED", err)
	}
	if err := builder.AddSlot(slot("2024-05-02", "25:00", "tech-1")); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("bad time error = %v, want VALIDATION_FAILED", err)
	}

	if err := builder.AddSlot(slot("2024-05-02", "10:00", "tech-1")); err != nil {
		t.Fatalf("first slot: %v", err)
	}
	if err := builder.AddSlot(slot("2024-05-02", "10:00", "tech-2")); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("duplicate (date,time) error = %v, want CONFLICT", err)
	}
	if err := builder.AddSlot(slot("2024-05-02", "12:00", "tech-1")); err != nil {
		t.Fatalf("second slot: %v", err)
	}
	if err := builder.AddSlot(slot("2024-05-03", "10:00", "tech-1")); err != nil {
		t.Fatalf("third slot: %v", err)
	}
	if err := builder.AddSlot(slot("2024-05-04", "10:00", "tech-1")); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("fourth slot error = %v, want CONFLICT", err)
	}
	if got := len(builder.Slots()); got != 3 {
		t.Fatalf("slots kept = %d, want 3", got)
	}
}

func TestRankTechnicians(t *testing.T) {
	repo := newFakeTicketRepo()
	techs := newFakeTechnicianRepo(
		domain.Technician{ID: "tech-a", Kind: domain.SubjectTypeTechnician, Name: "Ana", Active: true},
		domain.Technician{ID: "tech-b", Kind: domain.SubjectTypeTechnician, Name: "Bruno", Active: true},
		domain.Technician{ID: "tech-c", Kind: domain.SubjectTypeTechnician, Name: "Carla", Active: true},
		domain.Technician{ID: "tech-off", Kind: domain.SubjectTypeTechnician, Name: "Baja", Active: false},
		domain.Technician{ID: "op-1", Kind: domain.SubjectTypeOperator, Name: "Oficina", Active: true},
	)
	// tech-a is busy at the exact slot; tech-b has the heavier day.
	repo.hasAt["tech-a|2024-05-02|10:00"] = true
	repo.countOn["tech-a|2024-05-02"] = 1
	repo.countOn["tech-b|2024-05-02"] = 3
	repo.countOn["tech-c|2024-05-02"] = 1

	svc := newScheduleFixture(repo, techs, &recordingDispatcher{})
	rankings, err := svc.RankTechnicians(context.Background(), "2024-05-02", "10:00")
	if err != nil {
		t.Fatalf("RankTechnicians: %v", err)
	}
	if len(rankings) != 3 {
		t.Fatalf("rankings = %d, want 3 active field technicians", len(rankings))
	}
	if rankings[0].TechnicianID != "tech-c" || rankings[1].TechnicianID != "tech-b" {
		t.Fatalf("free technicians must sort by ascending workload: %+v", rankings)
	}
	if rankings[2].TechnicianID != "tech-a" || !rankings[2].Conflict {
		t.Fatalf("conflicted technician must sort last: %+v", rankings)
	}

	if _, err := svc.RankTechnicians(context.Background(), "02-05-2024", "10:00"); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("bad date error = %v, want VALIDATION_FAILED", err)
	}
}

func TestCommitDirect(t *testing.T) {
	repo := newFakeTicketRepo()
	dispatcher := &recordingDispatcher{}
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), dispatcher)
	seeded := repo.seed(&domain.Ticket{Status: domain.StatusSolicitado, AppointmentStatus: domain.AppointmentPending})

	ticket, err := svc.Commit(context.Background(), seeded.ID, []domain.SlotProposal{slot("2024-05-02", "10:00", "tech-a")}, true, operatorActor)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if ticket.Status != domain.StatusAsignado {
		t.Fatalf("status = %s, want asignado", ticket.Status)
	}
	if ticket.TechnicianID == nil || *ticket.TechnicianID != "tech-a" {
		t.Fatalf("technician = %v, want tech-a", ticket.TechnicianID)
	}
	if ticket.AppointmentStatus != domain.AppointmentConfirmed {
		t.Fatalf("appointment = %s, want confirmed", ticket.AppointmentStatus)
	}
	if ticket.ScheduledAt == nil {
		t.Fatal("scheduled_at not set")
	}
	if got := ticket.ScheduledAt.Format("2006-01-02 15:04"); got != "2024-05-02 10:00" {
		t.Fatalf("scheduled_at = %s, want 2024-05-02 10:00", got)
	}
	if len(ticket.ProposedSlots) != 0 {
		t.Fatalf("proposed slots must be cleared on direct commit: %+v", ticket.ProposedSlots)
	}
	if !dispatcher.sawType(events.EventSlotsCommitted) {
		t.Fatal("slots_committed event not published")
	}
}

func TestCommitProposal(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), &recordingDispatcher{})
	scheduled := workday(11, 0)
	seeded := repo.seed(&domain.Ticket{Status: domain.StatusSolicitado, ScheduledAt: &scheduled})

	slots := []domain.SlotProposal{
		slot("2024-05-02", "10:00", "tech-a"),
		slot("2024-05-03", "16:00", "tech-b"),
	}
	ticket, err := svc.Commit(context.Background(), seeded.ID, slots, false, operatorActor)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if ticket.Status != domain.StatusAsignado {
		t.Fatalf("status = %s, want asignado", ticket.Status)
	}
	if ticket.AppointmentStatus != domain.AppointmentPending {
		t.Fatalf("appointment = %s, want pending", ticket.AppointmentStatus)
	}
	if ticket.ScheduledAt != nil {
		t.Fatal("scheduled_at must be cleared until the client confirms")
	}
	if ticket.TechnicianID == nil || *ticket.TechnicianID != "tech-a" {
		t.Fatalf("tentative technician = %v, want slots[0]'s tech-a", ticket.TechnicianID)
	}
	if len(ticket.ProposedSlots) != 2 {
		t.Fatalf("proposed slots = %d, want 2", len(ticket.ProposedSlots))
	}
}

func TestCommitValidation(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), &recordingDispatcher{})
	seeded := repo.seed(&domain.Ticket{Status: domain.StatusSolicitado})

	if _, err := svc.Commit(context.Background(), seeded.ID, nil, false, operatorActor); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("zero slots error = %v, want VALIDATION_FAILED", err)
	}
	two := []domain.SlotProposal{slot("2024-05-02", "10:00", "tech-a"), slot("2024-05-03", "10:00", "tech-a")}
	if _, err := svc.Commit(context.Background(), seeded.ID, two, true, operatorActor); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("direct with two slots error = %v, want VALIDATION_FAILED", err)
	}
	dup := []domain.SlotProposal{slot("2024-05-02", "10:00", "tech-a"), slot("2024-05-02", "10:00", "tech-b")}
	if _, err := svc.Commit(context.Background(), seeded.ID, dup, false, operatorActor); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("duplicate slots error = %v, want CONFLICT", err)
	}
}

func TestCommitReproposal(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), &recordingDispatcher{})
	techID := "tech-a"
	seeded := repo.seed(&domain.Ticket{Status: domain.StatusAsignado, TechnicianID: &techID})

	// A ticket already assigned can receive a fresh proposal set.
	if _, err := svc.Commit(context.Background(), seeded.ID, []domain.SlotProposal{slot("2024-05-05", "12:00", "tech-b")}, false, operatorActor); err != nil {
		t.Fatalf("re-proposal: %v", err)
	}
}

func TestConfirmSlot(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), &recordingDispatcher{})
	seeded := repo.seed(&domain.Ticket{
		Status:            domain.StatusAsignado,
		AppointmentStatus: domain.AppointmentPending,
		ProposedSlots: []domain.SlotProposal{
			slot("2024-05-02", "10:00", "tech-a"),
			slot("2024-05-03", "16:00", "tech-b"),
		},
	})

	if _, err := svc.ConfirmSlot(context.Background(), seeded.ID, "2024-05-04", "09:00"); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("unknown slot error = %v, want VALIDATION_FAILED", err)
	}

	ticket, err := svc.ConfirmSlot(context.Background(), seeded.ID, "2024-05-03", "16:00")
	if err != nil {
		t.Fatalf("ConfirmSlot: %v", err)
	}
	if ticket.Status != domain.StatusAsignado {
		t.Fatalf("status = %s, confirmation must not change the primary status", ticket.Status)
	}
	if ticket.AppointmentStatus != domain.AppointmentConfirmed {
		t.Fatalf("appointment = %s, want confirmed", ticket.AppointmentStatus)
	}
	if ticket.TechnicianID == nil || *ticket.TechnicianID != "tech-b" {
		t.Fatalf("technician = %v, want chosen slot's tech-b", ticket.TechnicianID)
	}
	if got := ticket.ScheduledAt.Format("2006-01-02 15:04"); got != "2024-05-03 16:00" {
		t.Fatalf("scheduled_at = %s, want 2024-05-03 16:00", got)
	}
	if len(ticket.ProposedSlots) != 0 {
		t.Fatal("proposals must be cleared after confirmation")
	}
	// Only the asignado entry: confirmation is not a transition.
	stored, _ := repo.GetByID(context.Background(), seeded.ID)
	if len(stored.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(stored.StatusHistory))
	}
}

func TestCommitBlockedUntilMaterialReceived(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newScheduleFixture(repo, newFakeTechnicianRepo(), &recordingDispatcher{})

	techID := "tech-1"
	waiting := repo.seed(&domain.Ticket{Status: domain.StatusPendienteMaterial, TechnicianID: &techID})
	if _, err := svc.Commit(context.Background(), waiting.ID, []domain.SlotProposal{slot("2024-05-02", "10:00", "tech-a")}, true, operatorActor); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("commit before receipt error = %v, want STATE_ERROR", err)
	}
	stored, _ := repo.GetByID(context.Background(), waiting.ID)
	if stored.Status != domain.StatusPendienteMaterial || stored.AppointmentStatus == domain.AppointmentConfirmed {
		t.Fatalf("ticket must stay paused: status %s appointment %s", stored.Status, stored.AppointmentStatus)
	}

	at := workday(12, 0)
	arrived := repo.seed(&domain.Ticket{
		Status:           domain.StatusPendienteMaterial,
		TechnicianID:     &techID,
		MaterialReceived: domain.StepMark{Done: true, Actor: techID, At: &at},
	})
	ticket, err := svc.Commit(context.Background(), arrived.ID, []domain.SlotProposal{slot("2024-05-02", "10:00", "tech-a")}, true, operatorActor)
	if err != nil {
		t.Fatalf("commit after receipt: %v", err)
	}
	if ticket.Status != domain.StatusAsignado || ticket.AppointmentStatus != domain.AppointmentConfirmed {
		t.Fatalf("status = %s appointment = %s, want asignado confirmed", ticket.Status, ticket.AppointmentStatus)
	}
}
