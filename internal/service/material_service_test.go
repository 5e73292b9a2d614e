package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

type materialFixture struct {
	repo       *fakeTicketRepo
	docs       *fakeDocGenerator
	dispatcher *recordingDispatcher
	clock      *testClock
	svc        *MaterialService
}

func newMaterialFixture() *materialFixture {
	repo := newFakeTicketRepo()
	docs := &fakeDocGenerator{}
	dispatcher := &recordingDispatcher{}
	clock := newTestClock(workday(10, 0))
	state := newTestState(repo, newFakeTechnicianRepo(), dispatcher, &recordingChangeStream{}, clock)
	svc := NewMaterialService(MaterialDependencies{
		TicketRepo: repo,
		State:      state,
		Documents:  docs,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        clock.Now,
	})
	return &materialFixture{repo: repo, docs: docs, dispatcher: dispatcher, clock: clock, svc: svc}
}

func TestRequestMaterial(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusEnDiagnostico})

	ticket, err := fx.svc.RequestMaterial(context.Background(), seeded.ID, MaterialRequestInput{
		Description:  "Bomba X",
		Deposit:      decimal.RequireFromString("50"),
		SignatureRef: "doc://signatures/abc",
		Priority:     domain.PartPriorityUrgent,
	}, technicianActor)
	if err != nil {
		t.Fatalf("RequestMaterial: %v", err)
	}
	if ticket.Status != domain.StatusPendienteMaterial {
		t.Fatalf("status = %s, want pendiente_material", ticket.Status)
	}
	if ticket.RequiredPartsDescription != "Bomba X" {
		t.Fatalf("description = %q", ticket.RequiredPartsDescription)
	}
	if !ticket.DepositAmount.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("deposit = %s, want 50", ticket.DepositAmount)
	}
	if !ticket.PartRequest.Requested || ticket.PartRequest.Priority != domain.PartPriorityUrgent {
		t.Fatalf("part request = %+v", ticket.PartRequest)
	}
	if ticket.MaterialReceiptRef == nil {
		t.Fatal("receipt ref not recorded")
	}
	if ticket.MaterialOrdered.Done || ticket.MaterialReceived.Done {
		t.Fatal("sub-steps must start unmarked")
	}
	if len(ticket.StatusHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(ticket.StatusHistory))
	}
	if !fx.dispatcher.sawType(events.EventMaterialRequested) {
		t.Fatal("material_requested event not published")
	}
}

func TestRequestMaterialValidation(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusEnDiagnostico})

	cases := []struct {
		name  string
		input MaterialRequestInput
	}{
		{"empty description", MaterialRequestInput{Deposit: decimal.RequireFromString("50")}},
		{"blank description with signature", MaterialRequestInput{Description: "  ", Deposit: decimal.RequireFromString("50"), SignatureRef: "doc://signatures/abc"}},
		{"zero deposit", MaterialRequestInput{Description: "Bomba X"}},
		{"zero deposit with signature", MaterialRequestInput{Description: "Bomba X", SignatureRef: "doc://signatures/abc"}},
		{"negative deposit", MaterialRequestInput{Description: "Bomba X", Deposit: decimal.RequireFromString("-1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.svc.RequestMaterial(context.Background(), seeded.ID, tc.input, technicianActor); !apperrors.IsCode(err, "VALIDATION_FAILED") {
				t.Fatalf("error = %v, want VALIDATION_FAILED", err)
			}
		})
	}

	stored, _ := fx.repo.GetByID(context.Background(), seeded.ID)
	if stored.Status != domain.StatusEnDiagnostico {
		t.Fatalf("rejected requests must not move the ticket: %s", stored.Status)
	}
}

func TestRequestMaterialWrongStatus(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusEnReparacion})
	input := MaterialRequestInput{Description: "Bomba X", Deposit: decimal.RequireFromString("50")}
	if _, err := fx.svc.RequestMaterial(context.Background(), seeded.ID, input, technicianActor); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("error = %v, want STATE_ERROR", err)
	}
}

func TestRequestMaterialReceiptFailureKeepsStatus(t *testing.T) {
	fx := newMaterialFixture()
	fx.docs.receiptErr = errBoom
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusEnDiagnostico})

	input := MaterialRequestInput{Description: "Bomba X", Deposit: decimal.RequireFromString("50")}
	if _, err := fx.svc.RequestMaterial(context.Background(), seeded.ID, input, technicianActor); !apperrors.IsCode(err, "EXTERNAL_SERVICE_ERROR") {
		t.Fatalf("error = %v, want EXTERNAL_SERVICE_ERROR", err)
	}
	stored, _ := fx.repo.GetByID(context.Background(), seeded.ID)
	if stored.Status != domain.StatusEnDiagnostico {
		t.Fatalf("status = %s, want en_diagnostico kept", stored.Status)
	}
}

func TestMarkOrdered(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusPendienteMaterial})

	if _, err := fx.svc.MarkOrdered(context.Background(), seeded.ID, "  ", operatorActor); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("blank supplier error = %v, want VALIDATION_FAILED", err)
	}

	ticket, err := fx.svc.MarkOrdered(context.Background(), seeded.ID, "Suministros García", operatorActor)
	if err != nil {
		t.Fatalf("MarkOrdered: %v", err)
	}
	if ticket.Status != domain.StatusPendienteMaterial {
		t.Fatalf("status = %s, sub-steps must not change the primary status", ticket.Status)
	}
	if !ticket.MaterialOrdered.Done || ticket.MaterialOrdered.Actor != operatorActor.ID || ticket.MaterialOrdered.At == nil {
		t.Fatalf("ordered mark = %+v", ticket.MaterialOrdered)
	}
	if ticket.SupplierName != "Suministros García" {
		t.Fatalf("supplier = %q", ticket.SupplierName)
	}
	if !fx.dispatcher.sawType(events.EventMaterialOrdered) {
		t.Fatal("material_ordered event not published")
	}
}

func TestMarkOrderedWrongStatus(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusEnReparacion})
	if _, err := fx.svc.MarkOrdered(context.Background(), seeded.ID, "Suministros García", operatorActor); !apperrors.IsCode(err, "STATE_ERROR") {
		t.Fatalf("error = %v, want STATE_ERROR", err)
	}
}

func TestMarkReceived(t *testing.T) {
	fx := newMaterialFixture()
	assigned := "tech-1"
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusPendienteMaterial, TechnicianID: &assigned})

	other := domain.Actor{Type: domain.SubjectTypeTechnician, ID: "tech-9"}
	if _, err := fx.svc.MarkReceived(context.Background(), seeded.ID, other); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("wrong technician error = %v, want FORBIDDEN", err)
	}

	ticket, err := fx.svc.MarkReceived(context.Background(), seeded.ID, technicianActor)
	if err != nil {
		t.Fatalf("MarkReceived: %v", err)
	}
	if !ticket.MaterialReceived.Done || ticket.MaterialReceived.Actor != technicianActor.ID {
		t.Fatalf("received mark = %+v", ticket.MaterialReceived)
	}
	if ticket.Status != domain.StatusPendienteMaterial {
		t.Fatalf("status = %s, want pendiente_material", ticket.Status)
	}
	if !fx.dispatcher.sawType(events.EventMaterialReceived) {
		t.Fatal("material_received event not published")
	}
}

func TestMarkReceivedForcedByOperator(t *testing.T) {
	fx := newMaterialFixture()
	assigned := "tech-1"
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusPendienteMaterial, TechnicianID: &assigned})

	ticket, err := fx.svc.MarkReceived(context.Background(), seeded.ID, operatorActor)
	if err != nil {
		t.Fatalf("MarkReceived (forced): %v", err)
	}
	if !ticket.MaterialReceived.Done || ticket.MaterialReceived.Actor != operatorActor.ID {
		t.Fatalf("received mark = %+v", ticket.MaterialReceived)
	}
	// The event carries the forced flag.
	for _, event := range fx.dispatcher.events {
		if event.Type == events.EventMaterialReceived {
			payload, ok := event.Payload.(events.MaterialPayload)
			if !ok || !payload.Forced {
				t.Fatalf("payload = %+v, want Forced", event.Payload)
			}
			return
		}
	}
	t.Fatal("material_received event not published")
}

func TestMarkReceivedUnassignedTicket(t *testing.T) {
	fx := newMaterialFixture()
	seeded := fx.repo.seed(&domain.Ticket{Status: domain.StatusPendienteMaterial})
	if _, err := fx.svc.MarkReceived(context.Background(), seeded.ID, technicianActor); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("error = %v, want FORBIDDEN for unassigned ticket", err)
	}
}
