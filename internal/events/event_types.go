package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCancelled     EventType = "ticket_cancelled"
	EventSlotsCommitted      EventType = "slots_committed"
	EventQuoteGenerated      EventType = "quote_generated"
	EventQuoteRevalidated    EventType = "quote_revalidated"
	EventQuoteForceAccepted  EventType = "quote_force_accepted"
	EventBudgetConverted     EventType = "budget_converted"
	EventMaterialRequested   EventType = "material_requested"
	EventMaterialOrdered     EventType = "material_ordered"
	EventMaterialReceived    EventType = "material_received"
	EventPaymentPending      EventType = "payment_pending"
	EventPaymentConfirmed    EventType = "payment_confirmed"
	EventTicketFinalized     EventType = "ticket_finalized"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Label     string              `json:"label"`
}

// SlotsCommittedPayload payload.
type SlotsCommittedPayload struct {
	Direct            bool                     `json:"direct"`
	TechnicianID      *string                  `json:"technician_id,omitempty"`
	ScheduledAt       *time.Time               `json:"scheduled_at,omitempty"`
	AppointmentStatus domain.AppointmentStatus `json:"appointment_status"`
	Slots             []domain.SlotProposal    `json:"slots,omitempty"`
}

// QuotePayload payload for generate/revalidate/force-accept.
type QuotePayload struct {
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	DocumentRef *string    `json:"document_ref,omitempty"`
}

// BudgetConvertedPayload payload.
type BudgetConvertedPayload struct {
	BudgetID     string `json:"budget_id"`
	BudgetNumber string `json:"budget_number"`
}

// MaterialPayload payload.
type MaterialPayload struct {
	Description  string          `json:"description,omitempty"`
	Deposit      decimal.Decimal `json:"deposit,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Forced       bool            `json:"forced,omitempty"`
}

// PaymentPayload payload.
type PaymentPayload struct {
	Method     domain.PaymentMethod `json:"method"`
	FinalPrice decimal.Decimal      `json:"final_price"`
	IsPaid     bool                 `json:"is_paid"`
}
