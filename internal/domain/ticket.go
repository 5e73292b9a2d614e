package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	StatusSolicitado           TicketStatus = "solicitado"
	StatusAsignado             TicketStatus = "asignado"
	StatusEnCamino             TicketStatus = "en_camino"
	StatusEnDiagnostico        TicketStatus = "en_diagnostico"
	StatusPresupuestoPendiente TicketStatus = "presupuesto_pendiente"
	StatusPresupuestoRevision  TicketStatus = "presupuesto_revision"
	StatusPresupuestoAceptado  TicketStatus = "presupuesto_aceptado"
	StatusPendienteMaterial    TicketStatus = "pendiente_material"
	StatusEnReparacion         TicketStatus = "en_reparacion"
	StatusPendingPayment       TicketStatus = "PENDING_PAYMENT"
	StatusFinalizado           TicketStatus = "finalizado"
	StatusCancelado            TicketStatus = "cancelado"
	StatusRejected             TicketStatus = "rejected"
)

// StatusLabel returns the operator-facing label for a status.
func StatusLabel(status TicketStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

var statusLabels = map[TicketStatus]string{
	StatusSolicitado:           "Solicitado",
	StatusAsignado:             "Asignado",
	StatusEnCamino:             "En camino",
	StatusEnDiagnostico:        "En diagnóstico",
	StatusPresupuestoPendiente: "Presupuesto pendiente",
	StatusPresupuestoRevision:  "Presupuesto en revisión",
	StatusPresupuestoAceptado:  "Presupuesto aceptado",
	StatusPendienteMaterial:    "Pendiente de material",
	StatusEnReparacion:         "En reparación",
	StatusPendingPayment:       "Pago pendiente",
	StatusFinalizado:           "Finalizado",
	StatusCancelado:            "Cancelado",
	StatusRejected:             "Rechazado",
}

// IsTerminal reports whether no further transitions are allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusFinalizado || s == StatusCancelado || s == StatusRejected
}

// AppointmentStatus tracks whether the client confirmed a visit.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
)

// PaymentMethod enumerates closure payment modes.
type PaymentMethod string

const (
	PaymentDigital  PaymentMethod = "digital"
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
)

// RequiresProof reports whether a manual payment method needs an uploaded
// proof reference before finalize.
func (m PaymentMethod) RequiresProof() bool {
	return m != PaymentCash && m != PaymentDigital
}

// StatusHistoryEntry is one append-only audit record. Prior entries are
// never mutated; history length only grows.
type StatusHistoryEntry struct {
	Status    TicketStatus `json:"status"`
	Label     string       `json:"label"`
	Timestamp time.Time    `json:"timestamp"`
}

// SlotProposal is a candidate appointment offered for client confirmation.
// A ticket holds at most three, unique by (Date, Time).
type SlotProposal struct {
	Date           string `json:"date"` // YYYY-MM-DD
	Time           string `json:"time"` // HH:MM
	TechnicianID   string `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
}

// StepMark records one independently auditable material sub-step.
type StepMark struct {
	Done  bool       `json:"done"`
	Actor string     `json:"actor,omitempty"`
	At    *time.Time `json:"at,omitempty"`
}

// Warranty holds the post-finalize coverage window.
type Warranty struct {
	LaborMonths int        `json:"labor_months"`
	PartsMonths int        `json:"parts_months"`
	LaborUntil  *time.Time `json:"labor_until,omitempty"`
	PartsUntil  *time.Time `json:"parts_until,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
}

// Ticket is the aggregate for one repair job and its full lifecycle record.
type Ticket struct {
	ID          string
	ExternalKey string
	ClientID    string
	ClientName  string
	ClientPhone string
	Address     string
	Description string
	Diagnosis   string

	Status        TicketStatus
	StatusHistory []StatusHistoryEntry

	TechnicianID      *string
	ScheduledAt       *time.Time
	AppointmentStatus AppointmentStatus
	ProposedSlots     []SlotProposal

	QuoteGeneratedAt *time.Time
	QuoteDocumentRef *string

	RequiredPartsDescription string
	DepositAmount            decimal.Decimal
	PartRequest              PartRequestStatus
	MaterialOrdered          StepMark
	MaterialReceived         StepMark
	MaterialReceiptRef       *string
	SupplierName             string

	LaborItems []LineItem
	PartItems  []LineItem

	IsPaid             bool
	PaymentMethod      PaymentMethod
	PaymentProofRef    *string
	FinalPrice         *decimal.Decimal
	ServiceReportRef   *string
	ClientSignatureRef *string
	Warranty           Warranty

	CancellationReason string
	BudgetRef          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasProposedSlot reports whether a (date, time) pair is already proposed.
func (t *Ticket) HasProposedSlot(date, timeOfDay string) bool {
	for _, slot := range t.ProposedSlots {
		if slot.Date == date && slot.Time == timeOfDay {
			return true
		}
	}
	return false
}

// MaterialPending reports whether the procurement pause still blocks
// scheduling and repair: parts were requested and have not yet arrived.
func (t *Ticket) MaterialPending() bool {
	return t.Status == StatusPendienteMaterial && !t.MaterialReceived.Done
}
