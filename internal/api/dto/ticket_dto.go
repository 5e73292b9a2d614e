package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/domain"
	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name" validate:"required"`
	ClientPhone string `json:"client_phone"`
	Address     string `json:"address"`
	Description string `json:"description" validate:"required"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	NewStatus  string            `json:"new_status" validate:"required"`
	Diagnosis  *string           `json:"diagnosis,omitempty"`
	LaborItems []LineItemRequest `json:"labor_items,omitempty"`
	PartItems  []LineItemRequest `json:"part_items,omitempty"`
	FinalPrice *string           `json:"final_price,omitempty"`
}

// CancelRequest payload.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

// LineItemRequest is one priced row in a request body. Prices travel as
// strings to keep decimal precision.
type LineItemRequest struct {
	Name      string `json:"name" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"omitempty,oneof=labor part"`
}

// LineItemsToDomain converts request line items, defaulting Kind.
func LineItemsToDomain(items []LineItemRequest, defaultKind domain.LineItemKind) ([]domain.LineItem, error) {
	result := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid unit_price", map[string]any{
				"name": item.Name,
			})
		}
		kind := domain.LineItemKind(item.Kind)
		if kind == "" {
			kind = defaultKind
		}
		result = append(result, domain.LineItem{
			Name:      item.Name,
			UnitPrice: price,
			Quantity:  item.Quantity,
			Kind:      kind,
		})
	}
	return result, nil
}

// TicketSummary response.
type TicketSummary struct {
	ID                string                   `json:"id"`
	ExternalKey       string                   `json:"external_key"`
	ClientName        string                   `json:"client_name"`
	Status            domain.TicketStatus      `json:"status"`
	StatusLabel       string                   `json:"status_label"`
	TechnicianID      *string                  `json:"technician_id,omitempty"`
	ScheduledAt       *time.Time               `json:"scheduled_at,omitempty"`
	AppointmentStatus domain.AppointmentStatus `json:"appointment_status"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// TicketDetail response.
type TicketDetail struct {
	TicketSummary
	ClientID                 string                      `json:"client_id"`
	ClientPhone              string                      `json:"client_phone"`
	Address                  string                      `json:"address"`
	Description              string                      `json:"description"`
	Diagnosis                string                      `json:"diagnosis,omitempty"`
	ProposedSlots            []domain.SlotProposal       `json:"proposed_slots"`
	QuoteGeneratedAt         *time.Time                  `json:"quote_generated_at,omitempty"`
	QuoteDocumentRef         *string                     `json:"quote_document_ref,omitempty"`
	RequiredPartsDescription string                      `json:"required_parts_description,omitempty"`
	DepositAmount            string                      `json:"deposit_amount"`
	PartRequest              domain.PartRequestStatus    `json:"part_request"`
	MaterialOrdered          domain.StepMark             `json:"material_ordered"`
	MaterialReceived         domain.StepMark             `json:"material_received"`
	MaterialReceiptRef       *string                     `json:"material_receipt_ref,omitempty"`
	SupplierName             string                      `json:"supplier_name,omitempty"`
	LaborItems               []domain.LineItem           `json:"labor_items"`
	PartItems                []domain.LineItem           `json:"part_items"`
	IsPaid                   bool                        `json:"is_paid"`
	PaymentMethod            domain.PaymentMethod        `json:"payment_method,omitempty"`
	PaymentProofRef          *string                     `json:"payment_proof_ref,omitempty"`
	FinalPrice               *string                     `json:"final_price,omitempty"`
	ServiceReportRef         *string                     `json:"service_report_ref,omitempty"`
	ClientSignatureRef       *string                     `json:"client_signature_ref,omitempty"`
	Warranty                 domain.Warranty             `json:"warranty"`
	CancellationReason       string                      `json:"cancellation_reason,omitempty"`
	BudgetRef                *string                     `json:"budget_ref,omitempty"`
	History                  []domain.StatusHistoryEntry `json:"history"`
}

// NewTicketSummary maps a ticket onto its summary response.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                ticket.ID,
		ExternalKey:       ticket.ExternalKey,
		ClientName:        ticket.ClientName,
		Status:            ticket.Status,
		StatusLabel:       domain.StatusLabel(ticket.Status),
		TechnicianID:      ticket.TechnicianID,
		ScheduledAt:       ticket.ScheduledAt,
		AppointmentStatus: ticket.AppointmentStatus,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket onto its detail response.
func NewTicketDetail(ticket *domain.Ticket) TicketDetail {
	detail := TicketDetail{
		TicketSummary:            NewTicketSummary(ticket),
		ClientID:                 ticket.ClientID,
		ClientPhone:              ticket.ClientPhone,
		Address:                  ticket.Address,
		Description:              ticket.Description,
		Diagnosis:                ticket.Diagnosis,
		ProposedSlots:            ticket.ProposedSlots,
		QuoteGeneratedAt:         ticket.QuoteGeneratedAt,
		QuoteDocumentRef:         ticket.QuoteDocumentRef,
		RequiredPartsDescription: ticket.RequiredPartsDescription,
		DepositAmount:            ticket.DepositAmount.String(),
		PartRequest:              ticket.PartRequest,
		MaterialOrdered:          ticket.MaterialOrdered,
		MaterialReceived:         ticket.MaterialReceived,
		MaterialReceiptRef:       ticket.MaterialReceiptRef,
		SupplierName:             ticket.SupplierName,
		LaborItems:               ticket.LaborItems,
		PartItems:                ticket.PartItems,
		IsPaid:                   ticket.IsPaid,
		PaymentMethod:            ticket.PaymentMethod,
		PaymentProofRef:          ticket.PaymentProofRef,
		ServiceReportRef:         ticket.ServiceReportRef,
		ClientSignatureRef:       ticket.ClientSignatureRef,
		Warranty:                 ticket.Warranty,
		CancellationReason:       ticket.CancellationReason,
		BudgetRef:                ticket.BudgetRef,
		History:                  ticket.StatusHistory,
	}
	if ticket.FinalPrice != nil {
		price := ticket.FinalPrice.String()
		detail.FinalPrice = &price
	}
	return detail
}
