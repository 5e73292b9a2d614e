package dto

import (
	"time"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// CreateBudgetRequest payload.
type CreateBudgetRequest struct {
	ClientID    string            `json:"client_id"`
	ClientName  string            `json:"client_name" validate:"required"`
	Description string            `json:"description"`
	Items       []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

// BudgetResponse payload.
type BudgetResponse struct {
	ID                string              `json:"id"`
	Number            string              `json:"number"`
	ClientID          string              `json:"client_id"`
	ClientName        string              `json:"client_name"`
	Description       string              `json:"description"`
	Items             []domain.LineItem   `json:"items"`
	Subtotal          string              `json:"subtotal"`
	Tax               string              `json:"tax"`
	Total             string              `json:"total"`
	Status            domain.BudgetStatus `json:"status"`
	ConvertedTicketID *string             `json:"converted_ticket_id,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// NewBudgetResponse maps a budget onto its response.
func NewBudgetResponse(budget *domain.Budget) BudgetResponse {
	return BudgetResponse{
		ID:                budget.ID,
		Number:            budget.Number,
		ClientID:          budget.ClientID,
		ClientName:        budget.ClientName,
		Description:       budget.Description,
		Items:             budget.Items,
		Subtotal:          budget.Totals.Subtotal.String(),
		Tax:               budget.Totals.Tax.String(),
		Total:             budget.Totals.Total.String(),
		Status:            budget.Status,
		ConvertedTicketID: budget.ConvertedTicketID,
		CreatedAt:         budget.CreatedAt,
	}
}
