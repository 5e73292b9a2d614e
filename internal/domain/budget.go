package domain

import "time"

// BudgetStatus enumerates the pre-ticket estimate lifecycle.
type BudgetStatus string

const (
	BudgetPending  BudgetStatus = "pending"
	BudgetAccepted BudgetStatus = "accepted"
	BudgetRejected BudgetStatus = "rejected"
)

// Budget is a pre-job cost estimate. It either stays pending/rejected or
// converts exactly once into a Ticket; once ConvertedTicketID is set the
// budget is immutable.
type Budget struct {
	ID          string
	Number      string
	ClientID    string
	ClientName  string
	Description string
	Items       []LineItem
	Totals      Totals
	Status      BudgetStatus

	ConvertedTicketID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Converted reports whether the one-way conversion already happened.
func (b *Budget) Converted() bool {
	return b.ConvertedTicketID != nil && *b.ConvertedTicketID != ""
}
