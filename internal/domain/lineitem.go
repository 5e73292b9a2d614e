package domain

import "github.com/shopspring/decimal"

// LineItemKind distinguishes labor from parts on a quote or budget.
type LineItemKind string

const (
	LineItemLabor LineItemKind = "labor"
	LineItemPart  LineItemKind = "part"
)

// LineItem is one priced row of a quote or budget.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Kind      LineItemKind    `json:"kind"`
}

// Amount is UnitPrice * Quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals aggregates the money columns of a quote or budget.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums labor and part line items and applies the tax rate
// (e.g. 0.21 for 21%). Pure; rounds to two decimal places.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
