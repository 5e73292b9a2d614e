package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// BudgetRepository encapsulates budget persistence.
type BudgetRepository interface {
	Create(ctx context.Context, budget *domain.Budget) error
	GetByID(ctx context.Context, id string) (*domain.Budget, error)
	// MarkConverted sets converted_ticket_id and flips status to accepted.
	// It fails with pgx.ErrNoRows if the budget was already converted,
	// guarding the one-way conversion invariant at the storage layer.
	MarkConverted(ctx context.Context, budgetID, ticketID string) error
}

type budgetRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetRepository instantiates the repository.
func NewBudgetRepository(pool *pgxpool.Pool) BudgetRepository {
	return &budgetRepository{pool: pool}
}

func (r *budgetRepository) Create(ctx context.Context, budget *domain.Budget) error {
	items, err := json.Marshal(budget.Items)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO budgets (number, client_id, client_name, description, items,
            subtotal, tax, total, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		budget.Number,
		budget.ClientID,
		budget.ClientName,
		budget.Description,
		items,
		budget.Totals.Subtotal.String(),
		budget.Totals.Tax.String(),
		budget.Totals.Total.String(),
		budget.Status,
	).Scan(&budget.ID, &budget.CreatedAt, &budget.UpdatedAt)
}

func (r *budgetRepository) GetByID(ctx context.Context, id string) (*domain.Budget, error) {
	const query = `
        SELECT id, number, client_id, client_name, description, items,
               subtotal::text, tax::text, total::text, status, converted_ticket_id,
               created_at, updated_at
        FROM budgets WHERE id=$1`
	var (
		budget   domain.Budget
		items    []byte
		subtotal string
		tax      string
		total    string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&budget.ID,
		&budget.Number,
		&budget.ClientID,
		&budget.ClientName,
		&budget.Description,
		&items,
		&subtotal,
		&tax,
		&total,
		&budget.Status,
		&budget.ConvertedTicketID,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &budget.Items); err != nil {
		return nil, err
	}
	var err error
	if budget.Totals.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, err
	}
	if budget.Totals.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, err
	}
	if budget.Totals.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *budgetRepository) MarkConverted(ctx context.Context, budgetID, ticketID string) error {
	const query = `
        UPDATE budgets SET status='accepted', converted_ticket_id=$1, updated_at=NOW()
        WHERE id=$2 AND converted_ticket_id IS NULL`
	tag, err := r.pool.Exec(ctx, query, ticketID, budgetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
