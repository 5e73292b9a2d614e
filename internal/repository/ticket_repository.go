package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// TicketFilter captures operator listing parameters.
type TicketFilter struct {
	Statuses     []domain.TicketStatus
	TechnicianID *string
	ClientID     *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence. All workflow writes are
// read-modify-append-write over a single ticket row.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ApplyTransition persists the ticket snapshot and appends the history
	// entry in one transaction, so a concurrent reader never observes a
	// status ahead of its supporting data.
	ApplyTransition(ctx context.Context, ticket *domain.Ticket, entry domain.StatusHistoryEntry) error
	// Update persists snapshot fields without a status change (material
	// sub-step marks, payment proof upload).
	Update(ctx context.Context, ticket *domain.Ticket) error
	History(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error)
	// HasAppointmentAt reports an existing non-finalized appointment for the
	// technician at the exact (date, time).
	HasAppointmentAt(ctx context.Context, technicianID, date, timeOfDay string) (bool, error)
	// CountAppointmentsOn counts the technician's non-finalized appointments
	// on the given date.
	CountAppointmentsOn(ctx context.Context, technicianID, date string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, client_id, client_name, client_phone, address,
    description, diagnosis, status, technician_id, scheduled_at, appointment_status,
    proposed_slots, quote_generated_at, quote_document_ref, required_parts_description,
    deposit_amount::text, part_request, material_ordered, material_received,
    material_receipt_ref, supplier_name, labor_items, part_items, is_paid,
    payment_method, payment_proof_ref, final_price::text, service_report_ref,
    client_signature_ref, warranty, cancellation_reason, budget_ref, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	slots, laborItems, partItems, partRequest, ordered, received, warranty, err := marshalTicketJSON(ticket)
	if err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (external_key, client_id, client_name, client_phone, address,
            description, status, technician_id, scheduled_at, appointment_status,
            proposed_slots, deposit_amount, part_request, material_ordered, material_received,
            labor_items, part_items, payment_method, warranty, budget_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.ClientID,
		ticket.ClientName,
		ticket.ClientPhone,
		ticket.Address,
		ticket.Description,
		ticket.Status,
		ticket.TechnicianID,
		ticket.ScheduledAt,
		ticket.AppointmentStatus,
		slots,
		ticket.DepositAmount.String(),
		partRequest,
		ordered,
		received,
		laborItems,
		partItems,
		ticket.PaymentMethod,
		warranty,
		ticket.BudgetRef,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	const insertHistory = `
        INSERT INTO ticket_history (ticket_id, status, label, created_at)
        VALUES ($1,$2,$3,$4)`
	for _, entry := range ticket.StatusHistory {
		if _, err := tx.Exec(ctx, insertHistory, ticket.ID, entry.Status, entry.Label, entry.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, err
	}
	history, err := r.History(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.StatusHistory = history
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, ticket *domain.Ticket, entry domain.StatusHistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateTicketRow(ctx, tx, ticket); err != nil {
		return err
	}
	const insertHistory = `
        INSERT INTO ticket_history (ticket_id, status, label, created_at)
        VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, insertHistory, ticket.ID, entry.Status, entry.Label, entry.Timestamp); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	ticket.StatusHistory = append(ticket.StatusHistory, entry)
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return updateTicketRow(ctx, r.pool, ticket)
}

func (r *ticketRepository) History(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	const query = `
        SELECT status, label, created_at FROM ticket_history
        WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(&entry.Status, &entry.Label, &entry.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *ticketRepository) HasAppointmentAt(ctx context.Context, technicianID, date, timeOfDay string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM tickets
            WHERE technician_id=$1
              AND scheduled_at IS NOT NULL
              AND to_char(scheduled_at, 'YYYY-MM-DD')=$2
              AND to_char(scheduled_at, 'HH24:MI')=$3
              AND status NOT IN ('finalizado','cancelado','rejected')
        )`
	var exists bool
	err := r.pool.QueryRow(ctx, query, technicianID, date, timeOfDay).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) CountAppointmentsOn(ctx context.Context, technicianID, date string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE technician_id=$1
          AND scheduled_at IS NOT NULL
          AND to_char(scheduled_at, 'YYYY-MM-DD')=$2
          AND status NOT IN ('finalizado','cancelado','rejected')`
	var count int
	err := r.pool.QueryRow(ctx, query, technicianID, date).Scan(&count)
	return count, err
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func updateTicketRow(ctx context.Context, db execer, ticket *domain.Ticket) error {
	slots, laborItems, partItems, partRequest, ordered, received, warranty, err := marshalTicketJSON(ticket)
	if err != nil {
		return err
	}
	var finalPrice *string
	if ticket.FinalPrice != nil {
		value := ticket.FinalPrice.String()
		finalPrice = &value
	}
	const query = `
        UPDATE tickets SET
            client_id=$1, client_name=$2, client_phone=$3, address=$4, description=$5,
            diagnosis=$6, status=$7, technician_id=$8, scheduled_at=$9, appointment_status=$10,
            proposed_slots=$11, quote_generated_at=$12, quote_document_ref=$13,
            required_parts_description=$14, deposit_amount=$15, part_request=$16,
            material_ordered=$17, material_received=$18, material_receipt_ref=$19,
            supplier_name=$20, labor_items=$21, part_items=$22, is_paid=$23,
            payment_method=$24, payment_proof_ref=$25, final_price=$26,
            service_report_ref=$27, client_signature_ref=$28, warranty=$29,
            cancellation_reason=$30, budget_ref=$31, updated_at=NOW()
        WHERE id=$32`
	tag, err := db.Exec(ctx, query,
		ticket.ClientID,
		ticket.ClientName,
		ticket.ClientPhone,
		ticket.Address,
		ticket.Description,
		ticket.Diagnosis,
		ticket.Status,
		ticket.TechnicianID,
		ticket.ScheduledAt,
		ticket.AppointmentStatus,
		slots,
		ticket.QuoteGeneratedAt,
		ticket.QuoteDocumentRef,
		ticket.RequiredPartsDescription,
		ticket.DepositAmount.String(),
		partRequest,
		ordered,
		received,
		ticket.MaterialReceiptRef,
		ticket.SupplierName,
		laborItems,
		partItems,
		ticket.IsPaid,
		ticket.PaymentMethod,
		ticket.PaymentProofRef,
		finalPrice,
		ticket.ServiceReportRef,
		ticket.ClientSignatureRef,
		warranty,
		ticket.CancellationReason,
		ticket.BudgetRef,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func marshalTicketJSON(ticket *domain.Ticket) (slots, laborItems, partItems, partRequest, ordered, received, warranty []byte, err error) {
	if slots, err = json.Marshal(ticket.ProposedSlots); err != nil {
		return
	}
	if laborItems, err = json.Marshal(ticket.LaborItems); err != nil {
		return
	}
	if partItems, err = json.Marshal(ticket.PartItems); err != nil {
		return
	}
	if partRequest, err = json.Marshal(ticket.PartRequest); err != nil {
		return
	}
	if ordered, err = json.Marshal(ticket.MaterialOrdered); err != nil {
		return
	}
	if received, err = json.Marshal(ticket.MaterialReceived); err != nil {
		return
	}
	warranty, err = json.Marshal(ticket.Warranty)
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		slots       []byte
		laborItems  []byte
		partItems   []byte
		partRequest []byte
		ordered     []byte
		received    []byte
		warranty    []byte
		deposit     string
		finalPrice  *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.ClientID,
		&ticket.ClientName,
		&ticket.ClientPhone,
		&ticket.Address,
		&ticket.Description,
		&ticket.Diagnosis,
		&ticket.Status,
		&ticket.TechnicianID,
		&ticket.ScheduledAt,
		&ticket.AppointmentStatus,
		&slots,
		&ticket.QuoteGeneratedAt,
		&ticket.QuoteDocumentRef,
		&ticket.RequiredPartsDescription,
		&deposit,
		&partRequest,
		&ordered,
		&received,
		&ticket.MaterialReceiptRef,
		&ticket.SupplierName,
		&laborItems,
		&partItems,
		&ticket.IsPaid,
		&ticket.PaymentMethod,
		&ticket.PaymentProofRef,
		&finalPrice,
		&ticket.ServiceReportRef,
		&ticket.ClientSignatureRef,
		&warranty,
		&ticket.CancellationReason,
		&ticket.BudgetRef,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if ticket.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
		return nil, err
	}
	if finalPrice != nil {
		price, err := decimal.NewFromString(*finalPrice)
		if err != nil {
			return nil, err
		}
		ticket.FinalPrice = &price
	}
	if err := json.Unmarshal(slots, &ticket.ProposedSlots); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(laborItems, &ticket.LaborItems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(partItems, &ticket.PartItems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(partRequest, &ticket.PartRequest); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ordered, &ticket.MaterialOrdered); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(received, &ticket.MaterialReceived); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(warranty, &ticket.Warranty); err != nil {
		return nil, err
	}
	return &ticket, nil
}
