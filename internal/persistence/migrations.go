package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,
	`CREATE TABLE IF NOT EXISTS technicians (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        kind TEXT NOT NULL DEFAULT 'technician',
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        password_hash TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT '',
        active BOOLEAN NOT NULL DEFAULT TRUE,
        can_override_time_gate BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS tickets (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        external_key TEXT NOT NULL UNIQUE,
        client_id TEXT NOT NULL DEFAULT '',
        client_name TEXT NOT NULL DEFAULT '',
        client_phone TEXT NOT NULL DEFAULT '',
        address TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        diagnosis TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        technician_id UUID REFERENCES technicians(id),
        scheduled_at TIMESTAMPTZ,
        appointment_status TEXT NOT NULL DEFAULT 'pending',
        proposed_slots JSONB NOT NULL DEFAULT '[]',
        quote_generated_at TIMESTAMPTZ,
        quote_document_ref TEXT,
        required_parts_description TEXT NOT NULL DEFAULT '',
        deposit_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
        part_request JSONB NOT NULL DEFAULT '{}',
        material_ordered JSONB NOT NULL DEFAULT '{}',
        material_received JSONB NOT NULL DEFAULT '{}',
        material_receipt_ref TEXT,
        supplier_name TEXT NOT NULL DEFAULT '',
        labor_items JSONB NOT NULL DEFAULT '[]',
        part_items JSONB NOT NULL DEFAULT '[]',
        is_paid BOOLEAN NOT NULL DEFAULT FALSE,
        payment_method TEXT NOT NULL DEFAULT '',
        payment_proof_ref TEXT,
        final_price NUMERIC(12,2),
        service_report_ref TEXT,
        client_signature_ref TEXT,
        warranty JSONB NOT NULL DEFAULT '{}',
        cancellation_reason TEXT NOT NULL DEFAULT '',
        budget_ref TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_technician ON tickets(technician_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_scheduled_at ON tickets(scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS ticket_history (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
        status TEXT NOT NULL,
        label TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON ticket_history(ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS budgets (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        number TEXT NOT NULL UNIQUE,
        client_id TEXT NOT NULL DEFAULT '',
        client_name TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        items JSONB NOT NULL DEFAULT '[]',
        subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
        tax NUMERIC(12,2) NOT NULL DEFAULT 0,
        total NUMERIC(12,2) NOT NULL DEFAULT 0,
        status TEXT NOT NULL DEFAULT 'pending',
        converted_ticket_id UUID,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS technician_positions (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        technician_id UUID NOT NULL REFERENCES technicians(id),
        ticket_id UUID REFERENCES tickets(id),
        latitude DOUBLE PRECISION NOT NULL,
        longitude DOUBLE PRECISION NOT NULL,
        sampled_at TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_positions_technician ON technician_positions(technician_id, sampled_at)`,
}

// RunMigrations applies idempotent DDL statements at startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no database pool; skipping migrations")
		return nil
	}
	for _, stmt := range migrationStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	logger.Info("migrations applied")
	return nil
}
