package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// PositionRepository persists throttled technician GPS samples.
type PositionRepository interface {
	Insert(ctx context.Context, position domain.Position) error
	Latest(ctx context.Context, technicianID string) (*domain.Position, error)
}

type positionRepository struct {
	pool *pgxpool.Pool
}

// NewPositionRepository instantiates the repository.
func NewPositionRepository(pool *pgxpool.Pool) PositionRepository {
	return &positionRepository{pool: pool}
}

func (r *positionRepository) Insert(ctx context.Context, position domain.Position) error {
	const query = `
        INSERT INTO technician_positions (technician_id, ticket_id, latitude, longitude, sampled_at)
        VALUES ($1, NULLIF($2,''), $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		position.TechnicianID,
		position.TicketID,
		position.Latitude,
		position.Longitude,
		position.SampledAt,
	)
	return err
}

func (r *positionRepository) Latest(ctx context.Context, technicianID string) (*domain.Position, error) {
	const query = `
        SELECT technician_id, COALESCE(ticket_id::text, ''), latitude, longitude, sampled_at
        FROM technician_positions
        WHERE technician_id=$1 ORDER BY sampled_at DESC LIMIT 1`
	var position domain.Position
	if err := r.pool.QueryRow(ctx, query, technicianID).Scan(
		&position.TechnicianID,
		&position.TicketID,
		&position.Latitude,
		&position.Longitude,
		&position.SampledAt,
	); err != nil {
		return nil, err
	}
	return &position, nil
}
