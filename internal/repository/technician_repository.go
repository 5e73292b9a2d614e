package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// TechnicianRepository encapsulates technician persistence.
type TechnicianRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	GetByEmail(ctx context.Context, email string) (*domain.Technician, error)
	ListActive(ctx context.Context) ([]domain.Technician, error)
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `id, kind, name, email, password_hash, phone, active,
    can_override_time_gate, created_at, updated_at`

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	return r.fetchSingle(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE id=$1`, id)
}

func (r *technicianRepository) GetByEmail(ctx context.Context, email string) (*domain.Technician, error) {
	return r.fetchSingle(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE email=$1`, email)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Technician, error) {
	var tech domain.Technician
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&tech.ID,
		&tech.Kind,
		&tech.Name,
		&tech.Email,
		&tech.PasswordHash,
		&tech.Phone,
		&tech.Active,
		&tech.CanOverrideTimeGate,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) ListActive(ctx context.Context) ([]domain.Technician, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE active AND kind='technician' ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(
			&tech.ID,
			&tech.Kind,
			&tech.Name,
			&tech.Email,
			&tech.PasswordHash,
			&tech.Phone,
			&tech.Active,
			&tech.CanOverrideTimeGate,
			&tech.CreatedAt,
			&tech.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}
