package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación de CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// Create inserta la empresa.
func (r *CompanyRepo) Create(c *entity.Company) error {
	query := `
		INSERT INTO companies (
			id, name, base_tier, environment_type, status, billing_state, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		c.ID, c.Name, c.BaseTier, c.EnvironmentType, c.Status, c.BillingState, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// GetByID obtiene una empresa por ID. Devuelve nil si no existe.
func (r *CompanyRepo) GetByID(id string) (*entity.Company, error) {
	query := `
		SELECT id, name, base_tier, environment_type, status, billing_state, created_at, updated_at
		FROM companies WHERE id = $1`
	var c entity.Company
	err := r.q.QueryRow(context.Background(), query, id).Scan(
		&c.ID, &c.Name, &c.BaseTier, &c.EnvironmentType, &c.Status, &c.BillingState, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// UpdateBaseTier cambia el plan base de la empresa.
func (r *CompanyRepo) UpdateBaseTier(id, tier string, now time.Time) error {
	query := `UPDATE companies SET base_tier = $2, updated_at = $3 WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, id, tier, now)
	if err != nil {
		return fmt.Errorf("update base tier: %w", err)
	}
	return nil
}
