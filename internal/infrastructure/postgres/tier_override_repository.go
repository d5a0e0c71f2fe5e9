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

var _ repository.TierOverrideRepository = (*TierOverrideRepo)(nil)

// TierOverrideRepo implementación de TierOverrideRepository sobre PostgreSQL.
// El historial es append-only: las filas nunca se borran, solo se revocan.
type TierOverrideRepo struct {
	q Querier
}

// NewTierOverrideRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTierOverrideRepository(q Querier) *TierOverrideRepo {
	return &TierOverrideRepo{q: q}
}

const overrideColumns = `
	id, company_id, override_tier, starts_at, ends_at, revoked_at,
	granted_by, reason, created_at`

func scanOverride(row pgx.Row) (*entity.CompanyTierOverride, error) {
	var o entity.CompanyTierOverride
	err := row.Scan(
		&o.ID, &o.CompanyID, &o.OverrideTier, &o.StartsAt, &o.EndsAt, &o.RevokedAt,
		&o.GrantedBy, &o.Reason, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserta la ventana de override.
func (r *TierOverrideRepo) Create(o *entity.CompanyTierOverride) error {
	query := `
		INSERT INTO company_tier_overrides (
			id, company_id, override_tier, starts_at, ends_at, granted_by, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		o.ID, o.CompanyID, o.OverrideTier, o.StartsAt, o.EndsAt, o.GrantedBy, o.Reason, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create tier override: %w", err)
	}
	return nil
}

// ListNonRevoked lista las ventanas no revocadas de una empresa.
func (r *TierOverrideRepo) ListNonRevoked(companyID string) ([]*entity.CompanyTierOverride, error) {
	return r.listNonRevoked(companyID, false)
}

// ListNonRevokedForUpdate bloquea las ventanas no revocadas de la empresa
// para que dos grants concurrentes no puedan insertar solapes.
func (r *TierOverrideRepo) ListNonRevokedForUpdate(companyID string) ([]*entity.CompanyTierOverride, error) {
	return r.listNonRevoked(companyID, true)
}

func (r *TierOverrideRepo) listNonRevoked(companyID string, lock bool) ([]*entity.CompanyTierOverride, error) {
	query := `SELECT` + overrideColumns + `
		FROM company_tier_overrides
		WHERE company_id = $1 AND revoked_at IS NULL
		ORDER BY starts_at`
	if lock {
		query += `
		FOR UPDATE`
	}
	rows, err := r.q.Query(context.Background(), query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list tier overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*entity.CompanyTierOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ActiveAt devuelve la ventana vigente (no revocada, contiene now) o nil.
func (r *TierOverrideRepo) ActiveAt(companyID string, now time.Time) (*entity.CompanyTierOverride, error) {
	query := `SELECT` + overrideColumns + `
		FROM company_tier_overrides
		WHERE company_id = $1
		  AND revoked_at IS NULL
		  AND starts_at <= $2
		  AND (ends_at IS NULL OR ends_at > $2)
		LIMIT 1`
	o, err := scanOverride(r.q.QueryRow(context.Background(), query, companyID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active tier override: %w", err)
	}
	return o, nil
}

// Revoke marca la ventana como revocada.
func (r *TierOverrideRepo) Revoke(id string, at time.Time) error {
	query := `
		UPDATE company_tier_overrides
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.q.Exec(context.Background(), query, id, at)
	if err != nil {
		return fmt.Errorf("revoke tier override: %w", err)
	}
	return nil
}

// ExpireDue marca revoked_at = ends_at en toda ventana no revocada ya vencida
// y devuelve SOLO las recién expiradas (RETURNING): la guarda de idempotencia
// del evento de expiración.
func (r *TierOverrideRepo) ExpireDue(companyID string, now time.Time) ([]*entity.CompanyTierOverride, error) {
	query := `
		UPDATE company_tier_overrides
		SET revoked_at = ends_at
		WHERE company_id = $1
		  AND revoked_at IS NULL
		  AND ends_at IS NOT NULL
		  AND ends_at <= $2
		RETURNING` + overrideColumns
	rows, err := r.q.Query(context.Background(), query, companyID, now)
	if err != nil {
		return nil, fmt.Errorf("expire tier overrides: %w", err)
	}
	defer rows.Close()

	var expired []*entity.CompanyTierOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired override: %w", err)
		}
		expired = append(expired, o)
	}
	return expired, rows.Err()
}
