package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo implementación de JobRepository sobre PostgreSQL.
type JobRepo struct {
	q Querier
}

// NewJobRepository construye el adaptador. Pasar pool o tx (Querier).
func NewJobRepository(q Querier) *JobRepo {
	return &JobRepo{q: q}
}

const jobColumns = `
	id, company_id, name, notes, status,
	created_by, approved_by, approved_at, completed_by, completed_at,
	voided_by, voided_at, created_at, updated_at`

func scanJob(row pgx.Row) (*entity.Job, error) {
	var j entity.Job
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.Name, &j.Notes, &j.Status,
		&j.CreatedBy, &j.ApprovedBy, &j.ApprovedAt, &j.CompletedBy, &j.CompletedAt,
		&j.VoidedBy, &j.VoidedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserta el trabajo.
func (r *JobRepo) Create(j *entity.Job) error {
	query := `
		INSERT INTO jobs (
			id, company_id, name, notes, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		j.ID, j.CompanyID, j.Name, j.Notes, j.Status, j.CreatedBy, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID obtiene un trabajo por ID. Devuelve nil si no existe.
func (r *JobRepo) GetByID(id string) (*entity.Job, error) {
	query := `SELECT` + jobColumns + `
		FROM jobs WHERE id = $1`
	j, err := scanJob(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// GetForUpdate obtiene el trabajo bloqueando la fila (SELECT FOR UPDATE).
func (r *JobRepo) GetForUpdate(id string) (*entity.Job, error) {
	query := `SELECT` + jobColumns + `
		FROM jobs WHERE id = $1
		FOR UPDATE`
	j, err := scanJob(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job for update: %w", err)
	}
	return j, nil
}

// Update persiste el trabajo completo.
func (r *JobRepo) Update(j *entity.Job) error {
	query := `
		UPDATE jobs SET
			name = $2, notes = $3, status = $4,
			approved_by = $5, approved_at = $6,
			completed_by = $7, completed_at = $8,
			voided_by = $9, voided_at = $10,
			updated_at = $11
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		j.ID, j.Name, j.Notes, j.Status,
		j.ApprovedBy, j.ApprovedAt,
		j.CompletedBy, j.CompletedAt,
		j.VoidedBy, j.VoidedAt,
		j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ListByCompany lista los trabajos de una empresa, más recientes primero.
func (r *JobRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Job, error) {
	query := `SELECT` + jobColumns + `
		FROM jobs
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// BOMLines lista el BOM planificado del trabajo.
func (r *JobRepo) BOMLines(jobID string) ([]*entity.JobBOMLine, error) {
	query := `
		SELECT job_id, item_id, qty_planned, unplanned, created_at
		FROM job_bom_lines
		WHERE job_id = $1
		ORDER BY item_id`
	rows, err := r.q.Query(context.Background(), query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list bom lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.JobBOMLine
	for rows.Next() {
		var l entity.JobBOMLine
		if err := rows.Scan(&l.JobID, &l.ItemID, &l.QtyPlanned, &l.Unplanned, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bom line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// UpsertBOMLine inserta o reemplaza la línea de BOM (clave job×item).
func (r *JobRepo) UpsertBOMLine(l *entity.JobBOMLine) error {
	query := `
		INSERT INTO job_bom_lines (job_id, item_id, qty_planned, unplanned, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, item_id)
		DO UPDATE SET qty_planned = EXCLUDED.qty_planned, unplanned = EXCLUDED.unplanned`
	_, err := r.q.Exec(context.Background(), query, l.JobID, l.ItemID, l.QtyPlanned, l.Unplanned, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert bom line: %w", err)
	}
	return nil
}

// DeleteBOMLine borra la línea de BOM del trabajo.
func (r *JobRepo) DeleteBOMLine(jobID, itemID string) error {
	query := `DELETE FROM job_bom_lines WHERE job_id = $1 AND item_id = $2`
	_, err := r.q.Exec(context.Background(), query, jobID, itemID)
	if err != nil {
		return fmt.Errorf("delete bom line: %w", err)
	}
	return nil
}

// Actuals lista los consumos reales del trabajo.
func (r *JobRepo) Actuals(jobID string) ([]*entity.JobActualLine, error) {
	query := `
		SELECT job_id, item_id, qty_used, created_at
		FROM job_actual_lines
		WHERE job_id = $1
		ORDER BY item_id`
	rows, err := r.q.Query(context.Background(), query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list actuals: %w", err)
	}
	defer rows.Close()

	var lines []*entity.JobActualLine
	for rows.Next() {
		var l entity.JobActualLine
		if err := rows.Scan(&l.JobID, &l.ItemID, &l.QtyUsed, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan actual line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// ReplaceActuals borra los consumos previos del trabajo y escribe los nuevos.
func (r *JobRepo) ReplaceActuals(jobID string, lines []*entity.JobActualLine) error {
	ctx := context.Background()
	if _, err := r.q.Exec(ctx, `DELETE FROM job_actual_lines WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("clear actuals: %w", err)
	}
	query := `
		INSERT INTO job_actual_lines (job_id, item_id, qty_used, created_at)
		VALUES ($1, $2, $3, $4)`
	for _, l := range lines {
		if _, err := r.q.Exec(ctx, query, l.JobID, l.ItemID, l.QtyUsed, l.CreatedAt); err != nil {
			return fmt.Errorf("insert actual line: %w", err)
		}
	}
	return nil
}

// ReservedByOthers suma qty_planned por ítem de los BOM de otros trabajos
// approved/in_progress de la empresa (la vista de reserva blanda).
func (r *JobRepo) ReservedByOthers(companyID string, itemIDs []string, excludeJobID string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT b.item_id, COALESCE(SUM(b.qty_planned), 0)
		FROM job_bom_lines b
		JOIN jobs j ON j.id = b.job_id
		WHERE j.company_id = $1
		  AND j.status IN ('approved', 'in_progress')
		  AND b.item_id = ANY($2)
		  AND b.job_id <> $3
		GROUP BY b.item_id`
	rows, err := r.q.Query(context.Background(), query, companyID, itemIDs, excludeJobID)
	if err != nil {
		return nil, fmt.Errorf("reserved by others: %w", err)
	}
	defer rows.Close()

	reserved := make(map[string]decimal.Decimal, len(itemIDs))
	for rows.Next() {
		var itemID string
		var qty decimal.Decimal
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reserved[itemID] = qty
	}
	return reserved, rows.Err()
}
