package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implementación de AuditRepository sobre PostgreSQL. El log es
// append-only: no hay Update ni Delete, solo MarkRolledBack (escritura única).
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

const auditColumns = `
	id, company_id, action, table_name, record_id, actor_id,
	old_values, new_values, metadata, created_at,
	rolled_back_at, rolled_back_by, rollback_reason, rollback_of`

func scanAudit(row pgx.Row) (*entity.AuditLogEntry, error) {
	var e entity.AuditLogEntry
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.Action, &e.TableName, &e.RecordID, &e.ActorID,
		&e.OldValues, &e.NewValues, &e.Metadata, &e.CreatedAt,
		&e.RolledBackAt, &e.RolledBackBy, &e.RollbackReason, &e.RollbackOf,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserta la entrada de auditoría.
func (r *AuditRepo) Create(e *entity.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `
		INSERT INTO audit_log (
			id, company_id, action, table_name, record_id, actor_id,
			old_values, new_values, metadata, created_at, rollback_of
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(context.Background(), query,
		e.ID, e.CompanyID, e.Action, e.TableName, e.RecordID, e.ActorID,
		e.OldValues, e.NewValues, e.Metadata, e.CreatedAt, e.RollbackOf,
	)
	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// GetByID obtiene una entrada por ID. Devuelve nil si no existe.
func (r *AuditRepo) GetByID(id string) (*entity.AuditLogEntry, error) {
	query := `SELECT` + auditColumns + `
		FROM audit_log WHERE id = $1`
	e, err := scanAudit(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit entry: %w", err)
	}
	return e, nil
}

// GetForUpdate obtiene la entrada bloqueando la fila (serializa undos concurrentes).
func (r *AuditRepo) GetForUpdate(id string) (*entity.AuditLogEntry, error) {
	query := `SELECT` + auditColumns + `
		FROM audit_log WHERE id = $1
		FOR UPDATE`
	e, err := scanAudit(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit entry for update: %w", err)
	}
	return e, nil
}

// MarkRolledBack asigna la tripleta de rollback solo si aún está vacía.
// Devuelve false si otra llamada ya revirtió la entrada.
func (r *AuditRepo) MarkRolledBack(id, by, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE audit_log
		SET rolled_back_at = $2, rolled_back_by = $3, rollback_reason = $4
		WHERE id = $1 AND rolled_back_at IS NULL`
	tag, err := r.q.Exec(context.Background(), query, id, at, by, reason)
	if err != nil {
		return false, fmt.Errorf("mark rolled back: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByCompany lista entradas de una empresa, más recientes primero.
func (r *AuditRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.AuditLogEntry, error) {
	query := `SELECT` + auditColumns + `
		FROM audit_log
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ repository.MetricsRepository = (*MetricsRepo)(nil)

// MetricsRepo implementación de MetricsRepository: upsert-acumulación sobre la
// clave (empresa, actor, día, acción, tabla).
type MetricsRepo struct {
	q Querier
}

// NewMetricsRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMetricsRepository(q Querier) *MetricsRepo {
	return &MetricsRepo{q: q}
}

// Accumulate suma el delta al contador del día (n = n + delta).
func (r *MetricsRepo) Accumulate(m *entity.UsageMetric) error {
	query := `
		INSERT INTO usage_metrics (company_id, actor_id, day, action, table_name, op_count, qty_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, actor_id, day, action, table_name)
		DO UPDATE SET
			op_count = usage_metrics.op_count + EXCLUDED.op_count,
			qty_delta = usage_metrics.qty_delta + EXCLUDED.qty_delta`
	_, err := r.q.Exec(context.Background(), query,
		m.CompanyID, m.ActorID, m.Day, m.Action, m.TableName, m.OpCount, m.QtyDelta,
	)
	if err != nil {
		return fmt.Errorf("accumulate metric: %w", err)
	}
	return nil
}

// ListByCompany lista los contadores de una empresa en el rango [from, to].
func (r *MetricsRepo) ListByCompany(companyID string, from, to time.Time) ([]*entity.UsageMetric, error) {
	query := `
		SELECT company_id, actor_id, day, action, table_name, op_count, qty_delta
		FROM usage_metrics
		WHERE company_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day, action`
	rows, err := r.q.Query(context.Background(), query, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*entity.UsageMetric
	for rows.Next() {
		var m entity.UsageMetric
		if err := rows.Scan(&m.CompanyID, &m.ActorID, &m.Day, &m.Action, &m.TableName, &m.OpCount, &m.QtyDelta); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}
