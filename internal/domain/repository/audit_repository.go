package repository

import (
	"time"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// AuditRepository define el puerto del log de auditoría (append-only).
// Nunca hay Update ni Delete generales: la única mutación permitida es
// MarkRolledBack, que asigna la tripleta de rollback una sola vez.
type AuditRepository interface {
	Create(e *entity.AuditLogEntry) error
	GetByID(id string) (*entity.AuditLogEntry, error)
	// GetForUpdate bloquea la entrada para serializar undos concurrentes.
	GetForUpdate(id string) (*entity.AuditLogEntry, error)
	// MarkRolledBack asigna rolled_back_at/by/reason solo si aún están vacíos;
	// devuelve false si otra llamada ya la revirtió.
	MarkRolledBack(id, by, reason string, at time.Time) (bool, error)
	ListByCompany(companyID string, limit, offset int) ([]*entity.AuditLogEntry, error)
}

// MetricsRepository acumula contadores de uso con upsert-acumulación
// (n = n + delta), clave (empresa, actor, día, acción, tabla).
type MetricsRepository interface {
	Accumulate(m *entity.UsageMetric) error
	ListByCompany(companyID string, from, to time.Time) ([]*entity.UsageMetric, error)
}
