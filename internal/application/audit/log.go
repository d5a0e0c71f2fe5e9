package audit

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// LogEvent escribe una entrada de auditoría y acumula la métrica del día en la
// MISMA transacción del caller (repos atados a la tx): o comitean juntas o
// ninguna. Nunca se llama para operaciones de negocio fallidas.
func LogEvent(repos ports.TxRepos, e *entity.AuditLogEntry, qtyDelta decimal.Decimal) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := repos.Audit.Create(e); err != nil {
		return err
	}
	return repos.Metrics.Accumulate(&entity.UsageMetric{
		CompanyID: e.CompanyID,
		ActorID:   e.ActorID,
		Day:       entity.MetricDay(e.CreatedAt),
		Action:    e.Action,
		TableName: e.TableName,
		OpCount:   1,
		QtyDelta:  qtyDelta,
	})
}
