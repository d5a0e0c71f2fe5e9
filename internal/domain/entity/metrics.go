package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageMetric contador acumulativo de actividad, clave (empresa, actor, día,
// acción, tabla). Se escribe con upsert-acumulación (n = n + delta) bajo el
// mismo lock de fila que la mutación que lo dispara.
type UsageMetric struct {
	CompanyID string
	ActorID   string
	Day       time.Time // truncado a 00:00 UTC
	Action    string    // ver constantes Action* de audit.go
	TableName string
	OpCount   int64
	QtyDelta  decimal.Decimal // suma de cantidades afectadas (con signo)
}

// MetricDay trunca t al día en UTC (clave de agregación).
func MetricDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
