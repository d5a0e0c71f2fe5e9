package audit

import (
	"context"
	"time"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// QueryUseCase lecturas del log de auditoría y de los contadores de uso,
// custodiadas por las funciones del plan de la empresa.
type QueryUseCase struct {
	txRunner ports.TxRunner
	resolver *entitlement.Resolver
}

// NewQueryUseCase construye el caso de uso de consulta.
func NewQueryUseCase(txRunner ports.TxRunner, resolver *entitlement.Resolver) *QueryUseCase {
	return &QueryUseCase{txRunner: txRunner, resolver: resolver}
}

// List devuelve las entradas de auditoría de la empresa del actor (función enterprise).
func (uc *QueryUseCase) List(ctx context.Context, actor authz.Actor, limit, offset int) ([]*entity.AuditLogEntry, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uc.resolver.RequireFeature(ctx, actor.CompanyID, entitlement.FeatureAuditLog); err != nil {
		return nil, err
	}
	var entries []*entity.AuditLogEntry
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		var err error
		entries, err = repos.Audit.ListByCompany(actor.CompanyID, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Metrics devuelve los contadores de uso en [from, to] (función professional+).
func (uc *QueryUseCase) Metrics(ctx context.Context, actor authz.Actor, from, to time.Time) ([]*entity.UsageMetric, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uc.resolver.RequireFeature(ctx, actor.CompanyID, entitlement.FeatureMetrics); err != nil {
		return nil, err
	}
	var metrics []*entity.UsageMetric
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		var err error
		metrics, err = repos.Metrics.ListByCompany(actor.CompanyID, entity.MetricDay(from), entity.MetricDay(to))
		return err
	})
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
