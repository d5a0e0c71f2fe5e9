package ports

import (
	"context"

	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

// TxRepos agrupa los repositorios atados a una misma transacción. El TxRunner
// los construye sobre la tx y los entrega al callback: todo lo que el caso de
// uso haga con ellos comitea o se revierte junto (validación, mutación y
// auditoría atómicas, nunca a medias).
type TxRepos struct {
	Items     repository.ItemRepository
	Audit     repository.AuditRepository
	Metrics   repository.MetricsRepository
	Receipts  repository.ReceiptRepository
	Jobs      repository.JobRepository
	Orders    repository.PurchaseOrderRepository
	Overrides repository.TierOverrideRepository
	Companies repository.CompanyRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza atomicidad para el núcleo.
type TxRunner interface {
	Run(ctx context.Context, fn func(r TxRepos) error) error
}
