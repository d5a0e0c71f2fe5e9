// Package memory implementa los puertos de repositorio sobre mapas en memoria.
// Pensado para pruebas de casos de uso: mismas semánticas observables que los
// adaptadores de PostgreSQL (nil cuando no existe, orden de listados, upserts)
// pero sin base de datos. No es seguro para uso concurrente; las transacciones
// se simulan con snapshot/restore del estado y admiten anidamiento.
package memory

import (
	"context"
	"maps"

	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

type state struct {
	items        map[string]entity.InventoryItem
	audits       map[string]entity.AuditLogEntry
	metrics      map[string]entity.UsageMetric
	receipts     map[string]entity.Receipt
	receiptLines map[string]entity.ReceiptLine
	jobs         map[string]entity.Job
	bomLines     map[string]entity.JobBOMLine    // clave jobID|itemID
	actualLines  map[string]entity.JobActualLine // clave jobID|itemID
	orders       map[string]entity.PurchaseOrder
	orderLines   map[string]entity.PurchaseOrderLine
	overrides    map[string]entity.CompanyTierOverride
	companies    map[string]entity.Company
	users        map[string]entity.User
	memberships  map[string]entity.Membership // clave userID|companyID
	permissions  map[string]bool              // clave role|permissionKey
}

func newState() state {
	return state{
		items:        map[string]entity.InventoryItem{},
		audits:       map[string]entity.AuditLogEntry{},
		metrics:      map[string]entity.UsageMetric{},
		receipts:     map[string]entity.Receipt{},
		receiptLines: map[string]entity.ReceiptLine{},
		jobs:         map[string]entity.Job{},
		bomLines:     map[string]entity.JobBOMLine{},
		actualLines:  map[string]entity.JobActualLine{},
		orders:       map[string]entity.PurchaseOrder{},
		orderLines:   map[string]entity.PurchaseOrderLine{},
		overrides:    map[string]entity.CompanyTierOverride{},
		companies:    map[string]entity.Company{},
		users:        map[string]entity.User{},
		memberships:  map[string]entity.Membership{},
		permissions:  map[string]bool{},
	}
}

func (s state) clone() state {
	return state{
		items:        maps.Clone(s.items),
		audits:       maps.Clone(s.audits),
		metrics:      maps.Clone(s.metrics),
		receipts:     maps.Clone(s.receipts),
		receiptLines: maps.Clone(s.receiptLines),
		jobs:         maps.Clone(s.jobs),
		bomLines:     maps.Clone(s.bomLines),
		actualLines:  maps.Clone(s.actualLines),
		orders:       maps.Clone(s.orders),
		orderLines:   maps.Clone(s.orderLines),
		overrides:    maps.Clone(s.overrides),
		companies:    maps.Clone(s.companies),
		users:        maps.Clone(s.users),
		memberships:  maps.Clone(s.memberships),
		permissions:  maps.Clone(s.permissions),
	}
}

// Store guarda todo el estado en memoria. Los repos atados a un Store operan
// sobre el estado vivo; el TxRunner hace snapshot antes de cada callback y
// restaura si el callback falla.
type Store struct {
	st state
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// SeedPermission registra una entrada de la tabla rol → clave → booleano.
func (s *Store) SeedPermission(role, key string, allowed bool) {
	s.st.permissions[role+"|"+key] = allowed
}

// Repos devuelve el bundle de repositorios atados al Store (mismas instancias
// dentro y fuera de transacción).
func (s *Store) Repos() ports.TxRepos {
	return ports.TxRepos{
		Items:     &ItemRepo{s: s},
		Audit:     &AuditRepo{s: s},
		Metrics:   &MetricsRepo{s: s},
		Receipts:  &ReceiptRepo{s: s},
		Jobs:      &JobRepo{s: s},
		Orders:    &PurchaseOrderRepo{s: s},
		Overrides: &TierOverrideRepo{s: s},
		Companies: &CompanyRepo{s: s},
	}
}

var _ ports.TxRunner = (*TxRunner)(nil)

// TxRunner simula transacciones con snapshot/restore. Reentrante: un Run
// anidado toma su propio snapshot, igual que una transacción independiente.
type TxRunner struct {
	store *Store
}

// NewTxRunner construye el runner sobre el Store.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{store: store}
}

// Run ejecuta fn sobre repos atados al Store; ante error restaura el estado previo.
func (r *TxRunner) Run(ctx context.Context, fn func(repos ports.TxRepos) error) error {
	snapshot := r.store.st.clone()
	if err := fn(r.store.Repos()); err != nil {
		r.store.st = snapshot
		return err
	}
	return nil
}
