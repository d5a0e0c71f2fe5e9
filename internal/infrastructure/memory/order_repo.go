package memory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implementación en memoria de PurchaseOrderRepository.
type PurchaseOrderRepo struct {
	s *Store
}

func (r *PurchaseOrderRepo) Create(po *entity.PurchaseOrder) error {
	r.s.st.orders[po.ID] = *po
	return nil
}

func (r *PurchaseOrderRepo) GetByID(id string) (*entity.PurchaseOrder, error) {
	po, ok := r.s.st.orders[id]
	if !ok {
		return nil, nil
	}
	return &po, nil
}

func (r *PurchaseOrderRepo) GetForUpdate(id string) (*entity.PurchaseOrder, error) {
	return r.GetByID(id)
}

func (r *PurchaseOrderRepo) Update(po *entity.PurchaseOrder) error {
	r.s.st.orders[po.ID] = *po
	return nil
}

func (r *PurchaseOrderRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	var orders []*entity.PurchaseOrder
	for _, po := range r.s.st.orders {
		if po.CompanyID != companyID {
			continue
		}
		found := po
		orders = append(orders, &found)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return paginate(orders, limit, offset), nil
}

func (r *PurchaseOrderRepo) Lines(poID string) ([]*entity.PurchaseOrderLine, error) {
	var lines []*entity.PurchaseOrderLine
	for _, l := range r.s.st.orderLines {
		if l.PurchaseOrderID != poID {
			continue
		}
		found := l
		lines = append(lines, &found)
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].ID < lines[j].ID
	})
	return lines, nil
}

func (r *PurchaseOrderRepo) GetLine(lineID string) (*entity.PurchaseOrderLine, error) {
	l, ok := r.s.st.orderLines[lineID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *PurchaseOrderRepo) CreateLine(l *entity.PurchaseOrderLine) error {
	r.s.st.orderLines[l.ID] = *l
	return nil
}

func (r *PurchaseOrderRepo) IncomingSupply(companyID string, itemIDs []string, excludePOID string) (map[string]decimal.Decimal, error) {
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	supply := make(map[string]decimal.Decimal, len(itemIDs))
	for _, l := range r.s.st.orderLines {
		if l.PurchaseOrderID == excludePOID || !wanted[l.ItemID] {
			continue
		}
		po, ok := r.s.st.orders[l.PurchaseOrderID]
		if !ok || po.CompanyID != companyID || !po.SupplyCounts() {
			continue
		}
		supply[l.ItemID] = supply[l.ItemID].Add(l.QtyOrdered)
	}
	return supply, nil
}
