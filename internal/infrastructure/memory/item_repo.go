package memory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implementación en memoria de ItemRepository.
type ItemRepo struct {
	s *Store
}

func (r *ItemRepo) Create(item *entity.InventoryItem) error {
	for _, it := range r.s.st.items {
		if it.CompanyID == item.CompanyID && it.NormalizedName == item.NormalizedName && it.DeletedAt == nil {
			return domain.ErrDuplicate
		}
	}
	r.s.st.items[item.ID] = *item
	return nil
}

func (r *ItemRepo) GetByID(id string) (*entity.InventoryItem, error) {
	it, ok := r.s.st.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (r *ItemRepo) GetByNormalizedName(companyID, normalizedName string) (*entity.InventoryItem, error) {
	for _, it := range r.s.st.items {
		if it.CompanyID == companyID && it.NormalizedName == normalizedName && it.DeletedAt == nil {
			found := it
			return &found, nil
		}
	}
	return nil, nil
}

func (r *ItemRepo) ListByCompany(companyID string, includeDeleted bool, limit, offset int) ([]*entity.InventoryItem, error) {
	var items []*entity.InventoryItem
	for _, it := range r.s.st.items {
		if it.CompanyID != companyID {
			continue
		}
		if !includeDeleted && it.DeletedAt != nil {
			continue
		}
		found := it
		items = append(items, &found)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return paginate(items, limit, offset), nil
}

func (r *ItemRepo) Update(item *entity.InventoryItem) error {
	for _, it := range r.s.st.items {
		if it.ID != item.ID && it.CompanyID == item.CompanyID &&
			it.NormalizedName == item.NormalizedName && it.DeletedAt == nil && item.DeletedAt == nil {
			return domain.ErrDuplicate
		}
	}
	r.s.st.items[item.ID] = *item
	return nil
}

func (r *ItemRepo) GetForUpdate(id string) (*entity.InventoryItem, error) {
	return r.GetByID(id)
}

func (r *ItemRepo) GetManyForUpdate(ids []string) ([]*entity.InventoryItem, error) {
	// Igual que ANY($1) en Postgres: cada fila sale una sola vez aunque el
	// caller repita ids.
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var items []*entity.InventoryItem
	prev := ""
	for _, id := range sorted {
		if id == prev {
			continue
		}
		prev = id
		if it, ok := r.s.st.items[id]; ok {
			found := it
			items = append(items, &found)
		}
	}
	return items, nil
}

func (r *ItemRepo) UpdateQuantity(id string, qty decimal.Decimal, now time.Time) error {
	it, ok := r.s.st.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	it.Quantity = qty
	it.UpdatedAt = now
	r.s.st.items[id] = it
	return nil
}

func (r *ItemRepo) SoftDelete(ids []string, deletedBy string, at time.Time) (int, error) {
	count := 0
	for _, id := range ids {
		it, ok := r.s.st.items[id]
		if !ok || it.DeletedAt != nil {
			continue
		}
		deletedAt := at
		it.DeletedAt = &deletedAt
		it.DeletedBy = deletedBy
		it.UpdatedAt = at
		r.s.st.items[id] = it
		count++
	}
	return count, nil
}

func (r *ItemRepo) Restore(id string, at time.Time) error {
	it, ok := r.s.st.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	it.DeletedAt = nil
	it.DeletedBy = ""
	it.UpdatedAt = at
	r.s.st.items[id] = it
	return nil
}

func (r *ItemRepo) PurgeDeleted(companyID string) (int, error) {
	count := 0
	for id, it := range r.s.st.items {
		if it.CompanyID == companyID && it.DeletedAt != nil {
			delete(r.s.st.items, id)
			count++
		}
	}
	return count, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
