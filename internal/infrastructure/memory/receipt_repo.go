package memory

import (
	"sort"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.ReceiptRepository = (*ReceiptRepo)(nil)

// ReceiptRepo implementación en memoria de ReceiptRepository.
type ReceiptRepo struct {
	s *Store
}

func (r *ReceiptRepo) Create(rc *entity.Receipt) error {
	r.s.st.receipts[rc.ID] = *rc
	return nil
}

func (r *ReceiptRepo) GetByID(id string) (*entity.Receipt, error) {
	rc, ok := r.s.st.receipts[id]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

func (r *ReceiptRepo) GetForUpdate(id string) (*entity.Receipt, error) {
	return r.GetByID(id)
}

func (r *ReceiptRepo) Update(rc *entity.Receipt) error {
	r.s.st.receipts[rc.ID] = *rc
	return nil
}

func (r *ReceiptRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Receipt, error) {
	var receipts []*entity.Receipt
	for _, rc := range r.s.st.receipts {
		if rc.CompanyID != companyID {
			continue
		}
		found := rc
		receipts = append(receipts, &found)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].CreatedAt.After(receipts[j].CreatedAt) })
	return paginate(receipts, limit, offset), nil
}

func (r *ReceiptRepo) Lines(receiptID string) ([]*entity.ReceiptLine, error) {
	var lines []*entity.ReceiptLine
	for _, l := range r.s.st.receiptLines {
		if l.ReceiptID != receiptID {
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

func (r *ReceiptRepo) GetLine(lineID string) (*entity.ReceiptLine, error) {
	l, ok := r.s.st.receiptLines[lineID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *ReceiptRepo) CreateLine(l *entity.ReceiptLine) error {
	r.s.st.receiptLines[l.ID] = *l
	return nil
}

func (r *ReceiptRepo) UpdateLine(l *entity.ReceiptLine) error {
	r.s.st.receiptLines[l.ID] = *l
	return nil
}

func (r *ReceiptRepo) DeleteLine(lineID string) error {
	delete(r.s.st.receiptLines, lineID)
	return nil
}
