package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implementación en memoria de AuditRepository.
type AuditRepo struct {
	s *Store
}

func (r *AuditRepo) Create(e *entity.AuditLogEntry) error {
	// Mismo contrato que el DEFAULT de la columna id en Postgres.
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	r.s.st.audits[e.ID] = *e
	return nil
}

func (r *AuditRepo) GetByID(id string) (*entity.AuditLogEntry, error) {
	e, ok := r.s.st.audits[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *AuditRepo) GetForUpdate(id string) (*entity.AuditLogEntry, error) {
	return r.GetByID(id)
}

func (r *AuditRepo) MarkRolledBack(id, by, reason string, at time.Time) (bool, error) {
	e, ok := r.s.st.audits[id]
	if !ok || e.RolledBackAt != nil {
		return false, nil
	}
	rolledAt := at
	e.RolledBackAt = &rolledAt
	e.RolledBackBy = by
	e.RollbackReason = reason
	r.s.st.audits[id] = e
	return true, nil
}

func (r *AuditRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.AuditLogEntry, error) {
	var entries []*entity.AuditLogEntry
	for _, e := range r.s.st.audits {
		if e.CompanyID != companyID {
			continue
		}
		found := e
		entries = append(entries, &found)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return paginate(entries, limit, offset), nil
}

var _ repository.MetricsRepository = (*MetricsRepo)(nil)

// MetricsRepo implementación en memoria de MetricsRepository.
type MetricsRepo struct {
	s *Store
}

func metricKey(m *entity.UsageMetric) string {
	return m.CompanyID + "|" + m.ActorID + "|" + m.Day.Format("2006-01-02") + "|" + m.Action + "|" + m.TableName
}

func (r *MetricsRepo) Accumulate(m *entity.UsageMetric) error {
	key := metricKey(m)
	if cur, ok := r.s.st.metrics[key]; ok {
		cur.OpCount += m.OpCount
		cur.QtyDelta = cur.QtyDelta.Add(m.QtyDelta)
		r.s.st.metrics[key] = cur
		return nil
	}
	r.s.st.metrics[key] = *m
	return nil
}

func (r *MetricsRepo) ListByCompany(companyID string, from, to time.Time) ([]*entity.UsageMetric, error) {
	var metrics []*entity.UsageMetric
	for _, m := range r.s.st.metrics {
		if m.CompanyID != companyID || m.Day.Before(from) || m.Day.After(to) {
			continue
		}
		found := m
		metrics = append(metrics, &found)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if !metrics[i].Day.Equal(metrics[j].Day) {
			return metrics[i].Day.Before(metrics[j].Day)
		}
		return metrics[i].Action < metrics[j].Action
	})
	return metrics, nil
}
