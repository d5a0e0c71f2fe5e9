package memory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo implementación en memoria de JobRepository.
type JobRepo struct {
	s *Store
}

func (r *JobRepo) Create(j *entity.Job) error {
	r.s.st.jobs[j.ID] = *j
	return nil
}

func (r *JobRepo) GetByID(id string) (*entity.Job, error) {
	j, ok := r.s.st.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (r *JobRepo) GetForUpdate(id string) (*entity.Job, error) {
	return r.GetByID(id)
}

func (r *JobRepo) Update(j *entity.Job) error {
	r.s.st.jobs[j.ID] = *j
	return nil
}

func (r *JobRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Job, error) {
	var jobs []*entity.Job
	for _, j := range r.s.st.jobs {
		if j.CompanyID != companyID {
			continue
		}
		found := j
		jobs = append(jobs, &found)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return paginate(jobs, limit, offset), nil
}

func bomKey(jobID, itemID string) string { return jobID + "|" + itemID }

func (r *JobRepo) BOMLines(jobID string) ([]*entity.JobBOMLine, error) {
	var lines []*entity.JobBOMLine
	for _, l := range r.s.st.bomLines {
		if l.JobID != jobID {
			continue
		}
		found := l
		lines = append(lines, &found)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines, nil
}

func (r *JobRepo) UpsertBOMLine(l *entity.JobBOMLine) error {
	r.s.st.bomLines[bomKey(l.JobID, l.ItemID)] = *l
	return nil
}

func (r *JobRepo) DeleteBOMLine(jobID, itemID string) error {
	delete(r.s.st.bomLines, bomKey(jobID, itemID))
	return nil
}

func (r *JobRepo) Actuals(jobID string) ([]*entity.JobActualLine, error) {
	var lines []*entity.JobActualLine
	for _, l := range r.s.st.actualLines {
		if l.JobID != jobID {
			continue
		}
		found := l
		lines = append(lines, &found)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines, nil
}

func (r *JobRepo) ReplaceActuals(jobID string, lines []*entity.JobActualLine) error {
	for key, l := range r.s.st.actualLines {
		if l.JobID == jobID {
			delete(r.s.st.actualLines, key)
		}
	}
	for _, l := range lines {
		r.s.st.actualLines[bomKey(l.JobID, l.ItemID)] = *l
	}
	return nil
}

func (r *JobRepo) ReservedByOthers(companyID string, itemIDs []string, excludeJobID string) (map[string]decimal.Decimal, error) {
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	reserved := make(map[string]decimal.Decimal, len(itemIDs))
	for _, l := range r.s.st.bomLines {
		if l.JobID == excludeJobID || !wanted[l.ItemID] {
			continue
		}
		j, ok := r.s.st.jobs[l.JobID]
		if !ok || j.CompanyID != companyID || !j.Reserving() {
			continue
		}
		reserved[l.ItemID] = reserved[l.ItemID].Add(l.QtyPlanned)
	}
	return reserved, nil
}
