package repository

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// JobRepository define el puerto de trabajos, BOM y consumos reales.
type JobRepository interface {
	Create(j *entity.Job) error
	GetByID(id string) (*entity.Job, error)
	GetForUpdate(id string) (*entity.Job, error)
	Update(j *entity.Job) error
	ListByCompany(companyID string, limit, offset int) ([]*entity.Job, error)

	BOMLines(jobID string) ([]*entity.JobBOMLine, error)
	UpsertBOMLine(l *entity.JobBOMLine) error
	DeleteBOMLine(jobID, itemID string) error

	Actuals(jobID string) ([]*entity.JobActualLine, error)
	// ReplaceActuals borra los consumos previos del trabajo y escribe los nuevos.
	ReplaceActuals(jobID string, lines []*entity.JobActualLine) error

	// ReservedByOthers devuelve, por ítem, la suma de qty_planned de los BOM de
	// otros trabajos de la empresa en estado approved/in_progress (la vista de
	// reserva blanda). excludeJobID excluye el trabajo en evaluación.
	ReservedByOthers(companyID string, itemIDs []string, excludeJobID string) (map[string]decimal.Decimal, error)
}
