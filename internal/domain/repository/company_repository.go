package repository

import (
	"time"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// CompanyRepository define el puerto de empresas (tenants).
type CompanyRepository interface {
	Create(c *entity.Company) error
	GetByID(id string) (*entity.Company, error)
	UpdateBaseTier(id, tier string, now time.Time) error
}
