package repository

import (
	"time"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// TierOverrideRepository define el puerto del historial append-only de overrides
// de plan. El no-solape entre ventanas no revocadas se garantiza revisando el
// historial con las filas de la empresa bloqueadas (ListNonRevokedForUpdate)
// dentro de la misma transacción del insert: equivalente a la exclusion
// constraint de intervalo del almacenamiento.
type TierOverrideRepository interface {
	Create(o *entity.CompanyTierOverride) error
	ListNonRevoked(companyID string) ([]*entity.CompanyTierOverride, error)
	// ListNonRevokedForUpdate bloquea las ventanas no revocadas de la empresa
	// para que dos grants concurrentes no puedan insertar solapes.
	ListNonRevokedForUpdate(companyID string) ([]*entity.CompanyTierOverride, error)
	// ActiveAt devuelve la ventana vigente (no revocada, contiene now) o nil.
	ActiveAt(companyID string, now time.Time) (*entity.CompanyTierOverride, error)
	Revoke(id string, at time.Time) error
	// ExpireDue marca revoked_at = ends_at en toda ventana no revocada ya
	// vencida y devuelve SOLO las recién expiradas (RETURNING): ese conjunto es
	// la guarda de idempotencia del evento override_expired.
	ExpireDue(companyID string, now time.Time) ([]*entity.CompanyTierOverride, error)
}
