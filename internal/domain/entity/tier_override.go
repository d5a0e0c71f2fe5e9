package entity

import "time"

// CompanyTierOverride es una fila append-only del historial de overrides de plan.
// Ventanas semiabiertas [StartsAt, EndsAt); EndsAt nil = indefinida. Invariante:
// las ventanas no revocadas de una empresa nunca se solapan, y hay a lo sumo una
// indefinida no revocada por empresa.
type CompanyTierOverride struct {
	ID           string
	CompanyID    string
	OverrideTier string
	StartsAt     time.Time
	EndsAt       *time.Time
	RevokedAt    *time.Time
	GrantedBy    string
	Reason       string
	CreatedAt    time.Time
}

// ActiveAt informa si la ventana está vigente (no revocada y contiene now).
func (o *CompanyTierOverride) ActiveAt(now time.Time) bool {
	if o.RevokedAt != nil {
		return false
	}
	if now.Before(o.StartsAt) {
		return false
	}
	return o.EndsAt == nil || now.Before(*o.EndsAt)
}

// Expired informa si la ventana cerró sin ser revocada (candidata a expiración perezosa).
func (o *CompanyTierOverride) Expired(now time.Time) bool {
	return o.RevokedAt == nil && o.EndsAt != nil && !now.Before(*o.EndsAt)
}

// Overlaps informa si [starts, ends) intersecta esta ventana (semiabierta, ends nil = infinito).
func (o *CompanyTierOverride) Overlaps(starts time.Time, ends *time.Time) bool {
	// A y B se solapan si A.start < B.end y B.start < A.end.
	if o.EndsAt != nil && !starts.Before(*o.EndsAt) {
		return false
	}
	if ends != nil && !o.StartsAt.Before(*ends) {
		return false
	}
	return true
}
