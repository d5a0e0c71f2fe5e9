package entity

import "time"

// Planes de suscripción disponibles (deben coincidir con el CHECK de companies.base_tier).
const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierBusiness     = "business"
	TierEnterprise   = "enterprise"
)

// ValidTier informa si s es un plan conocido.
func ValidTier(s string) bool {
	switch s {
	case TierStarter, TierProfessional, TierBusiness, TierEnterprise:
		return true
	}
	return false
}

// Tipos de entorno de una empresa. Las operaciones destructivas (purga física,
// seeding) solo se permiten fuera de production.
const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
	EnvTest       = "test"
	EnvSystem     = "system"
)

// Company representa una organización/tenant del sistema. Toda fila de negocio
// cuelga de exactamente una empresa; el núcleo de mutación nunca cruza tenants.
type Company struct {
	ID              string
	Name            string
	BaseTier        string // plan base; un override vigente lo puede tapar (ver CompanyTierOverride)
	EnvironmentType string // production, sandbox, test, system
	Status          string // active, suspended, inactive
	BillingState    string // ok, past_due, canceled
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsDestructiveAllowed informa si la empresa admite operaciones destructivas
// (purga física de tombstones, seeding masivo).
func (c *Company) IsDestructiveAllowed() bool {
	return c.EnvironmentType == EnvSandbox || c.EnvironmentType == EnvTest
}
