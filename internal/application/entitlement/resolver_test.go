package entitlement_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/infrastructure/memory"
)

const testCompanyID = "00000000-0000-0000-0000-000000000002"

func buildResolver(t *testing.T, baseTier string) (*entitlement.Resolver, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Repos().Companies.Create(&entity.Company{
		ID:              testCompanyID,
		Name:            "Empresa de Prueba",
		BaseTier:        baseTier,
		EnvironmentType: entity.EnvTest,
		Status:          "active",
		BillingState:    "ok",
	}))
	return entitlement.NewResolver(memory.NewTxRunner(store)), store
}

// cuenta las entradas de auditoría de la empresa cuyo metadata contiene marker.
func countAuditEvents(t *testing.T, store *memory.Store, marker string) int {
	t.Helper()
	entries, err := store.Repos().Audit.ListByCompany(testCompanyID, 100, 0)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if strings.Contains(string(e.Metadata), marker) {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolución del plan efectivo
// ──────────────────────────────────────────────────────────────────────────────

func TestResolve_PlanBase(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierBusiness)

	info, err := resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierBusiness, info.EffectiveTier)
	assert.Equal(t, entitlement.SourceBase, info.Source)
}

func TestResolve_PlanBaseInvalidoCaeAStarter(t *testing.T) {
	resolver, _ := buildResolver(t, "plan-que-no-existe")

	info, err := resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierStarter, info.EffectiveTier, "un plan base inválido se sanea a starter")
}

func TestResolve_OverrideVigenteTapaElBase(t *testing.T) {
	resolver, store := buildResolver(t, entity.TierStarter)
	ends := time.Now().Add(time.Hour)
	require.NoError(t, store.Repos().Overrides.Create(&entity.CompanyTierOverride{
		ID: "ov-1", CompanyID: testCompanyID, OverrideTier: entity.TierEnterprise,
		StartsAt: time.Now().Add(-time.Minute), EndsAt: &ends, GrantedBy: "root",
	}))

	info, err := resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierEnterprise, info.EffectiveTier)
	assert.Equal(t, entitlement.SourceOverride, info.Source)
}

func TestResolve_ExpiraVentanaVencidaExactamenteUnaVez(t *testing.T) {
	resolver, store := buildResolver(t, entity.TierStarter)
	ends := time.Now().Add(-time.Minute)
	require.NoError(t, store.Repos().Overrides.Create(&entity.CompanyTierOverride{
		ID: "ov-vencido", CompanyID: testCompanyID, OverrideTier: entity.TierBusiness,
		StartsAt: time.Now().Add(-time.Hour), EndsAt: &ends, GrantedBy: "root",
	}))

	// Caso 1: la primera resolución expira la ventana y cae al plan base.
	info, err := resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, entity.TierStarter, info.EffectiveTier)
	assert.Equal(t, 1, countAuditEvents(t, store, "override_expired"))

	// Caso 2: resoluciones posteriores no vuelven a emitir el evento.
	_, err = resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, 1, countAuditEvents(t, store, "override_expired"),
		"override_expired debe emitirse exactamente una vez por ventana")
}

func TestResolve_EmpresaInexistente(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierStarter)

	_, err := resolver.Resolve(context.Background(), "empresa-fantasma")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Gate de funciones por plan
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireFeature_PlanInsuficiente(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierStarter)

	_, err := resolver.RequireFeature(context.Background(), testCompanyID, entitlement.FeatureAuditLog)
	assert.ErrorIs(t, err, domain.ErrUpgradeRequired)
}

func TestRequireFeature_PlanSuficiente(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierEnterprise)

	info, err := resolver.RequireFeature(context.Background(), testCompanyID, entitlement.FeatureAuditLog)
	require.NoError(t, err)
	assert.Equal(t, entity.TierEnterprise, info.EffectiveTier)
}

func TestRequireFeature_FuncionDesconocida(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierEnterprise)

	_, err := resolver.RequireFeature(context.Background(), testCompanyID, "funcion_inventada")
	assert.ErrorIs(t, err, domain.ErrUpgradeRequired,
		"una función desconocida no está incluida en ningún plan")
}

func TestHasFeature_RamificaSinFallar(t *testing.T) {
	resolver, _ := buildResolver(t, entity.TierProfessional)

	// Caso 1: professional incluye métricas.
	has, info, err := resolver.HasFeature(context.Background(), testCompanyID, entitlement.FeatureMetrics)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, entity.TierProfessional, info.EffectiveTier)

	// Caso 2: professional no incluye flujo de aprobación.
	has, _, err = resolver.HasFeature(context.Background(), testCompanyID, entitlement.FeatureApprovalFlow)
	require.NoError(t, err)
	assert.False(t, has)
}
