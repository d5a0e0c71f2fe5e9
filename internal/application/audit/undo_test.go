package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/inventory"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/infrastructure/memory"
)

const (
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testCompanyID = "00000000-0000-0000-0000-000000000002"
)

type fixture struct {
	store *memory.Store
	inv   *inventory.UseCase
	undo  *audit.UndoUseCase
	query *audit.QueryUseCase
	actor authz.Actor
}

func buildFixture(t *testing.T, baseTier string) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	require.NoError(t, repos.Companies.Create(&entity.Company{
		ID: testCompanyID, Name: "Empresa de Prueba", BaseTier: baseTier,
		EnvironmentType: entity.EnvTest, Status: "active", BillingState: "ok",
	}))

	users := memory.NewUserRepo(store)
	require.NoError(t, users.Create(&entity.User{ID: testUserID, Email: "auditor@test.com", Name: "Auditor"}))
	require.NoError(t, users.AddMembership(&entity.Membership{UserID: testUserID, CompanyID: testCompanyID, Role: "admin"}))
	store.SeedPermission("admin", entity.PermInventoryEdit, true)
	store.SeedPermission("admin", entity.PermInventoryDelete, true)
	store.SeedPermission("admin", entity.PermInventoryRestore, true)

	engine := authz.NewEngine(users, memory.NewPermissionRepo(store))
	runner := memory.NewTxRunner(store)
	resolver := entitlement.NewResolver(runner)
	return &fixture{
		store: store,
		inv:   inventory.NewUseCase(runner, engine, repos.Items, repos.Companies),
		undo:  audit.NewUndoUseCase(runner, engine, resolver),
		query: audit.NewQueryUseCase(runner, resolver),
		actor: authz.Actor{UserID: testUserID, CompanyID: testCompanyID},
	}
}

func (f *fixture) mustCreate(t *testing.T, name string, qty int64) string {
	t.Helper()
	res, err := f.inv.CreateItem(context.Background(), f.actor, inventory.CreateItemInput{
		Name: name, Quantity: decimal.NewFromInt(qty),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.ItemID
}

// entryByAction busca la entrada más reciente de la acción dada.
func (f *fixture) entryByAction(t *testing.T, action string) *entity.AuditLogEntry {
	t.Helper()
	entries, err := f.store.Repos().Audit.ListByCompany(testCompanyID, 100, 0)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Action == action {
			return e
		}
	}
	t.Fatalf("no hay entrada de auditoría con acción %s", action)
	return nil
}

func (f *fixture) item(t *testing.T, id string) *entity.InventoryItem {
	t.Helper()
	it, err := f.store.Repos().Items.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it
}

func ptr[T any](v T) *T { return &v }

// ──────────────────────────────────────────────────────────────────────────────
// Undo por tipo de acción original
// ──────────────────────────────────────────────────────────────────────────────

func TestUndo_DeleteRestauraElTombstone(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 30)
	_, err := f.inv.SoftDeleteItem(ctx, f.actor, id)
	require.NoError(t, err)

	entry := f.entryByAction(t, entity.ActionDelete)
	res, err := f.undo.Undo(ctx, f.actor, entry.ID, "borrado por error del operador")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.RollbackAuditID)

	it := f.item(t, id)
	assert.False(t, it.IsDeleted(), "el undo del DELETE restaura la fila")
	assert.True(t, it.Quantity.Equal(decimal.NewFromInt(30)))

	// La entrada original queda marcada y la nueva la referencia.
	marked, err := f.store.Repos().Audit.GetByID(entry.ID)
	require.NoError(t, err)
	assert.True(t, marked.IsRolledBack())
	assert.Equal(t, "borrado por error del operador", marked.RollbackReason)

	rb, err := f.store.Repos().Audit.GetByID(res.RollbackAuditID)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionRollback, rb.Action)
	assert.Equal(t, entry.ID, rb.RollbackOf)
}

func TestUndo_UpdateReponeElSnapshotViejo(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 100)
	_, err := f.inv.UpdateItem(ctx, f.actor, id, inventory.UpdateItemInput{
		Quantity: ptr(decimal.NewFromInt(40)),
	})
	require.NoError(t, err)

	entry := f.entryByAction(t, entity.ActionUpdate)
	res, err := f.undo.Undo(ctx, f.actor, entry.ID, "ajuste equivocado de stock")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, f.item(t, id).Quantity.Equal(decimal.NewFromInt(100)),
		"el undo del UPDATE repone old_values")
}

func TestUndo_InsertTombstoneaLaFilaCreada(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 10)

	entry := f.entryByAction(t, entity.ActionInsert)
	res, err := f.undo.Undo(ctx, f.actor, entry.ID, "alta duplicada por error")
	require.NoError(t, err)
	require.True(t, res.Success)

	it := f.item(t, id)
	assert.True(t, it.IsDeleted(), "deshacer un INSERT borra lógico, nunca físico")
}

func TestUndo_BulkDeleteFilaPorFila(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	a := f.mustCreate(t, "Tornillo M4", 1)
	b := f.mustCreate(t, "Tornillo M5", 2)
	_, err := f.inv.SoftDeleteItems(ctx, f.actor, []string{a, b})
	require.NoError(t, err)

	// Cada entrada BULK_DELETE se revierte por separado.
	entries, err := f.store.Repos().Audit.ListByCompany(testCompanyID, 100, 0)
	require.NoError(t, err)
	var entryA *entity.AuditLogEntry
	for _, e := range entries {
		if e.Action == entity.ActionBulkDelete && e.RecordID == a {
			entryA = e
		}
	}
	require.NotNil(t, entryA)

	res, err := f.undo.Undo(ctx, f.actor, entryA.ID, "solo este ítem iba en serio")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.False(t, f.item(t, a).IsDeleted())
	assert.True(t, f.item(t, b).IsDeleted(), "el otro tombstone queda intacto")
}

// ──────────────────────────────────────────────────────────────────────────────
// Guardas
// ──────────────────────────────────────────────────────────────────────────────

func TestUndo_RepetidoEsAlreadyRolledBack(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 30)
	_, err := f.inv.SoftDeleteItem(ctx, f.actor, id)
	require.NoError(t, err)
	entry := f.entryByAction(t, entity.ActionDelete)
	_, err = f.undo.Undo(ctx, f.actor, entry.ID, "borrado por error del operador")
	require.NoError(t, err)

	res, err := f.undo.Undo(ctx, f.actor, entry.ID, "reintento del mismo undo")
	require.NoError(t, err, "el reintento es resultado suave, no error")
	assert.False(t, res.Success)
	assert.Equal(t, dto.CodeAlreadyRolledBack, res.Code)
	assert.False(t, f.item(t, id).IsDeleted(), "el estado no se re-muta")
}

func TestUndo_AccionNoReversible(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	require.NoError(t, f.store.Repos().Audit.Create(&entity.AuditLogEntry{
		ID: "switch-1", CompanyID: testCompanyID, Action: entity.ActionCompanySwitch,
		TableName: "users", RecordID: testUserID, ActorID: testUserID, CreatedAt: time.Now(),
	}))

	res, err := f.undo.Undo(context.Background(), f.actor, "switch-1", "no debería poder")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeNotUndoable, res.Code)
}

func TestUndo_TablaNoReversible(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	require.NoError(t, f.store.Repos().Audit.Create(&entity.AuditLogEntry{
		ID: "rec-1", CompanyID: testCompanyID, Action: entity.ActionUpdate,
		TableName: "receipts", RecordID: "r-1", ActorID: testUserID, CreatedAt: time.Now(),
	}))

	res, err := f.undo.Undo(context.Background(), f.actor, "rec-1", "las recepciones se anulan, no se deshacen")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeNotUndoable, res.Code)
}

func TestUndo_PlanInsuficiente(t *testing.T) {
	f := buildFixture(t, entity.TierStarter)
	f.mustCreate(t, "Tornillo M4", 5)

	entry := f.entryByAction(t, entity.ActionInsert)
	_, err := f.undo.Undo(context.Background(), f.actor, entry.ID, "plan starter no incluye auditoría")
	assert.ErrorIs(t, err, domain.ErrUpgradeRequired)
}

func TestUndo_EntradaDeOtraEmpresa(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	require.NoError(t, f.store.Repos().Audit.Create(&entity.AuditLogEntry{
		ID: "ajena-1", CompanyID: "otra-empresa", Action: entity.ActionDelete,
		TableName: "inventory_items", RecordID: "x", ActorID: "y", CreatedAt: time.Now(),
	}))

	_, err := f.undo.Undo(context.Background(), f.actor, "ajena-1", "no es de esta empresa")
	assert.ErrorIs(t, err, domain.ErrNotFound,
		"una entrada ajena es indistinguible de una inexistente")
}

func TestUndo_SinPermisoDelTipoOriginal(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 5)
	_, err := f.inv.SoftDeleteItem(ctx, f.actor, id)
	require.NoError(t, err)

	// Deshacer un DELETE exige inventory:restore.
	f.store.SeedPermission("admin", entity.PermInventoryRestore, false)
	entry := f.entryByAction(t, entity.ActionDelete)
	res, err := f.undo.Undo(ctx, f.actor, entry.ID, "sin capacidad de restaurar")
	require.NoError(t, err)
	assert.Equal(t, dto.CodePermissionDenied, res.Code)
	assert.True(t, f.item(t, id).IsDeleted())
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas gateadas por plan
// ──────────────────────────────────────────────────────────────────────────────

func TestList_ExigePlanEnterprise(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)

	_, err := f.query.List(context.Background(), f.actor, 20, 0)
	assert.ErrorIs(t, err, domain.ErrUpgradeRequired)
}

func TestList_DevuelveLasEntradasDeLaEmpresa(t *testing.T) {
	f := buildFixture(t, entity.TierEnterprise)
	f.mustCreate(t, "Tornillo M4", 1)
	f.mustCreate(t, "Tornillo M5", 2)

	entries, err := f.query.List(context.Background(), f.actor, 20, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMetrics_AcumulaPorDiaYAccion(t *testing.T) {
	f := buildFixture(t, entity.TierProfessional)
	ctx := context.Background()
	id := f.mustCreate(t, "Tornillo M4", 10)
	_, err := f.inv.UpdateItem(ctx, f.actor, id, inventory.UpdateItemInput{
		Quantity: ptr(decimal.NewFromInt(4)),
	})
	require.NoError(t, err)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(24 * time.Hour)
	metrics, err := f.query.Metrics(ctx, f.actor, from, to)
	require.NoError(t, err)
	require.NotEmpty(t, metrics)

	var insert, update *entity.UsageMetric
	for _, m := range metrics {
		switch m.Action {
		case entity.ActionInsert:
			insert = m
		case entity.ActionUpdate:
			update = m
		}
	}
	require.NotNil(t, insert)
	require.NotNil(t, update)
	assert.Equal(t, int64(1), insert.OpCount)
	assert.True(t, insert.QtyDelta.Equal(decimal.NewFromInt(10)), "el alta suma +10")
	assert.True(t, update.QtyDelta.Equal(decimal.NewFromInt(-6)), "el ajuste 10→4 resta 6")
}

func TestMetrics_ExigePlanProfessional(t *testing.T) {
	f := buildFixture(t, entity.TierStarter)

	_, err := f.query.Metrics(context.Background(), f.actor, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, domain.ErrUpgradeRequired)
}
