package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/jobs"
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
	uc    *jobs.UseCase
	actor authz.Actor
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	require.NoError(t, repos.Companies.Create(&entity.Company{
		ID: testCompanyID, Name: "Taller de Prueba", BaseTier: entity.TierBusiness,
		EnvironmentType: entity.EnvTest, Status: "active", BillingState: "ok",
	}))

	users := memory.NewUserRepo(store)
	require.NoError(t, users.Create(&entity.User{ID: testUserID, Email: "taller@test.com", Name: "Taller"}))
	require.NoError(t, users.AddMembership(&entity.Membership{UserID: testUserID, CompanyID: testCompanyID, Role: "editor"}))
	store.SeedPermission("editor", entity.PermJobsEdit, true)
	store.SeedPermission("editor", entity.PermJobsDelete, true)

	engine := authz.NewEngine(users, memory.NewPermissionRepo(store))
	runner := memory.NewTxRunner(store)
	uc := jobs.NewUseCase(runner, engine, repos.Jobs)
	return &fixture{
		store: store,
		uc:    uc,
		actor: authz.Actor{UserID: testUserID, CompanyID: testCompanyID},
	}
}

func (f *fixture) seedItem(t *testing.T, id string, qty int64) {
	t.Helper()
	require.NoError(t, f.store.Repos().Items.Create(&entity.InventoryItem{
		ID: id, CompanyID: testCompanyID, Name: "Ítem " + id, NormalizedName: "ítem " + id,
		Quantity: decimal.NewFromInt(qty),
	}))
}

func (f *fixture) itemQty(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	it, err := f.store.Repos().Items.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, it)
	return it.Quantity
}

// jobWithBOM crea un trabajo en draft con las líneas de BOM indicadas.
func (f *fixture) jobWithBOM(t *testing.T, bom map[string]int64) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.uc.CreateJob(ctx, f.actor, "Trabajo de prueba", "")
	require.NoError(t, err)
	for itemID, qty := range bom {
		res, err := f.uc.SetBOMLine(ctx, f.actor, id, itemID, decimal.NewFromInt(qty))
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	return id
}

func actuals(pairs map[string]int64) []jobs.ActualInput {
	var out []jobs.ActualInput
	for id, qty := range pairs {
		out = append(out, jobs.ActualInput{ItemID: id, QtyUsed: decimal.NewFromInt(qty)})
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Aprobación: reserva blanda, nunca descuento
// ──────────────────────────────────────────────────────────────────────────────

func TestApprove_ReservaSinDescontar(t *testing.T) {
	f := buildFixture(t)
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})

	res, err := f.uc.Approve(context.Background(), f.actor, id, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.JobApproved, res.Status)
	assert.Empty(t, res.Shortages)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "aprobar no toca on-hand")
}

func TestApprove_ItemBorradoEnBOM(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})

	// El ítem se tombstonea después de armar el BOM.
	_, err := f.store.Repos().Items.SoftDelete([]string{"item-1"}, testUserID, time.Now())
	require.NoError(t, err)

	res, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)
	assert.Equal(t, dto.CodeItemDeleted, res.Code)
	assert.Equal(t, entity.JobDraft, res.Status, "el trabajo no avanza")
}

func TestApprove_FaltanteEsInformativo(t *testing.T) {
	f := buildFixture(t)
	f.seedItem(t, "item-1", 3)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 5})

	// Sin afirmación de cumplibilidad la reserva es optimista: aprueba igual.
	res, err := f.uc.Approve(context.Background(), f.actor, id, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Shortages, 1)
	assert.True(t, res.Shortages[0].Shortfall.Equal(decimal.NewFromInt(2)))
}

func TestApprove_RegresionDeCumplibilidad(t *testing.T) {
	f := buildFixture(t)
	f.seedItem(t, "item-1", 3)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 5})

	// El caller afirma que al cotizar era cumplible y ya no lo es.
	was := true
	res, err := f.uc.Approve(context.Background(), f.actor, id, &was)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, dto.CodeInventoryChanged, res.Code)
	require.Len(t, res.Shortages, 1)
}

func TestApprove_DescuentaReservasDeOtrosTrabajos(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)

	// Primer trabajo aprobado reserva 8.
	first := f.jobWithBOM(t, map[string]int64{"item-1": 8})
	res, err := f.uc.Approve(ctx, f.actor, first, nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	// El segundo ve disponible = 10 − 8 = 2: pedir 5 reporta faltante 3.
	second := f.jobWithBOM(t, map[string]int64{"item-1": 5})
	was := true
	res, err = f.uc.Approve(ctx, f.actor, second, &was)
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInventoryChanged, res.Code)
	require.Len(t, res.Shortages, 1)
	assert.True(t, res.Shortages[0].Available.Equal(decimal.NewFromInt(2)))
	assert.True(t, res.Shortages[0].Shortfall.Equal(decimal.NewFromInt(3)))
}

func TestApprove_RepetidoEsIdempotente(t *testing.T) {
	f := buildFixture(t)
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(context.Background(), f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Approve(context.Background(), f.actor, id, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Idempotent)
}

func TestVoid_LiberaLaReserva(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	first := f.jobWithBOM(t, map[string]int64{"item-1": 8})
	_, err := f.uc.Approve(ctx, f.actor, first, nil)
	require.NoError(t, err)
	res, err := f.uc.Void(ctx, f.actor, first)
	require.NoError(t, err)
	require.True(t, res.Success)

	// Anulado el primero, el segundo vuelve a ver los 10 disponibles.
	second := f.jobWithBOM(t, map[string]int64{"item-1": 10})
	was := true
	res, err = f.uc.Approve(ctx, f.actor, second, &was)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Shortages)
}

// ──────────────────────────────────────────────────────────────────────────────
// Completación: consumo real
// ──────────────────────────────────────────────────────────────────────────────

func TestComplete_DescuentaConsumosReales(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	f.seedItem(t, "item-2", 5)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4, "item-2": 2})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 3, "item-2": 2}))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.JobCompleted, res.Status)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(7)))
	assert.True(t, f.itemQty(t, "item-2").Equal(decimal.NewFromInt(3)))
}

func TestComplete_ActualCeroEsValido(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 0}))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "consumo cero no descuenta")
}

func TestComplete_ActualSobreItemBorrado(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	f.seedItem(t, "item-2", 5)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	// item-2 se borra antes de completar; un actual no planeado no puede
	// consumirlo.
	_, err = f.store.Repos().Items.SoftDelete([]string{"item-2"}, testUserID, time.Now())
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 3, "item-2": 2}))
	require.NoError(t, err)
	assert.Equal(t, dto.CodeItemDeleted, res.Code)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "nada se descuenta")
	assert.True(t, f.itemQty(t, "item-2").Equal(decimal.NewFromInt(5)))
}

func TestComplete_FaltaUnActual(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	f.seedItem(t, "item-2", 5)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4, "item-2": 2})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 3}))
	require.NoError(t, err)
	assert.Equal(t, dto.CodeMissingActual, res.Code)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "nada se descuenta")
}

func TestComplete_ActualDuplicado(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, []jobs.ActualInput{
		{ItemID: "item-1", QtyUsed: decimal.NewFromInt(2)},
		{ItemID: "item-1", QtyUsed: decimal.NewFromInt(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodeDuplicateActual, res.Code)
}

func TestComplete_ActualNegativo(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": -1}))
	require.NoError(t, err)
	assert.Equal(t, dto.CodeNegativeQty, res.Code)
}

func TestComplete_TodoONada(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	f.seedItem(t, "item-2", 1)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4, "item-2": 2})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	// item-2 no alcanza: no se descuenta NADA, ni siquiera item-1.
	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 4, "item-2": 2}))
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInsufficientStock, res.Code)
	require.Len(t, res.Shortages, 1)
	assert.Equal(t, "item-2", res.Shortages[0].ItemID)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)))
	assert.True(t, f.itemQty(t, "item-2").Equal(decimal.NewFromInt(1)))
}

func TestComplete_ConsumoNoPlanificadoSeAgregaAlBOM(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	f.seedItem(t, "extra", 5)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 4, "extra": 2}))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []string{"extra"}, res.UnplannedItemsAdded)
	assert.True(t, f.itemQty(t, "extra").Equal(decimal.NewFromInt(3)))

	detail, err := f.uc.GetJob(ctx, f.actor, id)
	require.NoError(t, err)
	var unplanned *entity.JobBOMLine
	for _, l := range detail.BOM {
		if l.ItemID == "extra" {
			unplanned = l
		}
	}
	require.NotNil(t, unplanned, "el consumo extra queda en el BOM")
	assert.True(t, unplanned.Unplanned)
	assert.True(t, unplanned.QtyPlanned.Equal(decimal.NewFromInt(2)), "qty_planned = qty_used")
}

func TestComplete_RepetidoEsIdempotente(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 4})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)
	_, err = f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 4}))
	require.NoError(t, err)

	res, err := f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 4}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Idempotent)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(6)), "el consumo no se re-aplica")
}

// ──────────────────────────────────────────────────────────────────────────────
// Transiciones simples
// ──────────────────────────────────────────────────────────────────────────────

func TestCicloCompleto_DraftQuotedApprovedInProgress(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 2})

	res, err := f.uc.Quote(ctx, f.actor, id)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.JobQuoted, res.Status)

	res, err = f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = f.uc.Start(ctx, f.actor, id)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.JobInProgress, res.Status)
}

func TestStart_DesdeDraftEsInvalido(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	id := f.jobWithBOM(t, nil)

	res, err := f.uc.Start(ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInvalidTransition, res.Code)
}

func TestVoid_TrabajoCompletadoEsInvalido(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 1})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)
	_, err = f.uc.Complete(ctx, f.actor, id, actuals(map[string]int64{"item-1": 1}))
	require.NoError(t, err)

	res, err := f.uc.Void(ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInvalidTransition, res.Code, "lo consumido no se libera anulando")
}

func TestSetBOMLine_SoloEnDraftOQuoted(t *testing.T) {
	f := buildFixture(t)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.jobWithBOM(t, map[string]int64{"item-1": 2})
	_, err := f.uc.Approve(ctx, f.actor, id, nil)
	require.NoError(t, err)

	res, err := f.uc.SetBOMLine(ctx, f.actor, id, "item-1", decimal.NewFromInt(9))
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInvalidTransition, res.Code)
}

func TestCreateJob_SinPermiso(t *testing.T) {
	f := buildFixture(t)
	f.store.SeedPermission("editor", entity.PermJobsEdit, false)

	_, err := f.uc.CreateJob(context.Background(), f.actor, "Trabajo", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
