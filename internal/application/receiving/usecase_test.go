package receiving_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/receiving"
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
	uc    *receiving.UseCase
	actor authz.Actor
}

// buildFixture arma el caso de uso sobre el store en memoria. baseTier decide
// si la empresa tiene flujo de aprobación (business/enterprise) o no.
func buildFixture(t *testing.T, baseTier string) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repos()
	require.NoError(t, repos.Companies.Create(&entity.Company{
		ID: testCompanyID, Name: "Empresa de Prueba", BaseTier: baseTier,
		EnvironmentType: entity.EnvTest, Status: "active", BillingState: "ok",
	}))

	users := memory.NewUserRepo(store)
	require.NoError(t, users.Create(&entity.User{ID: testUserID, Email: "recepcion@test.com", Name: "Recepción"}))
	require.NoError(t, users.AddMembership(&entity.Membership{UserID: testUserID, CompanyID: testCompanyID, Role: "editor"}))
	store.SeedPermission("editor", entity.PermReceivingEdit, true)
	store.SeedPermission("editor", entity.PermReceivingApprove, true)
	store.SeedPermission("editor", entity.PermReceivingVoid, true)

	engine := authz.NewEngine(users, memory.NewPermissionRepo(store))
	runner := memory.NewTxRunner(store)
	resolver := entitlement.NewResolver(runner)
	uc := receiving.NewUseCase(runner, engine, resolver, repos.Receipts, repos.Orders, repos.Items)
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

// receiptWithLine crea una recepción en draft con una línea de received qty.
func (f *fixture) receiptWithLine(t *testing.T, itemID string, received int64) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.uc.CreateReceipt(ctx, f.actor, "", "recepción de prueba")
	require.NoError(t, err)
	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: itemID, ExpectedQty: decimal.NewFromInt(received), ReceivedQty: decimal.NewFromInt(received),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return id
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo draft → pending → completed
// ──────────────────────────────────────────────────────────────────────────────

func TestTransicion_FlujoCompletoSumaInventarioUnaVez(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.receiptWithLine(t, "item-1", 5)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.ReceiptPending, res.Status)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "submit no toca inventario")

	res, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(15)), "completed aplica +received una vez")
}

func TestTransicion_CompletarRepetidoEsIdempotente(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.receiptWithLine(t, "item-1", 5)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	_, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)

	// Caso: repetir complete no re-aplica el delta.
	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Idempotent)
	assert.True(t, res.AlreadyCompleted)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(15)), "el inventario no cambia al repetir")
}

func TestTransicion_CompletarDirectoSinFlujoDeAprobacion(t *testing.T) {
	// Plan starter: sin flujo submit/approve, draft → completed directo con receiving:edit.
	f := buildFixture(t, entity.TierStarter)
	f.store.SeedPermission("editor", entity.PermReceivingApprove, false)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 7)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(7)))
}

func TestTransicion_PlanConFlujoExigeAprobador(t *testing.T) {
	// Plan business: completar directo desde draft sin receiving:approve se rechaza.
	f := buildFixture(t, entity.TierBusiness)
	f.store.SeedPermission("editor", entity.PermReceivingApprove, false)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 7)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, dto.CodePermissionDenied, res.Code)
	assert.True(t, f.itemQty(t, "item-1").IsZero())
}

func TestTransicion_RecepcionVacia(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	id, err := f.uc.CreateReceipt(ctx, f.actor, "", "sin líneas")
	require.NoError(t, err)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeEmptyReceipt, res.Code)
}

func TestTransicion_RechazoVuelveADraft(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 3)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptDraft, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.ReceiptDraft, res.Status)
	assert.True(t, f.itemQty(t, "item-1").IsZero(), "el rechazo no toca inventario")

	// submitted_by/at son de escritura única: quedan del primer submit.
	detail, err := f.uc.GetReceipt(ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, testUserID, detail.Receipt.SubmittedBy)
	assert.NotNil(t, detail.Receipt.SubmittedAt)
}

func TestTransicion_ReenvioTrasRechazo(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 3)

	// Caso 1: draft → pending → draft → pending completa sin error duro.
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	detail, err := f.uc.GetReceipt(ctx, f.actor, id)
	require.NoError(t, err)
	primerEnvio := *detail.Receipt.SubmittedAt

	_, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptDraft, "")
	require.NoError(t, err)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	require.True(t, res.Success, "el reenvío tras rechazo debe aceptarse")
	assert.Equal(t, entity.ReceiptPending, res.Status)

	// Caso 2: la marca de primer envío se conserva intacta.
	detail, err = f.uc.GetReceipt(ctx, f.actor, id)
	require.NoError(t, err)
	assert.Equal(t, testUserID, detail.Receipt.SubmittedBy)
	require.NotNil(t, detail.Receipt.SubmittedAt)
	assert.True(t, detail.Receipt.SubmittedAt.Equal(primerEnvio),
		"submitted_at es de escritura única")

	// Caso 3: la recepción reenviada sigue el flujo normal hasta completed.
	res, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(3)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Anulación
// ──────────────────────────────────────────────────────────────────────────────

func TestVoid_RevierteElDeltaExacto(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 10)
	id := f.receiptWithLine(t, "item-1", 5)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	_, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)
	require.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(15)))

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptVoided, "mercadería dañada en depósito")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, entity.ReceiptVoided, res.Status)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(10)), "void revierte exactamente lo sumado")
}

func TestVoid_MotivoCorto(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 5)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	_, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptVoided, "corto")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeVoidReasonTooShort, res.Code)
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(5)))
}

func TestVoid_ConsumoPosteriorReportaFaltante(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 5)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)
	_, err = f.uc.Transition(ctx, f.actor, id, entity.ReceiptCompleted, "")
	require.NoError(t, err)

	// Alguien consumió 3 de las 5 recibidas: revertir dejaría −3.
	require.NoError(t, f.store.Repos().Items.UpdateQuantity("item-1", decimal.NewFromInt(2), time.Now()))

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptVoided, "recepción equivocada de proveedor")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInsufficientStock, res.Code)
	require.Len(t, res.Shortages, 1)
	assert.Equal(t, "item-1", res.Shortages[0].ItemID)
	assert.True(t, res.Shortages[0].Shortfall.Equal(decimal.NewFromInt(3)))
	assert.True(t, f.itemQty(t, "item-1").Equal(decimal.NewFromInt(2)), "sin mutación parcial")
}

func TestVoid_SoloDesdeCompleted(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 5)

	res, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptVoided, "motivo suficientemente largo")
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInvalidTransition, res.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Líneas
// ──────────────────────────────────────────────────────────────────────────────

func TestAddLine_RechazoExigeMotivo(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id, err := f.uc.CreateReceipt(ctx, f.actor, "", "")
	require.NoError(t, err)

	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", ReceivedQty: decimal.NewFromInt(4),
		RejectedQty: decimal.NewFromInt(1), RejectReason: "corto",
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodeRejectReasonTooShort, res.Code)
}

func TestAddLine_CantidadNegativa(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id, err := f.uc.CreateReceipt(ctx, f.actor, "", "")
	require.NoError(t, err)

	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", ReceivedQty: decimal.NewFromInt(-1),
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodeNegativeQty, res.Code)
}

func TestAddLine_SoloEnDraft(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	id := f.receiptWithLine(t, "item-1", 2)
	_, err := f.uc.Transition(ctx, f.actor, id, entity.ReceiptPending, "")
	require.NoError(t, err)

	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", ReceivedQty: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodeInvalidTransition, res.Code)
}

func TestAddLine_RecepcionConOrdenExigeLineaDeOrden(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	require.NoError(t, f.store.Repos().Orders.Create(&entity.PurchaseOrder{
		ID: "po-1", CompanyID: testCompanyID, Supplier: "Proveedor SA", Status: entity.POApproved,
	}))
	id, err := f.uc.CreateReceipt(ctx, f.actor, "po-1", "")
	require.NoError(t, err)

	// Caso 1: sin po_line_id se rechaza suave.
	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", ReceivedQty: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodePOLineRequired, res.Code)

	// Caso 2: con la línea de la orden pasa.
	require.NoError(t, f.store.Repos().Orders.CreateLine(&entity.PurchaseOrderLine{
		ID: "pol-1", PurchaseOrderID: "po-1", ItemID: "item-1", QtyOrdered: decimal.NewFromInt(5),
	}))
	res, err = f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", POLineID: "pol-1", ReceivedQty: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAddLine_ItemBorrado(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	ctx := context.Background()
	f.seedItem(t, "item-1", 0)
	_, err := f.store.Repos().Items.SoftDelete([]string{"item-1"}, testUserID, time.Now())
	require.NoError(t, err)
	id, err := f.uc.CreateReceipt(ctx, f.actor, "", "")
	require.NoError(t, err)

	res, err := f.uc.AddLine(ctx, f.actor, id, receiving.LineInput{
		ItemID: "item-1", ReceivedQty: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, dto.CodeItemDeleted, res.Code)
}

func TestCreateReceipt_OrdenAjena(t *testing.T) {
	f := buildFixture(t, entity.TierBusiness)
	require.NoError(t, f.store.Repos().Orders.Create(&entity.PurchaseOrder{
		ID: "po-ajena", CompanyID: "otra-empresa", Supplier: "X", Status: entity.POApproved,
	}))

	_, err := f.uc.CreateReceipt(context.Background(), f.actor, "po-ajena", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
