package receiving

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

const minReasonLen = 10

// UseCase implementa la máquina de estados de recepciones:
// draft → pending → completed, pending → draft (rechazo), completed → voided.
// El inventario se afecta exactamente una vez, al entrar a completed; void
// revierte ese delta exacto. Repetir una transición hacia el mismo estado
// responde idempotente, nunca reaplica.
type UseCase struct {
	txRunner ports.TxRunner
	engine   *authz.Engine
	resolver *entitlement.Resolver
	receipts repository.ReceiptRepository
	orders   repository.PurchaseOrderRepository
	items    repository.ItemRepository
}

// NewUseCase construye el caso de uso de recepciones.
func NewUseCase(
	txRunner ports.TxRunner,
	engine *authz.Engine,
	resolver *entitlement.Resolver,
	receipts repository.ReceiptRepository,
	orders repository.PurchaseOrderRepository,
	items repository.ItemRepository,
) *UseCase {
	return &UseCase{
		txRunner: txRunner,
		engine:   engine,
		resolver: resolver,
		receipts: receipts,
		orders:   orders,
		items:    items,
	}
}

// TransitionResult resultado suave de una transición de recepción.
type TransitionResult struct {
	Success          bool                   `json:"success"`
	Code             string                 `json:"code,omitempty"`
	Message          string                 `json:"message,omitempty"`
	Status           string                 `json:"status,omitempty"`
	AlreadyCompleted bool                   `json:"already_completed,omitempty"`
	Idempotent       bool                   `json:"idempotent,omitempty"`
	Shortages        []entity.ShortageEntry `json:"shortages,omitempty"`
}

// LineInput alta/edición de línea de recepción.
type LineInput struct {
	ItemID       string
	POLineID     string
	ExpectedQty  decimal.Decimal
	ReceivedQty  decimal.Decimal
	RejectedQty  decimal.Decimal
	RejectReason string
}

// LineResult resultado suave de operaciones sobre líneas.
type LineResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	LineID  string `json:"line_id,omitempty"`
}

// CreateReceipt crea una recepción en draft, opcionalmente ligada a una orden
// de compra de la misma empresa.
func (uc *UseCase) CreateReceipt(ctx context.Context, actor authz.Actor, poID, notes string) (string, error) {
	if actor.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermReceivingEdit)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", domain.ErrForbidden
	}
	if poID != "" {
		po, err := uc.orders.GetByID(poID)
		if err != nil {
			return "", err
		}
		if po == nil || po.CompanyID != actor.CompanyID {
			return "", domain.ErrNotFound
		}
	}

	now := time.Now()
	r := &entity.Receipt{
		ID:              uuid.New().String(),
		CompanyID:       actor.CompanyID,
		PurchaseOrderID: poID,
		Status:          entity.ReceiptDraft,
		Notes:           notes,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Receipts.Create(r); err != nil {
			return err
		}
		return audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionInsert,
			TableName: "receipts",
			RecordID:  r.ID,
			ActorID:   actor.UserID,
			CreatedAt: now,
		}, decimal.Zero)
	})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// AddLine agrega una línea a una recepción en draft.
func (uc *UseCase) AddLine(ctx context.Context, actor authz.Actor, receiptID string, in LineInput) (*LineResult, error) {
	return uc.upsertLine(ctx, actor, receiptID, "", in)
}

// UpdateLine edita una línea existente de una recepción en draft.
func (uc *UseCase) UpdateLine(ctx context.Context, actor authz.Actor, receiptID, lineID string, in LineInput) (*LineResult, error) {
	if lineID == "" {
		return nil, domain.ErrInvalidInput
	}
	return uc.upsertLine(ctx, actor, receiptID, lineID, in)
}

func (uc *UseCase) upsertLine(ctx context.Context, actor authz.Actor, receiptID, lineID string, in LineInput) (*LineResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if receiptID == "" || in.ItemID == "" {
		return nil, domain.ErrInvalidInput
	}
	r, err := uc.ownedReceipt(receiptID, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermReceivingEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &LineResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	// Validaciones de negocio (resultados suaves).
	if in.ExpectedQty.IsNegative() || in.ReceivedQty.IsNegative() || in.RejectedQty.IsNegative() {
		return &LineResult{Code: dto.CodeNegativeQty, Message: "las cantidades no pueden ser negativas"}, nil
	}
	if in.RejectedQty.IsPositive() && len(strings.TrimSpace(in.RejectReason)) < minReasonLen {
		return &LineResult{Code: dto.CodeRejectReasonTooShort, Message: "el motivo de rechazo requiere al menos 10 caracteres"}, nil
	}
	// Enlace a línea de orden: obligatorio si y solo si la recepción tiene orden.
	if r.PurchaseOrderID != "" && in.POLineID == "" {
		return &LineResult{Code: dto.CodePOLineRequired, Message: "la recepción referencia una orden: indicar la línea de orden"}, nil
	}
	if r.PurchaseOrderID == "" && in.POLineID != "" {
		return nil, domain.ErrInvalidInput
	}
	if in.POLineID != "" {
		poLine, err := uc.orders.GetLine(in.POLineID)
		if err != nil {
			return nil, err
		}
		if poLine == nil || poLine.PurchaseOrderID != r.PurchaseOrderID {
			return nil, domain.ErrNotFound
		}
	}
	item, err := uc.items.GetByID(in.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.CompanyID != actor.CompanyID {
		return nil, domain.ErrNotFound
	}
	if item.IsDeleted() {
		return &LineResult{Code: dto.CodeItemDeleted, Message: "el ítem está borrado"}, nil
	}

	now := time.Now()
	var res *LineResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		locked, err := repos.Receipts.GetForUpdate(receiptID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrNotFound
		}
		if locked.Status != entity.ReceiptDraft {
			res = &LineResult{Code: dto.CodeInvalidTransition, Message: "las líneas solo se editan en draft"}
			return nil
		}

		if lineID == "" {
			l := &entity.ReceiptLine{
				ID:           uuid.New().String(),
				ReceiptID:    receiptID,
				ItemID:       in.ItemID,
				POLineID:     in.POLineID,
				ExpectedQty:  in.ExpectedQty,
				ReceivedQty:  in.ReceivedQty,
				RejectedQty:  in.RejectedQty,
				RejectReason: in.RejectReason,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := repos.Receipts.CreateLine(l); err != nil {
				return err
			}
			res = &LineResult{Success: true, LineID: l.ID}
			return nil
		}

		l, err := repos.Receipts.GetLine(lineID)
		if err != nil {
			return err
		}
		if l == nil || l.ReceiptID != receiptID {
			return domain.ErrNotFound
		}
		l.ItemID = in.ItemID
		l.POLineID = in.POLineID
		l.ExpectedQty = in.ExpectedQty
		l.ReceivedQty = in.ReceivedQty
		l.RejectedQty = in.RejectedQty
		l.RejectReason = in.RejectReason
		l.UpdatedAt = now
		if err := repos.Receipts.UpdateLine(l); err != nil {
			return err
		}
		res = &LineResult{Success: true, LineID: l.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Transition ejecuta una transición de estado de la recepción hacia target
// (pending, completed, draft, voided). Las transiciones válidas:
//
//	draft   → pending    submit   (receiving:edit, ≥1 línea)
//	pending → draft      reject   (receiving:approve)
//	pending → completed  complete (receiving:approve)
//	draft   → completed  complete directo (plan sin flujo de aprobación, receiving:edit)
//	completed → voided   void     (receiving:void, motivo ≥10 caracteres)
func (uc *UseCase) Transition(ctx context.Context, actor authz.Actor, receiptID, target, reason string) (*TransitionResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if receiptID == "" {
		return nil, domain.ErrInvalidInput
	}
	switch target {
	case entity.ReceiptPending, entity.ReceiptDraft, entity.ReceiptCompleted, entity.ReceiptVoided:
	default:
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedReceipt(receiptID, actor.CompanyID); err != nil {
		return nil, err
	}

	now := time.Now()
	var res *TransitionResult
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		// Lock del agregado primero, ítems después: orden estable de locks.
		r, err := repos.Receipts.GetForUpdate(receiptID)
		if err != nil {
			return err
		}
		if r == nil {
			return domain.ErrNotFound
		}

		// Releer estado post-lock: el perdedor de una carrera decide sobre el
		// estado ya aplicado, nunca reaplica un delta a ciegas.
		if r.Status == target {
			res = &TransitionResult{Success: true, Status: r.Status, Idempotent: true,
				AlreadyCompleted: target == entity.ReceiptCompleted}
			return nil
		}

		switch target {
		case entity.ReceiptPending:
			res, err = uc.doSubmit(ctx, repos, actor, r, now)
		case entity.ReceiptDraft:
			res, err = uc.doReject(ctx, repos, actor, r, now)
		case entity.ReceiptCompleted:
			res, err = uc.doComplete(ctx, repos, actor, r, now)
		case entity.ReceiptVoided:
			res, err = uc.doVoid(ctx, repos, actor, r, reason, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// doSubmit draft → pending.
func (uc *UseCase) doSubmit(ctx context.Context, repos ports.TxRepos, actor authz.Actor, r *entity.Receipt, now time.Time) (*TransitionResult, error) {
	if r.Status != entity.ReceiptDraft {
		return &TransitionResult{Code: dto.CodeInvalidTransition, Status: r.Status,
			Message: "solo una recepción en draft puede enviarse"}, nil
	}
	allowed, err := uc.engine.Check(ctx, actor, r.CompanyID, entity.PermReceivingEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &TransitionResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	lines, err := repos.Receipts.Lines(r.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &TransitionResult{Code: dto.CodeEmptyReceipt, Message: "la recepción no tiene líneas"}, nil
	}

	old := *r
	r.Status = entity.ReceiptPending
	// submitted_by/at son de escritura única: un reenvío tras rechazo conserva
	// la primera marca.
	if r.SubmittedAt == nil {
		r.SubmittedBy = actor.UserID
		r.SubmittedAt = &now
	}
	r.UpdatedAt = now
	if err := uc.persistTransition(repos, &old, r, actor, "receipt_submitted", lines, decimal.Zero, now); err != nil {
		return nil, err
	}
	return &TransitionResult{Success: true, Status: r.Status}, nil
}

// doReject pending → draft (devuelve a edición; submitted_by/at quedan, son de escritura única).
func (uc *UseCase) doReject(ctx context.Context, repos ports.TxRepos, actor authz.Actor, r *entity.Receipt, now time.Time) (*TransitionResult, error) {
	if r.Status != entity.ReceiptPending {
		return &TransitionResult{Code: dto.CodeInvalidTransition, Status: r.Status,
			Message: "solo una recepción pendiente puede rechazarse"}, nil
	}
	allowed, err := uc.engine.Check(ctx, actor, r.CompanyID, entity.PermReceivingApprove)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &TransitionResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	lines, err := repos.Receipts.Lines(r.ID)
	if err != nil {
		return nil, err
	}

	old := *r
	r.Status = entity.ReceiptDraft
	r.UpdatedAt = now
	if err := uc.persistTransition(repos, &old, r, actor, "receipt_rejected", lines, decimal.Zero, now); err != nil {
		return nil, err
	}
	return &TransitionResult{Success: true, Status: r.Status}, nil
}

// doComplete aplica +received_qty por línea exactamente una vez y congela la fila.
func (uc *UseCase) doComplete(ctx context.Context, repos ports.TxRepos, actor authz.Actor, r *entity.Receipt, now time.Time) (*TransitionResult, error) {
	if r.Status != entity.ReceiptDraft && r.Status != entity.ReceiptPending {
		return &TransitionResult{Code: dto.CodeInvalidTransition, Status: r.Status,
			Message: "la recepción no admite completarse desde su estado actual"}, nil
	}

	// Desde pending siempre exige receiving:approve. Desde draft, los planes
	// sin flujo de aprobación permiten completar directo con receiving:edit.
	canApprove, err := uc.engine.Check(ctx, actor, r.CompanyID, entity.PermReceivingApprove)
	if err != nil {
		return nil, err
	}
	if !canApprove {
		if r.Status != entity.ReceiptDraft {
			return &TransitionResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
		}
		hasFlow, _, err := uc.resolver.HasFeature(ctx, r.CompanyID, entitlement.FeatureApprovalFlow)
		if err != nil {
			return nil, err
		}
		if hasFlow {
			return &TransitionResult{Code: dto.CodePermissionDenied,
				Message: "el plan exige flujo submit/approve"}, nil
		}
		canEdit, err := uc.engine.Check(ctx, actor, r.CompanyID, entity.PermReceivingEdit)
		if err != nil {
			return nil, err
		}
		if !canEdit {
			return &TransitionResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
		}
	}

	lines, err := repos.Receipts.Lines(r.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &TransitionResult{Code: dto.CodeEmptyReceipt, Message: "la recepción no tiene líneas"}, nil
	}

	items, err := uc.lockLineItems(repos, r, lines)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if items[l.ItemID].IsDeleted() {
			return &TransitionResult{Code: dto.CodeItemDeleted,
				Message: "una línea referencia un ítem borrado"}, nil
		}
	}

	// Aplicación exactamente-una-vez: este es el único punto donde una
	// recepción suma inventario.
	total := decimal.Zero
	for _, l := range lines {
		it := items[l.ItemID]
		if err := repos.Items.UpdateQuantity(it.ID, it.Quantity.Add(l.ReceivedQty), now); err != nil {
			return nil, err
		}
		it.Quantity = it.Quantity.Add(l.ReceivedQty)
		total = total.Add(l.ReceivedQty)
	}

	old := *r
	r.Status = entity.ReceiptCompleted
	r.ReceivedBy = actor.UserID
	r.ReceivedAt = &now
	r.UpdatedAt = now
	if err := uc.persistTransition(repos, &old, r, actor, "receipt_completed", lines, total, now); err != nil {
		return nil, err
	}
	return &TransitionResult{Success: true, Status: r.Status}, nil
}

// doVoid completed → voided: revierte el delta exacto de la completación.
func (uc *UseCase) doVoid(ctx context.Context, repos ports.TxRepos, actor authz.Actor, r *entity.Receipt, reason string, now time.Time) (*TransitionResult, error) {
	if r.Status != entity.ReceiptCompleted {
		return &TransitionResult{Code: dto.CodeInvalidTransition, Status: r.Status,
			Message: "solo una recepción completada puede anularse"}, nil
	}
	allowed, err := uc.engine.Check(ctx, actor, r.CompanyID, entity.PermReceivingVoid)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &TransitionResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	if len(strings.TrimSpace(reason)) < minReasonLen {
		return &TransitionResult{Code: dto.CodeVoidReasonTooShort,
			Message: "el motivo de anulación requiere al menos 10 caracteres"}, nil
	}

	lines, err := repos.Receipts.Lines(r.ID)
	if err != nil {
		return nil, err
	}
	items, err := uc.lockLineItems(repos, r, lines)
	if err != nil {
		return nil, err
	}

	// La reversa no puede dejar cantidades negativas: si hubo consumo posterior
	// se reporta el faltante completo, sin mutar nada.
	var shortages []entity.ShortageEntry
	for _, l := range lines {
		it := items[l.ItemID]
		if it.Quantity.LessThan(l.ReceivedQty) {
			shortages = append(shortages, entity.ShortageEntry{
				ItemID:    it.ID,
				Required:  l.ReceivedQty,
				Available: it.Quantity,
				Shortfall: l.ReceivedQty.Sub(it.Quantity),
			})
		}
	}
	if len(shortages) > 0 {
		return &TransitionResult{Code: dto.CodeInsufficientStock, Shortages: shortages,
			Message: "anular dejaría inventario negativo"}, nil
	}

	total := decimal.Zero
	for _, l := range lines {
		it := items[l.ItemID]
		if err := repos.Items.UpdateQuantity(it.ID, it.Quantity.Sub(l.ReceivedQty), now); err != nil {
			return nil, err
		}
		it.Quantity = it.Quantity.Sub(l.ReceivedQty)
		total = total.Add(l.ReceivedQty)
	}

	old := *r
	r.Status = entity.ReceiptVoided
	r.VoidedBy = actor.UserID
	r.VoidedAt = &now
	r.VoidReason = reason
	r.UpdatedAt = now
	if err := uc.persistTransition(repos, &old, r, actor, "receipt_voided", lines, total.Neg(), now); err != nil {
		return nil, err
	}
	return &TransitionResult{Success: true, Status: r.Status}, nil
}

// lockLineItems bloquea los ítems referenciados (ordenados por id) y verifica
// pertenencia de empresa de cada uno. Una fila ajena acá es invariante roto.
func (uc *UseCase) lockLineItems(repos ports.TxRepos, r *entity.Receipt, lines []*entity.ReceiptLine) (map[string]*entity.InventoryItem, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ItemID] {
			seen[l.ItemID] = true
			ids = append(ids, l.ItemID)
		}
	}
	sort.Strings(ids)
	items, err := repos.Items.GetManyForUpdate(ids)
	if err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, domain.ErrNotFound
	}
	byID := make(map[string]*entity.InventoryItem, len(items))
	for _, it := range items {
		if it.CompanyID != r.CompanyID {
			return nil, domain.ErrCompanyMismatch
		}
		byID[it.ID] = it
	}
	return byID, nil
}

// persistTransition aplica la guarda de escritura única, persiste y audita la
// transición con su evento nombrado.
func (uc *UseCase) persistTransition(repos ports.TxRepos, old, updated *entity.Receipt, actor authz.Actor, event string, lines []*entity.ReceiptLine, qtyDelta decimal.Decimal, now time.Time) error {
	if err := guardWriteOnce(old, updated); err != nil {
		return err
	}
	if err := repos.Receipts.Update(updated); err != nil {
		return err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.ReceivedQty)
	}
	meta := entity.EventMeta{
		Event:   event,
		Version: 1,
		Receipt: &entity.ReceiptEventMeta{
			FromStatus: old.Status,
			ToStatus:   updated.Status,
			LineCount:  len(lines),
			TotalQty:   total,
			VoidReason: updated.VoidReason,
		},
	}
	return audit.LogEvent(repos, &entity.AuditLogEntry{
		CompanyID: updated.CompanyID,
		Action:    entity.ActionUpdate,
		TableName: "receipts",
		RecordID:  updated.ID,
		ActorID:   actor.UserID,
		Metadata:  meta.Marshal(),
		CreatedAt: now,
	}, qtyDelta)
}

// ReceiptDetail recepción con sus líneas.
type ReceiptDetail struct {
	Receipt *entity.Receipt       `json:"receipt"`
	Lines   []*entity.ReceiptLine `json:"lines"`
}

// GetReceipt devuelve la recepción con sus líneas. Cualquier miembro puede leer.
func (uc *UseCase) GetReceipt(ctx context.Context, actor authz.Actor, receiptID string) (*ReceiptDetail, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	r, err := uc.ownedReceipt(receiptID, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	lines, err := uc.receipts.Lines(receiptID)
	if err != nil {
		return nil, err
	}
	return &ReceiptDetail{Receipt: r, Lines: lines}, nil
}

// ListReceipts lista las recepciones de la empresa del actor.
func (uc *UseCase) ListReceipts(ctx context.Context, actor authz.Actor, limit, offset int) ([]*entity.Receipt, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return uc.receipts.ListByCompany(actor.CompanyID, limit, offset)
}

// ownedReceipt confirma existencia y pertenencia (lectura sin lock, pre-tx).
func (uc *UseCase) ownedReceipt(receiptID, companyID string) (*entity.Receipt, error) {
	r, err := uc.receipts.GetByID(receiptID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return r, nil
}
