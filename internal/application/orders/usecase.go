package orders

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

// UseCase implementa el guardián de aprobación de órdenes de compra: aprobar
// exige que lo pedido no exceda la demanda neta computada (reservas de
// trabajos − on_hand − suministro entrante), salvo intención de política
// explícita por ítem, que pasa pero queda auditada aparte. Nunca silenciosa.
type UseCase struct {
	txRunner ports.TxRunner
	engine   *authz.Engine
	orders   repository.PurchaseOrderRepository
	items    repository.ItemRepository
}

// NewUseCase construye el caso de uso de órdenes de compra.
func NewUseCase(txRunner ports.TxRunner, engine *authz.Engine, orders repository.PurchaseOrderRepository, items repository.ItemRepository) *UseCase {
	return &UseCase{txRunner: txRunner, engine: engine, orders: orders, items: items}
}

// NetDemandViolation un ítem pedido por encima de la demanda neta.
type NetDemandViolation struct {
	ItemID      string          `json:"item_id"`
	Ordered     decimal.Decimal `json:"ordered"`
	NetRequired decimal.Decimal `json:"net_required"`
	Excess      decimal.Decimal `json:"excess"`
}

// ApproveResult resultado suave de la aprobación.
type ApproveResult struct {
	Success      bool                 `json:"success"`
	Code         string               `json:"code,omitempty"`
	Message      string               `json:"message,omitempty"`
	Status       string               `json:"status,omitempty"`
	Idempotent   bool                 `json:"idempotent,omitempty"`
	PolicyIntent []string             `json:"policy_intent,omitempty"`
	Violations   []NetDemandViolation `json:"violations,omitempty"`
}

// CreatePO crea una orden de compra en draft.
func (uc *UseCase) CreatePO(ctx context.Context, actor authz.Actor, supplier, notes string) (string, error) {
	if actor.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermOrdersEdit)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", domain.ErrForbidden
	}

	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:        uuid.New().String(),
		CompanyID: actor.CompanyID,
		Supplier:  supplier,
		Status:    entity.PODraft,
		Notes:     notes,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Orders.Create(po); err != nil {
			return err
		}
		return audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionInsert,
			TableName: "purchase_orders",
			RecordID:  po.ID,
			ActorID:   actor.UserID,
			CreatedAt: now,
		}, decimal.Zero)
	})
	if err != nil {
		return "", err
	}
	return po.ID, nil
}

// LineResult es el resultado de agregar una línea a una orden.
type LineResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	LineID  string `json:"line_id,omitempty"`
}

// AddLine agrega una línea (cantidad pedida por ítem) a una orden en draft.
func (uc *UseCase) AddLine(ctx context.Context, actor authz.Actor, poID, itemID string, qty decimal.Decimal) (*LineResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if poID == "" || itemID == "" || !qty.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedPO(poID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermOrdersEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrForbidden
	}
	item, err := uc.items.GetByID(itemID)
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
	line := &entity.PurchaseOrderLine{
		ID:              uuid.New().String(),
		PurchaseOrderID: poID,
		ItemID:          itemID,
		QtyOrdered:      qty,
		CreatedAt:       now,
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		po, err := repos.Orders.GetForUpdate(poID)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrNotFound
		}
		if po.Status != entity.PODraft {
			return domain.ErrConflict
		}
		return repos.Orders.CreateLine(line)
	})
	if err != nil {
		return nil, err
	}
	return &LineResult{Success: true, LineID: line.ID}, nil
}

// Approve aprueba (o envía) una orden: draft → approved|submitted.
// Idempotente si ya está en submitted/approved. Por cada ítem de las líneas:
//
//	job_demand      = max(reservado por trabajos aprobados − on_hand, 0)
//	incoming_supply = Σ qty_ordered en otras órdenes submitted/approved/partial
//	net_required    = max(job_demand − incoming_supply, 0)
//
// Pedir más que net_required sin el ítem en policyIntent rechaza con el listado
// completo de violaciones; los cubiertos por intención pasan y se auditan en un
// evento policy_intent separado.
func (uc *UseCase) Approve(ctx context.Context, actor authz.Actor, poID, targetStatus string, policyIntent []string) (*ApproveResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if poID == "" {
		return nil, domain.ErrInvalidInput
	}
	if targetStatus != entity.POApproved && targetStatus != entity.POSubmitted {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedPO(poID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermOrdersEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ApproveResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	intent := make(map[string]bool, len(policyIntent))
	for _, id := range policyIntent {
		intent[id] = true
	}

	now := time.Now()
	var res *ApproveResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		po, err := repos.Orders.GetForUpdate(poID)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrNotFound
		}
		if po.Status == entity.POApproved || po.Status == entity.POSubmitted {
			res = &ApproveResult{Success: true, Status: po.Status, Idempotent: true}
			return nil
		}
		if po.Status != entity.PODraft {
			res = &ApproveResult{Code: dto.CodeInvalidTransition, Status: po.Status,
				Message: "la orden no admite aprobación desde su estado actual"}
			return nil
		}

		lines, err := repos.Orders.Lines(po.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			res = &ApproveResult{Code: dto.CodeInvalidTransition, Message: "la orden no tiene líneas"}
			return nil
		}

		// Cantidad pedida por ítem (varias líneas del mismo ítem suman).
		ordered := make(map[string]decimal.Decimal, len(lines))
		var ids []string
		for _, l := range lines {
			if _, ok := ordered[l.ItemID]; !ok {
				ids = append(ids, l.ItemID)
			}
			ordered[l.ItemID] = ordered[l.ItemID].Add(l.QtyOrdered)
		}
		sort.Strings(ids)

		items, err := repos.Items.GetManyForUpdate(ids)
		if err != nil {
			return err
		}
		if len(items) != len(ids) {
			return domain.ErrNotFound
		}
		onHand := make(map[string]decimal.Decimal, len(items))
		for _, it := range items {
			if it.CompanyID != po.CompanyID {
				return domain.ErrNotFound
			}
			onHand[it.ID] = it.Quantity
		}

		reserved, err := repos.Jobs.ReservedByOthers(po.CompanyID, ids, "")
		if err != nil {
			return err
		}
		incoming, err := repos.Orders.IncomingSupply(po.CompanyID, ids, po.ID)
		if err != nil {
			return err
		}

		var violations []NetDemandViolation
		var intentUsed []string
		for _, itemID := range ids {
			jobDemand := decimal.Max(reserved[itemID].Sub(onHand[itemID]), decimal.Zero)
			netRequired := decimal.Max(jobDemand.Sub(incoming[itemID]), decimal.Zero)
			if ordered[itemID].GreaterThan(netRequired) {
				if intent[itemID] {
					intentUsed = append(intentUsed, itemID)
					continue
				}
				violations = append(violations, NetDemandViolation{
					ItemID:      itemID,
					Ordered:     ordered[itemID],
					NetRequired: netRequired,
					Excess:      ordered[itemID].Sub(netRequired),
				})
			}
		}
		if len(violations) > 0 {
			res = &ApproveResult{Code: dto.CodeNetDemandExceeded, Status: po.Status,
				Violations: violations,
				Message:    "lo pedido excede la demanda neta; requiere policy intent"}
			return nil
		}

		old := po.Status
		po.Status = targetStatus
		po.ApprovedBy = actor.UserID
		po.ApprovedAt = &now
		po.UpdatedAt = now
		if err := repos.Orders.Update(po); err != nil {
			return err
		}

		meta := entity.EventMeta{
			Event:   "po_approved",
			Version: 1,
			Order:   &entity.OrderEventMeta{FromStatus: old, ToStatus: targetStatus},
		}
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: po.CompanyID,
			Action:    entity.ActionUpdate,
			TableName: "purchase_orders",
			RecordID:  po.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, decimal.Zero); err != nil {
			return err
		}
		// El uso de policy intent jamás es silencioso: evento propio.
		if len(intentUsed) > 0 {
			intentMeta := entity.EventMeta{
				Event:   "policy_intent",
				Version: 1,
				Order: &entity.OrderEventMeta{
					FromStatus:   old,
					ToStatus:     targetStatus,
					PolicyIntent: intentUsed,
				},
			}
			if err := audit.LogEvent(repos, &entity.AuditLogEntry{
				CompanyID: po.CompanyID,
				Action:    entity.ActionUpdate,
				TableName: "purchase_orders",
				RecordID:  po.ID,
				ActorID:   actor.UserID,
				Metadata:  intentMeta.Marshal(),
				CreatedAt: now,
			}, decimal.Zero); err != nil {
				return err
			}
		}
		res = &ApproveResult{Success: true, Status: po.Status, PolicyIntent: intentUsed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PODetail orden de compra con sus líneas.
type PODetail struct {
	Order *entity.PurchaseOrder       `json:"order"`
	Lines []*entity.PurchaseOrderLine `json:"lines"`
}

// GetPO devuelve la orden con sus líneas. Cualquier miembro puede leer.
func (uc *UseCase) GetPO(ctx context.Context, actor authz.Actor, poID string) (*PODetail, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	po, err := uc.ownedPO(poID, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	lines, err := uc.orders.Lines(poID)
	if err != nil {
		return nil, err
	}
	return &PODetail{Order: po, Lines: lines}, nil
}

// ListPOs lista las órdenes de la empresa del actor.
func (uc *UseCase) ListPOs(ctx context.Context, actor authz.Actor, limit, offset int) ([]*entity.PurchaseOrder, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return uc.orders.ListByCompany(actor.CompanyID, limit, offset)
}

// ownedPO confirma existencia y pertenencia (lectura sin lock, pre-tx).
func (uc *UseCase) ownedPO(poID, companyID string) (*entity.PurchaseOrder, error) {
	po, err := uc.orders.GetByID(poID)
	if err != nil {
		return nil, err
	}
	if po == nil || po.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return po, nil
}
