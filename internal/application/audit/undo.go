package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// undoPermission mapea tipo de acción → permiso requerido para revertirla.
// Los tipos ausentes no son reversibles.
var undoPermission = map[string]string{
	entity.ActionDelete:     entity.PermInventoryRestore,
	entity.ActionBulkDelete: entity.PermInventoryRestore,
	entity.ActionUpdate:     entity.PermInventoryEdit,
	entity.ActionInsert:     entity.PermInventoryDelete,
}

// UndoResult resultado suave de undo_action.
type UndoResult struct {
	Success         bool   `json:"success"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	RollbackAuditID string `json:"rollback_audit_id,omitempty"`
}

// UndoUseCase revierte selectivamente entradas de auditoría sobre ítems de
// inventario: restaura el snapshot old_values con alcance de empresa, marca la
// entrada original como revertida exactamente una vez y escribe una entrada
// ROLLBACK nueva que la referencia.
type UndoUseCase struct {
	txRunner ports.TxRunner
	engine   *authz.Engine
	resolver *entitlement.Resolver
}

// NewUndoUseCase construye el caso de uso de undo.
func NewUndoUseCase(txRunner ports.TxRunner, engine *authz.Engine, resolver *entitlement.Resolver) *UndoUseCase {
	return &UndoUseCase{txRunner: txRunner, engine: engine, resolver: resolver}
}

// Undo revierte la entrada auditID. Reglas:
//   - El log de auditoría es función enterprise: gate duro de plan primero.
//   - Permiso según el tipo original (DELETE/BULK_DELETE→restore, UPDATE→edit,
//     INSERT→delete); otros tipos → NOT_UNDOABLE suave.
//   - Reintento sobre una entrada ya revertida → ALREADY_ROLLED_BACK suave, no error.
//   - Undo de INSERT tombstonea la fila creada, nunca la borra físicamente.
func (uc *UndoUseCase) Undo(ctx context.Context, actor authz.Actor, auditID, reason string) (*UndoResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if auditID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.resolver.RequireFeature(ctx, actor.CompanyID, entitlement.FeatureAuditLog); err != nil {
		return nil, err
	}

	now := time.Now()
	var res *UndoResult
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		// Lock de la entrada: serializa undos concurrentes del mismo id.
		e, err := repos.Audit.GetForUpdate(auditID)
		if err != nil {
			return err
		}
		// Entrada inexistente o de otra empresa: indistinguibles para el caller.
		if e == nil || e.CompanyID != actor.CompanyID {
			return domain.ErrNotFound
		}

		permKey, undoable := undoPermission[e.Action]
		if !undoable || e.TableName != "inventory_items" {
			res = &UndoResult{Code: dto.CodeNotUndoable, Message: "la acción no es reversible"}
			return nil
		}
		allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, permKey)
		if err != nil {
			return err
		}
		if !allowed {
			res = &UndoResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente para revertir"}
			return nil
		}
		if e.IsRolledBack() {
			res = &UndoResult{Code: dto.CodeAlreadyRolledBack, Message: "la entrada ya fue revertida"}
			return nil
		}

		qtyDelta, err := uc.applyInverse(repos, actor, e, now)
		if err != nil {
			return err
		}

		applied, err := repos.Audit.MarkRolledBack(e.ID, actor.UserID, reason, now)
		if err != nil {
			return err
		}
		if !applied {
			// Carrera perdida pese al lock: responder idempotente, no reaplicar.
			res = &UndoResult{Code: dto.CodeAlreadyRolledBack, Message: "la entrada ya fue revertida"}
			return domain.ErrConflict // aborta para no dejar la mutación inversa
		}

		meta := entity.EventMeta{
			Event:   "action_rolled_back",
			Version: 1,
			Rollback: &entity.RollbackEventMeta{
				OriginalAuditID: e.ID,
				OriginalAction:  e.Action,
				Reason:          reason,
			},
		}
		rollbackEntry := &entity.AuditLogEntry{
			ID:         uuid.New().String(),
			CompanyID:  e.CompanyID,
			Action:     entity.ActionRollback,
			TableName:  e.TableName,
			RecordID:   e.RecordID,
			ActorID:    actor.UserID,
			OldValues:  e.NewValues,
			NewValues:  e.OldValues,
			Metadata:   meta.Marshal(),
			CreatedAt:  now,
			RollbackOf: e.ID,
		}
		if err := LogEvent(repos, rollbackEntry, qtyDelta); err != nil {
			return err
		}
		res = &UndoResult{Success: true, RollbackAuditID: rollbackEntry.ID}
		return nil
	})
	if err != nil {
		if res != nil && res.Code == dto.CodeAlreadyRolledBack {
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// applyInverse aplica la mutación inversa usando el snapshot almacenado.
// Devuelve el delta de cantidad aplicado (para métricas).
func (uc *UndoUseCase) applyInverse(repos ports.TxRepos, actor authz.Actor, e *entity.AuditLogEntry, now time.Time) (decimal.Decimal, error) {
	item, err := repos.Items.GetForUpdate(e.RecordID)
	if err != nil {
		return decimal.Zero, err
	}
	if item == nil {
		return decimal.Zero, domain.ErrNotFound
	}
	// El alcance de empresa ya se validó contra la entrada; esto solo puede
	// fallar si los datos están corruptos o alguien cruzó tenants.
	if item.CompanyID != actor.CompanyID {
		return decimal.Zero, domain.ErrCompanyMismatch
	}

	before := item.Quantity
	switch e.Action {
	case entity.ActionDelete, entity.ActionBulkDelete:
		// Restaurar el tombstone y los valores previos al borrado.
		if err := ApplySnapshot(item, e.OldValues); err != nil {
			return decimal.Zero, err
		}
		item.DeletedAt = nil
		item.DeletedBy = ""
	case entity.ActionUpdate:
		if err := ApplySnapshot(item, e.OldValues); err != nil {
			return decimal.Zero, err
		}
	case entity.ActionInsert:
		// Deshacer una creación = borrado lógico, recuperable.
		item.DeletedAt = &now
		item.DeletedBy = actor.UserID
	}
	item.UpdatedAt = now
	if err := repos.Items.Update(item); err != nil {
		return decimal.Zero, err
	}
	return item.Quantity.Sub(before), nil
}
