package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	dominv "github.com/jhoicas/Procura-api/internal/domain/inventory"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

// UseCase administra ítems de inventario: alta con dedupe por nombre, edición
// directa (uno de los cinco caminos que mutan quantity), borrado lógico simple
// y masivo, restore y purga física en entornos sandbox/test.
type UseCase struct {
	txRunner  ports.TxRunner
	engine    *authz.Engine
	items     repository.ItemRepository
	companies repository.CompanyRepository
}

// NewUseCase construye el caso de uso de inventario.
func NewUseCase(txRunner ports.TxRunner, engine *authz.Engine, items repository.ItemRepository, companies repository.CompanyRepository) *UseCase {
	return &UseCase{txRunner: txRunner, engine: engine, items: items, companies: companies}
}

// CreateItemInput alta de ítem.
type CreateItemInput struct {
	SKU         string
	Name        string
	Description string
	Quantity    decimal.Decimal
	UnitMeasure string
}

// UpdateItemInput edición directa. Los punteros nil no tocan el campo.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Quantity    *decimal.Decimal
	UnitMeasure *string
}

// ItemResult resultado suave de operaciones sobre un ítem.
type ItemResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
}

// BulkDeleteResult resultado del borrado masivo.
type BulkDeleteResult struct {
	Success      bool   `json:"success"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	DeletedCount int    `json:"deleted_count"`
}

// PurgeResult resultado de la purga física de tombstones.
type PurgeResult struct {
	Success     bool `json:"success"`
	PurgedCount int  `json:"purged_count"`
}

// CreateItem da de alta un ítem. Dedupe por nombre normalizado dentro de la
// empresa (ErrDuplicate); cantidad inicial no negativa.
func (uc *UseCase) CreateItem(ctx context.Context, actor authz.Actor, in CreateItemInput) (*ItemResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if in.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermInventoryEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ItemResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	if in.Quantity.IsNegative() {
		return &ItemResult{Code: dto.CodeNegativeQty, Message: "la cantidad inicial no puede ser negativa"}, nil
	}

	normalized := dominv.NormalizeName(in.Name)
	existing, err := uc.items.GetByNormalizedName(actor.CompanyID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	now := time.Now()
	item := &entity.InventoryItem{
		ID:             uuid.New().String(),
		CompanyID:      actor.CompanyID,
		SKU:            in.SKU,
		Name:           in.Name,
		NormalizedName: normalized,
		Description:    in.Description,
		Quantity:       in.Quantity,
		UnitMeasure:    in.UnitMeasure,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Items.Create(item); err != nil {
			return err
		}
		return audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionInsert,
			TableName: "inventory_items",
			RecordID:  item.ID,
			ActorID:   actor.UserID,
			NewValues: audit.SnapshotItem(item),
			CreatedAt: now,
		}, item.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return &ItemResult{Success: true, ItemID: item.ID}, nil
}

// UpdateItem edita un ítem (camino "edición directa" del ledger). La cantidad
// resultante nunca puede quedar negativa; el delta queda en auditoría/métricas.
func (uc *UseCase) UpdateItem(ctx context.Context, actor authz.Actor, itemID string, in UpdateItemInput) (*ItemResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := uc.ownedItem(itemID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermInventoryEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ItemResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	if in.Quantity != nil && in.Quantity.IsNegative() {
		return &ItemResult{Code: dto.CodeNegativeQty, Message: "la cantidad no puede ser negativa"}, nil
	}

	now := time.Now()
	var res *ItemResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		item, err := repos.Items.GetForUpdate(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.CompanyID != actor.CompanyID {
			return domain.ErrNotFound
		}
		if item.IsDeleted() {
			res = &ItemResult{Code: dto.CodeItemDeleted, Message: "el ítem está borrado; restaurar primero"}
			return nil
		}

		oldSnap := audit.SnapshotItem(item)
		before := item.Quantity
		if in.Name != nil && *in.Name != item.Name {
			normalized := dominv.NormalizeName(*in.Name)
			dup, err := repos.Items.GetByNormalizedName(actor.CompanyID, normalized)
			if err != nil {
				return err
			}
			if dup != nil && dup.ID != item.ID {
				return domain.ErrDuplicate
			}
			item.Name = *in.Name
			item.NormalizedName = normalized
		}
		if in.Description != nil {
			item.Description = *in.Description
		}
		if in.UnitMeasure != nil {
			item.UnitMeasure = *in.UnitMeasure
		}
		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		item.UpdatedAt = now
		if err := repos.Items.Update(item); err != nil {
			return err
		}

		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionUpdate,
			TableName: "inventory_items",
			RecordID:  item.ID,
			ActorID:   actor.UserID,
			OldValues: oldSnap,
			NewValues: audit.SnapshotItem(item),
			CreatedAt: now,
		}, item.Quantity.Sub(before)); err != nil {
			return err
		}
		res = &ItemResult{Success: true, ItemID: item.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SoftDeleteItem tombstonea un ítem (recuperable vía restore o undo).
func (uc *UseCase) SoftDeleteItem(ctx context.Context, actor authz.Actor, itemID string) (*ItemResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := uc.ownedItem(itemID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermInventoryDelete)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ItemResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	now := time.Now()
	var res *ItemResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		item, err := repos.Items.GetForUpdate(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.CompanyID != actor.CompanyID {
			return domain.ErrNotFound
		}
		if item.IsDeleted() {
			res = &ItemResult{Code: dto.CodeItemDeleted, Message: "el ítem ya está borrado"}
			return nil
		}

		oldSnap := audit.SnapshotItem(item)
		if _, err := repos.Items.SoftDelete([]string{item.ID}, actor.UserID, now); err != nil {
			return err
		}
		// La cantidad al momento del borrado queda capturada en el snapshot
		// (es lo que el restore/undo devuelve) y en métricas como salida.
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionDelete,
			TableName: "inventory_items",
			RecordID:  item.ID,
			ActorID:   actor.UserID,
			OldValues: oldSnap,
			CreatedAt: now,
		}, item.Quantity.Neg()); err != nil {
			return err
		}
		res = &ItemResult{Success: true, ItemID: item.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SoftDeleteItems tombstonea un lote de ítems en una sola transacción. Un id
// inexistente o de otra empresa aborta todo (NotFound, nunca éxito parcial);
// los ya borrados se saltean sin contarse.
func (uc *UseCase) SoftDeleteItems(ctx context.Context, actor authz.Actor, itemIDs []string) (*BulkDeleteResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if len(itemIDs) == 0 {
		return nil, domain.ErrInvalidInput
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermInventoryDelete)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &BulkDeleteResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	now := time.Now()
	var res *BulkDeleteResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		// GetManyForUpdate ordena por id antes de bloquear: dos bulk-deletes
		// concurrentes con conjuntos solapados se serializan sin deadlock.
		items, err := repos.Items.GetManyForUpdate(itemIDs)
		if err != nil {
			return err
		}
		if len(items) != len(dedupeIDs(itemIDs)) {
			return domain.ErrNotFound
		}
		var toDelete []string
		snaps := make(map[string]*entity.InventoryItem, len(items))
		for _, it := range items {
			if it.CompanyID != actor.CompanyID {
				return domain.ErrNotFound
			}
			if it.IsDeleted() {
				continue
			}
			toDelete = append(toDelete, it.ID)
			snaps[it.ID] = it
		}
		if len(toDelete) == 0 {
			res = &BulkDeleteResult{Success: true, DeletedCount: 0}
			return nil
		}
		count, err := repos.Items.SoftDelete(toDelete, actor.UserID, now)
		if err != nil {
			return err
		}
		// Una entrada BULK_DELETE por fila: cada una es reversible por separado
		// con undo_action.
		for _, id := range toDelete {
			it := snaps[id]
			if err := audit.LogEvent(repos, &entity.AuditLogEntry{
				CompanyID: actor.CompanyID,
				Action:    entity.ActionBulkDelete,
				TableName: "inventory_items",
				RecordID:  id,
				ActorID:   actor.UserID,
				OldValues: audit.SnapshotItem(it),
				CreatedAt: now,
			}, it.Quantity.Neg()); err != nil {
				return err
			}
		}
		res = &BulkDeleteResult{Success: true, DeletedCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RestoreItem revierte un tombstone.
func (uc *UseCase) RestoreItem(ctx context.Context, actor authz.Actor, itemID string) (*ItemResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := uc.ownedItem(itemID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermInventoryRestore)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &ItemResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	now := time.Now()
	var res *ItemResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		item, err := repos.Items.GetForUpdate(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.CompanyID != actor.CompanyID {
			return domain.ErrNotFound
		}
		if !item.IsDeleted() {
			res = &ItemResult{Code: dto.CodeInvalidTransition, Message: "el ítem no está borrado"}
			return nil
		}

		oldSnap := audit.SnapshotItem(item)
		if err := repos.Items.Restore(item.ID, now); err != nil {
			return err
		}
		item.DeletedAt = nil
		item.DeletedBy = ""
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionRestore,
			TableName: "inventory_items",
			RecordID:  item.ID,
			ActorID:   actor.UserID,
			OldValues: oldSnap,
			NewValues: audit.SnapshotItem(item),
			CreatedAt: now,
		}, item.Quantity); err != nil {
			return err
		}
		res = &ItemResult{Success: true, ItemID: item.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PurgeDeleted elimina físicamente los tombstones de la empresa. Solo en
// entornos sandbox/test (production rechaza con ErrForbidden) y solo para
// super-usuarios: es la única operación que destruye datos de verdad.
func (uc *UseCase) PurgeDeleted(ctx context.Context, actor authz.Actor) (*PurgeResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if !actor.SuperUser {
		return nil, domain.ErrForbidden
	}
	company, err := uc.companies.GetByID(actor.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if !company.IsDestructiveAllowed() {
		return nil, domain.ErrForbidden
	}

	now := time.Now()
	var res *PurgeResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		count, err := repos.Items.PurgeDeleted(actor.CompanyID)
		if err != nil {
			return err
		}
		meta := entity.EventMeta{
			Event:   "items_purged",
			Version: 1,
			Purge:   &entity.PurgeEventMeta{PurgedCount: count},
		}
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionPermanentPurge,
			TableName: "inventory_items",
			RecordID:  actor.CompanyID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, decimal.Zero); err != nil {
			return err
		}
		res = &PurgeResult{Success: true, PurgedCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetItem devuelve un ítem de la empresa del actor. Cualquier miembro puede
// leer; ajeno o inexistente devuelven el mismo ErrNotFound.
func (uc *UseCase) GetItem(ctx context.Context, actor authz.Actor, itemID string) (*entity.InventoryItem, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	item, err := uc.items.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.CompanyID != actor.CompanyID {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// ListItems lista los ítems de la empresa del actor.
func (uc *UseCase) ListItems(ctx context.Context, actor authz.Actor, includeDeleted bool, limit, offset int) ([]*entity.InventoryItem, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return uc.items.ListByCompany(actor.CompanyID, includeDeleted, limit, offset)
}

// ownedItem confirma existencia y pertenencia antes del check de permiso.
// Ajeno o inexistente devuelven el mismo ErrNotFound: un tenant no puede
// distinguir si el id existe en otra empresa.
func (uc *UseCase) ownedItem(itemID, companyID string) error {
	item, err := uc.items.GetByID(itemID)
	if err != nil {
		return err
	}
	if item == nil || item.CompanyID != companyID {
		return domain.ErrNotFound
	}
	return nil
}

// dedupeIDs colapsa ids repetidos preservando el orden.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
