package jobs

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

// UseCase implementa la máquina de estados de trabajos:
// draft/quoted → approved → in_progress → completed; todo estado previo a
// completed puede anularse. El BOM planificado no toca inventario: la
// aprobación crea una reserva blanda (vista computada) y solo la completación
// descuenta on-hand, usando consumos reales y no lo planificado.
type UseCase struct {
	txRunner ports.TxRunner
	engine   *authz.Engine
	jobs     repository.JobRepository
}

// NewUseCase construye el caso de uso de trabajos.
func NewUseCase(txRunner ports.TxRunner, engine *authz.Engine, jobs repository.JobRepository) *UseCase {
	return &UseCase{txRunner: txRunner, engine: engine, jobs: jobs}
}

// ActualInput consumo real de un ítem al completar.
type ActualInput struct {
	ItemID  string
	QtyUsed decimal.Decimal
}

// JobResult resultado suave de las operaciones de trabajo.
type JobResult struct {
	Success             bool                   `json:"success"`
	Code                string                 `json:"code,omitempty"`
	Message             string                 `json:"message,omitempty"`
	Status              string                 `json:"status,omitempty"`
	Idempotent          bool                   `json:"idempotent,omitempty"`
	Shortages           []entity.ShortageEntry `json:"shortages,omitempty"`
	UnplannedItemsAdded []string               `json:"unplanned_items_added,omitempty"`
}

// CreateJob crea un trabajo en draft.
func (uc *UseCase) CreateJob(ctx context.Context, actor authz.Actor, name, notes string) (string, error) {
	if actor.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	if name == "" {
		return "", domain.ErrInvalidInput
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermJobsEdit)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", domain.ErrForbidden
	}

	now := time.Now()
	j := &entity.Job{
		ID:        uuid.New().String(),
		CompanyID: actor.CompanyID,
		Name:      name,
		Notes:     notes,
		Status:    entity.JobDraft,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Jobs.Create(j); err != nil {
			return err
		}
		return audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: actor.CompanyID,
			Action:    entity.ActionInsert,
			TableName: "jobs",
			RecordID:  j.ID,
			ActorID:   actor.UserID,
			CreatedAt: now,
		}, decimal.Zero)
	})
	if err != nil {
		return "", err
	}
	return j.ID, nil
}

// SetBOMLine fija la cantidad planificada de un ítem en el BOM (upsert por
// job×item). Solo en draft/quoted. Cero impacto en inventario, por diseño de la
// separación reserva/consumo.
func (uc *UseCase) SetBOMLine(ctx context.Context, actor authz.Actor, jobID, itemID string, qtyPlanned decimal.Decimal) (*JobResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if jobID == "" || itemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedJob(jobID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermJobsEdit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &JobResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}
	if !qtyPlanned.IsPositive() {
		return &JobResult{Code: dto.CodeNegativeQty, Message: "qty_planned debe ser positiva"}, nil
	}

	now := time.Now()
	var res *JobResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		j, err := repos.Jobs.GetForUpdate(jobID)
		if err != nil {
			return err
		}
		if j == nil {
			return domain.ErrNotFound
		}
		if j.Status != entity.JobDraft && j.Status != entity.JobQuoted {
			res = &JobResult{Code: dto.CodeInvalidTransition, Status: j.Status,
				Message: "el BOM solo se edita en draft o quoted"}
			return nil
		}
		item, err := repos.Items.GetByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.CompanyID != actor.CompanyID {
			return domain.ErrNotFound
		}
		if item.IsDeleted() {
			res = &JobResult{Code: dto.CodeItemDeleted, Message: "el ítem está borrado"}
			return nil
		}
		if err := repos.Jobs.UpsertBOMLine(&entity.JobBOMLine{
			JobID:      jobID,
			ItemID:     itemID,
			QtyPlanned: qtyPlanned,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		res = &JobResult{Success: true, Status: j.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Quote draft → quoted.
func (uc *UseCase) Quote(ctx context.Context, actor authz.Actor, jobID string) (*JobResult, error) {
	return uc.simpleTransition(ctx, actor, jobID, entity.PermJobsEdit,
		[]string{entity.JobDraft}, entity.JobQuoted, "job_quoted")
}

// Start approved → in_progress.
func (uc *UseCase) Start(ctx context.Context, actor authz.Actor, jobID string) (*JobResult, error) {
	return uc.simpleTransition(ctx, actor, jobID, entity.PermJobsEdit,
		[]string{entity.JobApproved}, entity.JobInProgress, "job_started")
}

// Void anula un trabajo no completado. Las reservas blandas desaparecen solas:
// la vista de reserva solo cuenta approved/in_progress.
func (uc *UseCase) Void(ctx context.Context, actor authz.Actor, jobID string) (*JobResult, error) {
	return uc.simpleTransition(ctx, actor, jobID, entity.PermJobsDelete,
		[]string{entity.JobDraft, entity.JobQuoted, entity.JobApproved, entity.JobInProgress},
		entity.JobVoided, "job_voided")
}

// Approve aprueba un trabajo (reserva blanda). Bloquea los ítems del BOM,
// calcula disponible = on_hand − reservado por otros trabajos approved/
// in_progress, y:
//   - si el caller afirmó wasFulfillable=true y ahora hay faltantes, rechaza
//     con INVENTORY_CHANGED (el inventario cambió entre cotización y aprobación);
//   - si no, aprueba aunque haya faltantes: son informativos, la reserva es
//     optimista y no un bloqueo duro.
//
// Ningún on_hand cambia acá.
func (uc *UseCase) Approve(ctx context.Context, actor authz.Actor, jobID string, wasFulfillable *bool) (*JobResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if jobID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedJob(jobID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermJobsDelete)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &JobResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	now := time.Now()
	var res *JobResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		j, err := repos.Jobs.GetForUpdate(jobID)
		if err != nil {
			return err
		}
		if j == nil {
			return domain.ErrNotFound
		}
		// Ya aprobado: idempotente, sin re-bloquear ítems ni recalcular reservas.
		if j.Status == entity.JobApproved || j.Status == entity.JobInProgress {
			res = &JobResult{Success: true, Status: j.Status, Idempotent: true}
			return nil
		}
		if j.Status != entity.JobDraft && j.Status != entity.JobQuoted {
			res = &JobResult{Code: dto.CodeInvalidTransition, Status: j.Status,
				Message: "el trabajo no admite aprobación desde su estado actual"}
			return nil
		}

		bom, err := repos.Jobs.BOMLines(jobID)
		if err != nil {
			return err
		}
		items, err := lockJobItems(repos, j, itemIDsOf(bom, nil))
		if err != nil {
			return err
		}
		if deleted := firstDeleted(items); deleted != "" {
			res = &JobResult{Code: dto.CodeItemDeleted, Status: j.Status,
				Message: "el BOM referencia un ítem borrado"}
			return nil
		}
		reserved, err := repos.Jobs.ReservedByOthers(j.CompanyID, itemIDsOf(bom, nil), j.ID)
		if err != nil {
			return err
		}

		var shortages []entity.ShortageEntry
		for _, l := range bom {
			it := items[l.ItemID]
			available := it.Quantity.Sub(reserved[l.ItemID])
			if l.QtyPlanned.GreaterThan(available) {
				shortages = append(shortages, entity.ShortageEntry{
					ItemID:    l.ItemID,
					Required:  l.QtyPlanned,
					Available: available,
					Shortfall: l.QtyPlanned.Sub(available),
				})
			}
		}
		if wasFulfillable != nil && *wasFulfillable && len(shortages) > 0 {
			// Regresión: era cumplible al cotizar y dejó de serlo.
			res = &JobResult{Code: dto.CodeInventoryChanged, Status: j.Status, Shortages: shortages,
				Message: "el inventario cambió durante la aprobación"}
			return nil
		}

		old := j.Status
		j.Status = entity.JobApproved
		j.ApprovedBy = actor.UserID
		j.ApprovedAt = &now
		j.UpdatedAt = now
		if err := repos.Jobs.Update(j); err != nil {
			return err
		}
		meta := entity.EventMeta{
			Event:   "job_approved",
			Version: 1,
			Job:     &entity.JobEventMeta{FromStatus: old, ToStatus: j.Status, Shortages: shortages},
		}
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: j.CompanyID,
			Action:    entity.ActionUpdate,
			TableName: "jobs",
			RecordID:  j.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, decimal.Zero); err != nil {
			return err
		}
		res = &JobResult{Success: true, Status: j.Status, Shortages: shortages}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Complete completa el trabajo consumiendo inventario según los consumos
// reales. Reglas del payload: un qty_used por CADA ítem del BOM (cero vale),
// ítems extra se agregan al BOM como consumo no planificado con
// qty_planned = qty_used, duplicados se rechazan, negativos se rechazan.
// La suficiencia se verifica completa antes de descontar: o descuenta todo o
// nada, con el detalle de cada faltante.
func (uc *UseCase) Complete(ctx context.Context, actor authz.Actor, jobID string, actuals []ActualInput) (*JobResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if jobID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedJob(jobID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, entity.PermJobsDelete)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &JobResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	// Payload: duplicados y negativos se rechazan antes de tocar nada.
	byItem := make(map[string]decimal.Decimal, len(actuals))
	for _, a := range actuals {
		if a.ItemID == "" {
			return nil, domain.ErrInvalidInput
		}
		if _, dup := byItem[a.ItemID]; dup {
			return &JobResult{Code: dto.CodeDuplicateActual,
				Message: "el payload repite el ítem " + a.ItemID}, nil
		}
		if a.QtyUsed.IsNegative() {
			return &JobResult{Code: dto.CodeNegativeQty, Message: "qty_used no puede ser negativa"}, nil
		}
		byItem[a.ItemID] = a.QtyUsed
	}

	now := time.Now()
	var res *JobResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		j, err := repos.Jobs.GetForUpdate(jobID)
		if err != nil {
			return err
		}
		if j == nil {
			return domain.ErrNotFound
		}
		// Ya completado: idempotente, sin re-mutar inventario.
		if j.Status == entity.JobCompleted {
			res = &JobResult{Success: true, Status: j.Status, Idempotent: true}
			return nil
		}
		if j.Status != entity.JobApproved && j.Status != entity.JobInProgress {
			res = &JobResult{Code: dto.CodeInvalidTransition, Status: j.Status,
				Message: "el trabajo no admite completarse desde su estado actual"}
			return nil
		}

		bom, err := repos.Jobs.BOMLines(jobID)
		if err != nil {
			return err
		}
		// Cada ítem del BOM exige su actual (cero es válido).
		for _, l := range bom {
			if _, ok := byItem[l.ItemID]; !ok {
				res = &JobResult{Code: dto.CodeMissingActual, Status: j.Status,
					Message: "falta qty_used para el ítem " + l.ItemID}
				return nil
			}
		}

		items, err := lockJobItems(repos, j, itemIDsOf(bom, actuals))
		if err != nil {
			return err
		}
		if deleted := firstDeleted(items); deleted != "" {
			res = &JobResult{Code: dto.CodeItemDeleted, Status: j.Status,
				Message: "un actual referencia un ítem borrado"}
			return nil
		}

		// Suficiencia completa antes de descontar: se reporta TODO faltante.
		var shortages []entity.ShortageEntry
		for itemID, used := range byItem {
			it := items[itemID]
			if it.Quantity.LessThan(used) {
				shortages = append(shortages, entity.ShortageEntry{
					ItemID:    itemID,
					Required:  used,
					Available: it.Quantity,
					Shortfall: used.Sub(it.Quantity),
				})
			}
		}
		if len(shortages) > 0 {
			sort.Slice(shortages, func(a, b int) bool { return shortages[a].ItemID < shortages[b].ItemID })
			res = &JobResult{Code: dto.CodeInsufficientStock, Status: j.Status, Shortages: shortages,
				Message: "inventario insuficiente para completar"}
			return nil
		}

		// Consumo no planificado: ítems del payload fuera del BOM se agregan
		// con qty_planned = qty_used.
		inBOM := make(map[string]bool, len(bom))
		for _, l := range bom {
			inBOM[l.ItemID] = true
		}
		var unplanned []string
		for _, a := range actuals {
			if !inBOM[a.ItemID] {
				if err := repos.Jobs.UpsertBOMLine(&entity.JobBOMLine{
					JobID:      j.ID,
					ItemID:     a.ItemID,
					QtyPlanned: a.QtyUsed,
					Unplanned:  true,
					CreatedAt:  now,
				}); err != nil {
					return err
				}
				unplanned = append(unplanned, a.ItemID)
			}
		}

		total := decimal.Zero
		actualLines := make([]*entity.JobActualLine, 0, len(actuals))
		for _, a := range actuals {
			it := items[a.ItemID]
			if err := repos.Items.UpdateQuantity(it.ID, it.Quantity.Sub(a.QtyUsed), now); err != nil {
				return err
			}
			it.Quantity = it.Quantity.Sub(a.QtyUsed)
			total = total.Add(a.QtyUsed)
			actualLines = append(actualLines, &entity.JobActualLine{
				JobID:     j.ID,
				ItemID:    a.ItemID,
				QtyUsed:   a.QtyUsed,
				CreatedAt: now,
			})
		}
		if err := repos.Jobs.ReplaceActuals(j.ID, actualLines); err != nil {
			return err
		}

		old := j.Status
		j.Status = entity.JobCompleted
		j.CompletedBy = actor.UserID
		j.CompletedAt = &now
		j.UpdatedAt = now
		if err := repos.Jobs.Update(j); err != nil {
			return err
		}
		meta := entity.EventMeta{
			Event:   "job_completed",
			Version: 1,
			Job:     &entity.JobEventMeta{FromStatus: old, ToStatus: j.Status, Unplanned: unplanned},
		}
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: j.CompanyID,
			Action:    entity.ActionUpdate,
			TableName: "jobs",
			RecordID:  j.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, total.Neg()); err != nil {
			return err
		}
		res = &JobResult{Success: true, Status: j.Status, UnplannedItemsAdded: unplanned}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// simpleTransition transiciones sin efecto de inventario, con idempotencia al
// repetir el mismo destino.
func (uc *UseCase) simpleTransition(ctx context.Context, actor authz.Actor, jobID, permKey string, from []string, target, event string) (*JobResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if jobID == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.ownedJob(jobID, actor.CompanyID); err != nil {
		return nil, err
	}
	allowed, err := uc.engine.Check(ctx, actor, actor.CompanyID, permKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &JobResult{Code: dto.CodePermissionDenied, Message: "permiso insuficiente"}, nil
	}

	now := time.Now()
	var res *JobResult
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		j, err := repos.Jobs.GetForUpdate(jobID)
		if err != nil {
			return err
		}
		if j == nil {
			return domain.ErrNotFound
		}
		if j.Status == target {
			res = &JobResult{Success: true, Status: j.Status, Idempotent: true}
			return nil
		}
		valid := false
		for _, f := range from {
			if j.Status == f {
				valid = true
				break
			}
		}
		if !valid {
			res = &JobResult{Code: dto.CodeInvalidTransition, Status: j.Status,
				Message: "transición inválida desde " + j.Status}
			return nil
		}

		old := j.Status
		j.Status = target
		if target == entity.JobVoided {
			j.VoidedBy = actor.UserID
			j.VoidedAt = &now
		}
		j.UpdatedAt = now
		if err := repos.Jobs.Update(j); err != nil {
			return err
		}
		meta := entity.EventMeta{
			Event:   event,
			Version: 1,
			Job:     &entity.JobEventMeta{FromStatus: old, ToStatus: target},
		}
		if err := audit.LogEvent(repos, &entity.AuditLogEntry{
			CompanyID: j.CompanyID,
			Action:    entity.ActionUpdate,
			TableName: "jobs",
			RecordID:  j.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}, decimal.Zero); err != nil {
			return err
		}
		res = &JobResult{Success: true, Status: target}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lockJobItems bloquea los ítems (ordenados por id) y verifica empresa. El
// tombstone lo evalúa el caller, que tiene el resultado suave para reportarlo.
func lockJobItems(repos ports.TxRepos, j *entity.Job, ids []string) (map[string]*entity.InventoryItem, error) {
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
		if it.CompanyID != j.CompanyID {
			return nil, domain.ErrNotFound
		}
		byID[it.ID] = it
	}
	return byID, nil
}

// firstDeleted devuelve el id del primer ítem tombstoneado, o "" si no hay.
func firstDeleted(items map[string]*entity.InventoryItem) string {
	for id, it := range items {
		if it.IsDeleted() {
			return id
		}
	}
	return ""
}

// itemIDsOf une ítems de BOM y actuals sin repetir.
func itemIDsOf(bom []*entity.JobBOMLine, actuals []ActualInput) []string {
	seen := make(map[string]bool, len(bom)+len(actuals))
	var ids []string
	for _, l := range bom {
		if !seen[l.ItemID] {
			seen[l.ItemID] = true
			ids = append(ids, l.ItemID)
		}
	}
	for _, a := range actuals {
		if !seen[a.ItemID] {
			seen[a.ItemID] = true
			ids = append(ids, a.ItemID)
		}
	}
	return ids
}

// JobDetail trabajo con su BOM y consumos reales.
type JobDetail struct {
	Job     *entity.Job             `json:"job"`
	BOM     []*entity.JobBOMLine    `json:"bom"`
	Actuals []*entity.JobActualLine `json:"actuals"`
}

// GetJob devuelve el trabajo con BOM y actuals. Cualquier miembro puede leer.
func (uc *UseCase) GetJob(ctx context.Context, actor authz.Actor, jobID string) (*JobDetail, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	j, err := uc.ownedJob(jobID, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	bom, err := uc.jobs.BOMLines(jobID)
	if err != nil {
		return nil, err
	}
	actuals, err := uc.jobs.Actuals(jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: j, BOM: bom, Actuals: actuals}, nil
}

// ListJobs lista los trabajos de la empresa del actor.
func (uc *UseCase) ListJobs(ctx context.Context, actor authz.Actor, limit, offset int) ([]*entity.Job, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return uc.jobs.ListByCompany(actor.CompanyID, limit, offset)
}

// ownedJob confirma existencia y pertenencia (lectura sin lock, pre-tx).
func (uc *UseCase) ownedJob(jobID, companyID string) (*entity.Job, error) {
	j, err := uc.jobs.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if j == nil || j.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return j, nil
}
