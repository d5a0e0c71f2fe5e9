package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// OverrideResult resultado suave de las operaciones sobre overrides de plan.
type OverrideResult struct {
	Success      bool   `json:"success"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	OverrideID   string `json:"override_id,omitempty"`
	PreviousTier string `json:"previous_tier,omitempty"`
	NewTier      string `json:"new_tier,omitempty"`
}

// OverrideUseCase administra el historial de overrides y el plan base.
// Todas las operaciones son de super-usuario; cada una expira ventanas vencidas
// antes de decidir y audita el plan efectivo antes/después.
type OverrideUseCase struct {
	txRunner ports.TxRunner
}

// NewOverrideUseCase construye el caso de uso de overrides.
func NewOverrideUseCase(txRunner ports.TxRunner) *OverrideUseCase {
	return &OverrideUseCase{txRunner: txRunner}
}

// Grant otorga un override [now, endsAt) a la empresa. endsAt nil = indefinido.
// Rechaza (resultado suave) endsAt en el pasado y cualquier solape con una
// ventana no revocada; el chequeo corre con las ventanas de la empresa
// bloqueadas, así dos grants concurrentes no pueden insertar solapes.
func (uc *OverrideUseCase) Grant(ctx context.Context, actor authz.Actor, companyID, tier string, endsAt *time.Time, reason string) (*OverrideResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if !actor.SuperUser {
		return nil, domain.ErrForbidden
	}
	if companyID == "" || !entity.ValidTier(tier) {
		return nil, domain.ErrInvalidInput
	}

	now := time.Now()
	var res *OverrideResult
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		company, err := repos.Companies.GetByID(companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if err := expireDueLogged(repos, company, now); err != nil {
			return err
		}

		if endsAt != nil && !endsAt.After(now) {
			res = &OverrideResult{Code: dto.CodeEndsAtInPast, Message: "ends_at ya pasó"}
			return nil
		}

		open, err := repos.Overrides.ListNonRevokedForUpdate(companyID)
		if err != nil {
			return err
		}
		previous := effectiveBase(company)
		for _, o := range open {
			if o.ActiveAt(now) {
				previous = o.OverrideTier
			}
			if o.Overlaps(now, endsAt) {
				res = &OverrideResult{
					Code:    dto.CodeOverlappingOverride,
					Message: "la ventana se solapa con un override vigente",
				}
				return nil
			}
		}

		o := &entity.CompanyTierOverride{
			ID:           uuid.New().String(),
			CompanyID:    companyID,
			OverrideTier: tier,
			StartsAt:     now,
			EndsAt:       endsAt,
			GrantedBy:    actor.UserID,
			Reason:       reason,
			CreatedAt:    now,
		}
		if err := repos.Overrides.Create(o); err != nil {
			return err
		}

		meta := entity.EventMeta{
			Event:   "override_granted",
			Version: 1,
			Override: &entity.OverrideEventMeta{
				PreviousTier: previous,
				NewTier:      tier,
				StartsAt:     &o.StartsAt,
				EndsAt:       endsAt,
			},
		}
		if err := repos.Audit.Create(&entity.AuditLogEntry{
			CompanyID: companyID,
			Action:    entity.ActionInsert,
			TableName: "company_tier_overrides",
			RecordID:  o.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		res = &OverrideResult{Success: true, OverrideID: o.ID, PreviousTier: previous, NewTier: tier}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Revoke revoca "ahora" la única ventana vigente de la empresa. Sin ventana
// vigente devuelve resultado suave NO_ACTIVE_OVERRIDE.
func (uc *OverrideUseCase) Revoke(ctx context.Context, actor authz.Actor, companyID string) (*OverrideResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if !actor.SuperUser {
		return nil, domain.ErrForbidden
	}
	if companyID == "" {
		return nil, domain.ErrInvalidInput
	}

	now := time.Now()
	var res *OverrideResult
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		company, err := repos.Companies.GetByID(companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if err := expireDueLogged(repos, company, now); err != nil {
			return err
		}

		active, err := repos.Overrides.ActiveAt(companyID, now)
		if err != nil {
			return err
		}
		if active == nil {
			res = &OverrideResult{Code: dto.CodeNoActiveOverride, Message: "no hay override vigente"}
			return nil
		}
		if err := repos.Overrides.Revoke(active.ID, now); err != nil {
			return err
		}

		var remaining int64 // 0 = era indefinido
		if active.EndsAt != nil {
			remaining = int64(active.EndsAt.Sub(now).Seconds())
		}
		meta := entity.EventMeta{
			Event:   "override_revoked",
			Version: 1,
			Override: &entity.OverrideEventMeta{
				PreviousTier:  active.OverrideTier,
				NewTier:       effectiveBase(company),
				StartsAt:      &active.StartsAt,
				EndsAt:        active.EndsAt,
				RemainingSecs: remaining,
			},
		}
		if err := repos.Audit.Create(&entity.AuditLogEntry{
			CompanyID: companyID,
			Action:    entity.ActionUpdate,
			TableName: "company_tier_overrides",
			RecordID:  active.ID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		res = &OverrideResult{Success: true, OverrideID: active.ID, PreviousTier: active.OverrideTier, NewTier: effectiveBase(company)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetBaseTier actualiza el plan base (independiente de los overrides). El plan
// efectivo solo cambia si no hay override vigente tapándolo; el evento audita
// efectivo antes/después igualmente.
func (uc *OverrideUseCase) SetBaseTier(ctx context.Context, actor authz.Actor, companyID, tier string) (*OverrideResult, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	if !actor.SuperUser {
		return nil, domain.ErrForbidden
	}
	if companyID == "" || !entity.ValidTier(tier) {
		return nil, domain.ErrInvalidInput
	}

	now := time.Now()
	var res *OverrideResult
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		company, err := repos.Companies.GetByID(companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if err := expireDueLogged(repos, company, now); err != nil {
			return err
		}

		active, err := repos.Overrides.ActiveAt(companyID, now)
		if err != nil {
			return err
		}
		prevEffective := effectiveBase(company)
		if active != nil {
			prevEffective = active.OverrideTier
		}
		if err := repos.Companies.UpdateBaseTier(companyID, tier, now); err != nil {
			return err
		}
		newEffective := tier
		if active != nil {
			newEffective = active.OverrideTier
		}

		meta := entity.EventMeta{
			Event:   "base_tier_changed",
			Version: 1,
			Override: &entity.OverrideEventMeta{
				PreviousTier: prevEffective,
				NewTier:      newEffective,
			},
		}
		if err := repos.Audit.Create(&entity.AuditLogEntry{
			CompanyID: companyID,
			Action:    entity.ActionUpdate,
			TableName: "companies",
			RecordID:  companyID,
			ActorID:   actor.UserID,
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		res = &OverrideResult{Success: true, PreviousTier: prevEffective, NewTier: newEffective}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// expireDueLogged expira ventanas vencidas y audita override_expired por cada
// una recién expirada (misma guarda de idempotencia que el Resolver).
func expireDueLogged(repos ports.TxRepos, company *entity.Company, now time.Time) error {
	expired, err := repos.Overrides.ExpireDue(company.ID, now)
	if err != nil {
		return err
	}
	for _, o := range expired {
		meta := entity.EventMeta{
			Event:   "override_expired",
			Version: 1,
			Override: &entity.OverrideEventMeta{
				PreviousTier: o.OverrideTier,
				NewTier:      effectiveBase(company),
				StartsAt:     &o.StartsAt,
				EndsAt:       o.EndsAt,
			},
		}
		if err := repos.Audit.Create(&entity.AuditLogEntry{
			CompanyID: company.ID,
			Action:    entity.ActionUpdate,
			TableName: "company_tier_overrides",
			RecordID:  o.ID,
			ActorID:   "system",
			Metadata:  meta.Marshal(),
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
