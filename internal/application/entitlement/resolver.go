package entitlement

import (
	"context"
	"time"

	"github.com/jhoicas/Procura-api/internal/application/ports"
	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// Fuente del plan efectivo.
const (
	SourceBase     = "base"
	SourceOverride = "override"
)

// Funciones gateadas por plan. El gate falla la request (ErrUpgradeRequired),
// nunca degrada en silencio.
const (
	FeatureSnapshots    = "snapshots"
	FeatureAuditLog     = "audit_log"
	FeatureMetrics      = "metrics"
	FeatureApprovalFlow = "approval_flow" // flujo submit/approve de recepciones
)

// featureTiers: planes que incluyen cada función.
var featureTiers = map[string]map[string]bool{
	FeatureSnapshots: {entity.TierBusiness: true, entity.TierEnterprise: true},
	FeatureAuditLog:  {entity.TierEnterprise: true},
	FeatureMetrics: {
		entity.TierProfessional: true, entity.TierBusiness: true, entity.TierEnterprise: true,
	},
	FeatureApprovalFlow: {entity.TierBusiness: true, entity.TierEnterprise: true},
}

// TierInfo plan efectivo de una empresa y su origen.
type TierInfo struct {
	EffectiveTier string `json:"effective_tier"`
	Source        string `json:"source"` // base | override
	BillingState  string `json:"billing_state"`
}

// Resolver calcula el plan efectivo combinando el plan base con el historial de
// overrides ventaneados. La expiración es perezosa: cada resolución expira
// primero las ventanas vencidas (sin scheduler de fondo) y recién después decide.
type Resolver struct {
	txRunner ports.TxRunner
}

// NewResolver construye el resolver de planes.
func NewResolver(txRunner ports.TxRunner) *Resolver {
	return &Resolver{txRunner: txRunner}
}

// Resolve expira ventanas vencidas (emitiendo override_expired exactamente una
// vez por ventana: el RETURNING del UPDATE es la guarda) y devuelve el plan
// efectivo: override vigente si lo hay, si no el plan base (starter por defecto).
func (r *Resolver) Resolve(ctx context.Context, companyID string) (*TierInfo, error) {
	if companyID == "" {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	var info *TierInfo
	err := r.txRunner.Run(ctx, func(repos ports.TxRepos) error {
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
		if active != nil {
			info = &TierInfo{
				EffectiveTier: active.OverrideTier,
				Source:        SourceOverride,
				BillingState:  company.BillingState,
			}
			return nil
		}
		info = &TierInfo{
			EffectiveTier: effectiveBase(company),
			Source:        SourceBase,
			BillingState:  company.BillingState,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// RequireFeature falla con ErrUpgradeRequired si el plan efectivo no incluye la
// función. Toda ruta dependiente de plan debe pasar por acá (expira primero).
func (r *Resolver) RequireFeature(ctx context.Context, companyID, feature string) (*TierInfo, error) {
	info, err := r.Resolve(ctx, companyID)
	if err != nil {
		return nil, err
	}
	allowed, ok := featureTiers[feature]
	if !ok {
		// Función desconocida = no incluida en ningún plan.
		return info, domain.ErrUpgradeRequired
	}
	if !allowed[info.EffectiveTier] {
		return info, domain.ErrUpgradeRequired
	}
	return info, nil
}

// HasFeature variante booleana de RequireFeature para caminos que ramifican en
// lugar de fallar (ej. recepciones: flujo directo vs submit/approve).
func (r *Resolver) HasFeature(ctx context.Context, companyID, feature string) (bool, *TierInfo, error) {
	info, err := r.Resolve(ctx, companyID)
	if err != nil {
		return false, nil, err
	}
	return featureTiers[feature][info.EffectiveTier], info, nil
}

// effectiveBase devuelve el plan base saneado (starter si falta o es inválido).
func effectiveBase(c *entity.Company) string {
	if entity.ValidTier(c.BaseTier) {
		return c.BaseTier
	}
	return entity.TierStarter
}
