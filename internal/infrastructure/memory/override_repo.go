package memory

import (
	"sort"
	"time"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.TierOverrideRepository = (*TierOverrideRepo)(nil)

// TierOverrideRepo implementación en memoria de TierOverrideRepository.
type TierOverrideRepo struct {
	s *Store
}

func (r *TierOverrideRepo) Create(o *entity.CompanyTierOverride) error {
	r.s.st.overrides[o.ID] = *o
	return nil
}

func (r *TierOverrideRepo) ListNonRevoked(companyID string) ([]*entity.CompanyTierOverride, error) {
	var overrides []*entity.CompanyTierOverride
	for _, o := range r.s.st.overrides {
		if o.CompanyID != companyID || o.RevokedAt != nil {
			continue
		}
		found := o
		overrides = append(overrides, &found)
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].StartsAt.Before(overrides[j].StartsAt) })
	return overrides, nil
}

func (r *TierOverrideRepo) ListNonRevokedForUpdate(companyID string) ([]*entity.CompanyTierOverride, error) {
	return r.ListNonRevoked(companyID)
}

func (r *TierOverrideRepo) ActiveAt(companyID string, now time.Time) (*entity.CompanyTierOverride, error) {
	for _, o := range r.s.st.overrides {
		if o.CompanyID == companyID && o.ActiveAt(now) {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (r *TierOverrideRepo) Revoke(id string, at time.Time) error {
	o, ok := r.s.st.overrides[id]
	if !ok || o.RevokedAt != nil {
		return nil
	}
	revokedAt := at
	o.RevokedAt = &revokedAt
	r.s.st.overrides[id] = o
	return nil
}

func (r *TierOverrideRepo) ExpireDue(companyID string, now time.Time) ([]*entity.CompanyTierOverride, error) {
	var expired []*entity.CompanyTierOverride
	for id, o := range r.s.st.overrides {
		if o.CompanyID != companyID || !o.Expired(now) {
			continue
		}
		o.RevokedAt = o.EndsAt
		r.s.st.overrides[id] = o
		found := o
		expired = append(expired, &found)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].StartsAt.Before(expired[j].StartsAt) })
	return expired, nil
}
