package memory

import (
	"time"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación en memoria de CompanyRepository.
type CompanyRepo struct {
	s *Store
}

func (r *CompanyRepo) Create(c *entity.Company) error {
	r.s.st.companies[c.ID] = *c
	return nil
}

func (r *CompanyRepo) GetByID(id string) (*entity.Company, error) {
	c, ok := r.s.st.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CompanyRepo) UpdateBaseTier(id, tier string, now time.Time) error {
	c, ok := r.s.st.companies[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.BaseTier = tier
	c.UpdatedAt = now
	r.s.st.companies[id] = c
	return nil
}

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación en memoria de UserRepository.
type UserRepo struct {
	s *Store
}

// NewUserRepo construye el repo de usuarios sobre el Store.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) Create(u *entity.User) error {
	for _, existing := range r.s.st.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	r.s.st.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(id string) (*entity.User, error) {
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	for _, u := range r.s.st.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) RoleFor(userID, companyID string) (string, error) {
	m, ok := r.s.st.memberships[userID+"|"+companyID]
	if !ok {
		return "", nil
	}
	return m.Role, nil
}

func (r *UserRepo) AddMembership(m *entity.Membership) error {
	r.s.st.memberships[m.UserID+"|"+m.CompanyID] = *m
	return nil
}

var _ repository.PermissionRepository = (*PermissionRepo)(nil)

// PermissionRepo implementación en memoria de PermissionRepository.
// Se alimenta con Store.SeedPermission.
type PermissionRepo struct {
	s *Store
}

// NewPermissionRepo construye el repo de permisos sobre el Store.
func NewPermissionRepo(s *Store) *PermissionRepo { return &PermissionRepo{s: s} }

func (r *PermissionRepo) Allowed(role, permissionKey string) (bool, error) {
	return r.s.st.permissions[role+"|"+permissionKey], nil
}
