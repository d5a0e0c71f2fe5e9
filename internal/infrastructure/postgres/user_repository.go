package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación de UserRepository sobre PostgreSQL.
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador. Pasar pool o tx (Querier).
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

const userColumns = `
	id, email, password_hash, name, super_user, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.SuperUser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserta el usuario. Email duplicado devuelve domain.ErrDuplicate.
func (r *UserRepo) Create(u *entity.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, super_user, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(context.Background(), query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.SuperUser, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID obtiene un usuario por ID. Devuelve nil si no existe.
func (r *UserRepo) GetByID(id string) (*entity.User, error) {
	query := `SELECT` + userColumns + `
		FROM users WHERE id = $1`
	u, err := scanUser(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail obtiene un usuario por email. Devuelve nil si no existe.
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	query := `SELECT` + userColumns + `
		FROM users WHERE email = $1`
	u, err := scanUser(r.q.QueryRow(context.Background(), query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// RoleFor devuelve el rol del usuario en la empresa; "" si no es miembro.
func (r *UserRepo) RoleFor(userID, companyID string) (string, error) {
	query := `SELECT role FROM memberships WHERE user_id = $1 AND company_id = $2`
	var role string
	err := r.q.QueryRow(context.Background(), query, userID, companyID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// AddMembership vincula el usuario a una empresa con un rol.
func (r *UserRepo) AddMembership(m *entity.Membership) error {
	query := `
		INSERT INTO memberships (user_id, company_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, company_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.q.Exec(context.Background(), query, m.UserID, m.CompanyID, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

var _ repository.PermissionRepository = (*PermissionRepo)(nil)

// PermissionRepo implementación de PermissionRepository: lectura de la tabla
// rol → clave → booleano.
type PermissionRepo struct {
	q Querier
}

// NewPermissionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPermissionRepository(q Querier) *PermissionRepo {
	return &PermissionRepo{q: q}
}

// Allowed devuelve el booleano bajo (role, key). Clave o rol ausentes = false, sin error.
func (r *PermissionRepo) Allowed(role, permissionKey string) (bool, error) {
	query := `SELECT allowed FROM role_permissions WHERE role = $1 AND permission_key = $2`
	var allowed bool
	err := r.q.QueryRow(context.Background(), query, role, permissionKey).Scan(&allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get permission: %w", err)
	}
	return allowed, nil
}
