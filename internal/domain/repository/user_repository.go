package repository

import "github.com/jhoicas/Procura-api/internal/domain/entity"

// UserRepository define el puerto de usuarios y membresías (contexto de identidad).
type UserRepository interface {
	Create(u *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	// RoleFor devuelve el rol del usuario en la empresa; "" si no es miembro.
	RoleFor(userID, companyID string) (string, error)
	AddMembership(m *entity.Membership) error
}

// PermissionRepository define el puerto de la tabla rol → clave → booleano.
// Solo lectura desde el motor de permisos.
type PermissionRepository interface {
	// Allowed devuelve el booleano bajo (role, key); clave o rol ausentes = false, sin error.
	Allowed(role, permissionKey string) (bool, error)
}
