package authz

import (
	"context"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

// Engine es el checkpoint único de permisos: toda operación mutante del núcleo
// pasa por Check antes de tomar locks o escribir. Mapea (empresa, rol) → claves
// vía role_permissions.
type Engine struct {
	users repository.UserRepository
	perms repository.PermissionRepository
}

// NewEngine construye el motor de permisos.
func NewEngine(users repository.UserRepository, perms repository.PermissionRepository) *Engine {
	return &Engine{users: users, perms: perms}
}

// Check informa si el actor tiene la capacidad key en la empresa.
//   - Sin actor → ErrUnauthorized (falla dura).
//   - Super-usuario → true incondicional.
//   - Sin rol en la empresa → false.
//   - Clave ausente en el mapa del rol → false; nunca error por clave desconocida.
//
// Devuelve error solo ante fallos de infraestructura (DB caída, timeout).
func (e *Engine) Check(ctx context.Context, actor Actor, companyID, key string) (bool, error) {
	if actor.Anonymous() {
		return false, domain.ErrUnauthorized
	}
	if actor.SuperUser {
		return true, nil
	}
	role, err := e.users.RoleFor(actor.UserID, companyID)
	if err != nil {
		return false, err
	}
	if role == "" {
		return false, nil
	}
	return e.perms.Allowed(role, key)
}
