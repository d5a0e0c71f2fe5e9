package entity

import "time"

// User representa un usuario autenticable. La pertenencia a empresas y el rol
// por empresa viven en Membership (un usuario puede estar en varias empresas).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	SuperUser    bool // salta todos los checks de permisos
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Membership vincula un usuario a una empresa con un rol.
type Membership struct {
	UserID    string
	CompanyID string
	Role      string // owner, admin, editor, viewer
	CreatedAt time.Time
}
