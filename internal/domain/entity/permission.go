package entity

// Claves de permiso conocidas (tabla role_permissions). Una clave ausente en el
// mapa de un rol se trata como "no otorgado", nunca como error.
const (
	PermInventoryEdit    = "inventory:edit"
	PermInventoryDelete  = "inventory:delete"
	PermInventoryRestore = "inventory:restore"
	PermReceivingEdit    = "receiving:edit"
	PermReceivingApprove = "receiving:approve"
	PermReceivingVoid    = "receiving:void"
	PermJobsEdit         = "jobs:edit"
	PermJobsDelete       = "jobs:delete"
	PermOrdersEdit       = "orders:edit"
	PermAdminTier        = "admin:tier"
)

// RolePermission una entrada de la tabla rol → clave → booleano. Solo lectura
// para el motor de permisos; se administra por vías privilegiadas.
type RolePermission struct {
	Role          string
	PermissionKey string
	Allowed       bool
}
