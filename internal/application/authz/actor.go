package authz

// Actor es el "quién" de toda operación del núcleo: lo resuelve el contexto de
// identidad (middleware JWT + membresías) y viaja explícito por los casos de
// uso; el núcleo nunca confía en un id suelto sin actor.
type Actor struct {
	UserID    string
	CompanyID string // empresa activa de la sesión
	SuperUser bool
}

// Anonymous informa si no hay actor autenticado.
func (a Actor) Anonymous() bool {
	return a.UserID == ""
}
