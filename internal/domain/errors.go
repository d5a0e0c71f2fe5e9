package domain

import "errors"

// Errores de dominio (sin dependencias externas).
// Convención dual del núcleo: las violaciones de reglas de negocio se devuelven
// como resultados estructurados (success=false + código estable); estos errores
// son para fallas duras: auth, recursos inexistentes, invariantes rotos.
var (
	ErrNotFound        = errors.New("recurso no encontrado")
	ErrUnauthorized    = errors.New("no autorizado")
	ErrForbidden       = errors.New("acceso denegado")
	ErrInvalidInput    = errors.New("entrada inválida")
	ErrDuplicate       = errors.New("recurso duplicado")
	ErrConflict        = errors.New("conflicto con el estado actual")
	ErrUpgradeRequired = errors.New("el plan contratado no incluye esta función")

	// Invariantes internos: si se disparan hay un bug o un intento de manipulación,
	// nunca un camino de usuario esperado. Abortan la transacción completa.
	ErrCompanyMismatch = errors.New("el recurso pertenece a otra empresa")
	ErrImmutableField  = errors.New("campo de escritura única ya asignado")
)
