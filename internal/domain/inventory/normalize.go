package inventory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName canoniza un nombre de ítem para el dedupe por empresa
// (servicio de dominio): NFC, case folding Unicode y colapso de espacios.
// "Tornillo  M4" y "TORNILLO M4" normalizan igual.
// El Caser se crea por llamada: no es seguro compartirlo entre goroutines.
func NormalizeName(name string) string {
	s := norm.NFC.String(name)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
