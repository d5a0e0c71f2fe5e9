package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Procura-api/internal/domain/inventory"
)

func TestNormalizeName_CaseFolding(t *testing.T) {
	assert.Equal(t, inventory.NormalizeName("TORNILLO M4"), inventory.NormalizeName("tornillo m4"),
		"mayúsculas y minúsculas deben normalizar igual")
}

func TestNormalizeName_ColapsaEspacios(t *testing.T) {
	assert.Equal(t, inventory.NormalizeName("Tornillo  M4"), inventory.NormalizeName(" Tornillo M4 "),
		"espacios repetidos y bordes no deben distinguir nombres")
}

func TestNormalizeName_FormasUnicodeEquivalentes(t *testing.T) {
	// "ñ" precompuesta (U+00F1) vs "n" + tilde combinante (U+006E U+0303).
	assert.Equal(t, inventory.NormalizeName("Año"), inventory.NormalizeName("Año"),
		"formas NFC/NFD equivalentes deben normalizar igual")
}

func TestNormalizeName_NombresDistintosNoColisionan(t *testing.T) {
	assert.NotEqual(t, inventory.NormalizeName("Tornillo M4"), inventory.NormalizeName("Tornillo M5"))
}
