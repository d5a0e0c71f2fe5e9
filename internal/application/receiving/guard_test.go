package receiving

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

func completedReceipt() *entity.Receipt {
	now := time.Now()
	return &entity.Receipt{
		ID: "r-1", CompanyID: "c-1", Status: entity.ReceiptCompleted,
		CreatedBy: "u-1", SubmittedBy: "u-1", SubmittedAt: &now,
		ReceivedBy: "u-2", ReceivedAt: &now,
	}
}

func TestGuardWriteOnce_CamposDeEscrituraUnica(t *testing.T) {
	old := completedReceipt()

	// Caso 1: reasignar submitted_by es invariante roto.
	upd := *old
	upd.SubmittedBy = "u-otro"
	assert.ErrorIs(t, guardWriteOnce(old, &upd), domain.ErrImmutableField)

	// Caso 2: borrar received_at también.
	upd = *old
	upd.ReceivedAt = nil
	assert.ErrorIs(t, guardWriteOnce(old, &upd), domain.ErrImmutableField)

	// Caso 3: sin cambios pasa.
	upd = *old
	assert.NoError(t, guardWriteOnce(old, &upd))
}

func TestGuardWriteOnce_CompletedQuedaCongelada(t *testing.T) {
	old := completedReceipt()

	// Caso 1: volver a draft desde completed es invariante roto.
	upd := *old
	upd.Status = entity.ReceiptDraft
	assert.ErrorIs(t, guardWriteOnce(old, &upd), domain.ErrImmutableField)

	// Caso 2: editar notas post-completed también.
	upd = *old
	upd.Notes = "cambiadas"
	assert.ErrorIs(t, guardWriteOnce(old, &upd), domain.ErrImmutableField)

	// Caso 3: la única salida admitida es voided con su tripleta.
	now := time.Now()
	upd = *old
	upd.Status = entity.ReceiptVoided
	upd.VoidedBy = "u-3"
	upd.VoidedAt = &now
	upd.VoidReason = "mercadería dañada en depósito"
	assert.NoError(t, guardWriteOnce(old, &upd))
}

func TestGuardWriteOnce_DraftSigueEditable(t *testing.T) {
	old := &entity.Receipt{ID: "r-1", Status: entity.ReceiptDraft, CreatedBy: "u-1"}
	upd := *old
	upd.Notes = "notas nuevas"
	assert.NoError(t, guardWriteOnce(old, &upd))
}
