package receiving

import (
	"time"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// guardWriteOnce es la guarda pre-update de recepciones. Falla duro
// (ErrImmutableField): si se dispara hay un bug o manipulación, no un camino de
// usuario. Reglas:
//   - Los campos *By/*At y void_reason son de escritura única: asignados una
//     vez, nunca cambian.
//   - Una recepción completed queda congelada: el único cambio admitido es la
//     transición a voided (status + tripleta de void).
func guardWriteOnce(old, updated *entity.Receipt) error {
	if err := onceStr(old.CreatedBy, updated.CreatedBy); err != nil {
		return err
	}
	if err := onceStr(old.SubmittedBy, updated.SubmittedBy); err != nil {
		return err
	}
	if err := onceStr(old.ReceivedBy, updated.ReceivedBy); err != nil {
		return err
	}
	if err := onceStr(old.VoidedBy, updated.VoidedBy); err != nil {
		return err
	}
	if err := onceStr(old.VoidReason, updated.VoidReason); err != nil {
		return err
	}
	if err := onceTime(old.SubmittedAt, updated.SubmittedAt); err != nil {
		return err
	}
	if err := onceTime(old.ReceivedAt, updated.ReceivedAt); err != nil {
		return err
	}
	if err := onceTime(old.VoidedAt, updated.VoidedAt); err != nil {
		return err
	}

	if old.Status == entity.ReceiptCompleted {
		if updated.Status != entity.ReceiptCompleted && updated.Status != entity.ReceiptVoided {
			return domain.ErrImmutableField
		}
		// Congelada: fuera del void no cambia nada más.
		if updated.PurchaseOrderID != old.PurchaseOrderID ||
			updated.Notes != old.Notes ||
			updated.CompanyID != old.CompanyID {
			return domain.ErrImmutableField
		}
	}
	return nil
}

func onceStr(old, updated string) error {
	if old != "" && updated != old {
		return domain.ErrImmutableField
	}
	return nil
}

func onceTime(old, updated *time.Time) error {
	if old != nil && (updated == nil || !updated.Equal(*old)) {
		return domain.ErrImmutableField
	}
	return nil
}
