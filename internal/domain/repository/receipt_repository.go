package repository

import "github.com/jhoicas/Procura-api/internal/domain/entity"

// ReceiptRepository define el puerto de recepciones y sus líneas.
// Las transiciones de estado siempre bloquean primero la fila de la recepción
// (GetForUpdate) y luego los ítems referenciados, en ese orden.
type ReceiptRepository interface {
	Create(r *entity.Receipt) error
	GetByID(id string) (*entity.Receipt, error)
	GetForUpdate(id string) (*entity.Receipt, error)
	// Update persiste la recepción completa. La protección de campos de
	// escritura única vive en el caso de uso (guardWriteOnce), no aquí.
	Update(r *entity.Receipt) error
	ListByCompany(companyID string, limit, offset int) ([]*entity.Receipt, error)

	Lines(receiptID string) ([]*entity.ReceiptLine, error)
	GetLine(lineID string) (*entity.ReceiptLine, error)
	CreateLine(l *entity.ReceiptLine) error
	UpdateLine(l *entity.ReceiptLine) error
	DeleteLine(lineID string) error
}
