package audit

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/inventory"
)

// ItemSnapshot es la foto de una fila de ítem que viaja en old_values/new_values
// de auditoría. Es lo que el undo reaplica: mantener los tags estables.
type ItemSnapshot struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitMeasure string          `json:"unit_measure"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy   string          `json:"deleted_by,omitempty"`
}

// SnapshotItem serializa la foto de un ítem para auditoría.
func SnapshotItem(i *entity.InventoryItem) json.RawMessage {
	s := ItemSnapshot{
		SKU:         i.SKU,
		Name:        i.Name,
		Description: i.Description,
		Quantity:    i.Quantity,
		UnitMeasure: i.UnitMeasure,
		DeletedAt:   i.DeletedAt,
		DeletedBy:   i.DeletedBy,
	}
	b, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// ApplySnapshot vuelca la foto sobre el ítem (replay de undo). No toca ID ni
// CompanyID: el alcance de empresa ya fue verificado por el caller.
func ApplySnapshot(i *entity.InventoryItem, raw json.RawMessage) error {
	var s ItemSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	i.SKU = s.SKU
	i.Name = s.Name
	i.NormalizedName = inventory.NormalizeName(s.Name)
	i.Description = s.Description
	i.Quantity = s.Quantity
	i.UnitMeasure = s.UnitMeasure
	i.DeletedAt = s.DeletedAt
	i.DeletedBy = s.DeletedBy
	return nil
}
