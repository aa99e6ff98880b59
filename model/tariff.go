package model

import (
	"time"
)

// Tariff is read-only reference data: the unit price applied per
// submitted item when computing a hold and per successful item at
// settlement. Prices are minor units.
type Tariff struct {
	ID           int64     `json:"-"`
	TariffID     string    `json:"tariff_id"`
	Name         string    `json:"name"`
	PricePerItem int64     `json:"price_per_item"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// HoldSum is the provisional charge for submitting itemCount items.
func (t *Tariff) HoldSum(itemCount int64) int64 {
	return itemCount * t.PricePerItem
}

// FinalSum is the real charge once the successful count is known,
// clamped so it can never exceed the hold.
func (t *Tariff) FinalSum(itemCount, successfulCount int64) int64 {
	if successfulCount > itemCount {
		successfulCount = itemCount
	}
	if successfulCount < 0 {
		successfulCount = 0
	}
	return successfulCount * t.PricePerItem
}
