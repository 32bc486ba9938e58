package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a stock-tracked item owned by one organization. SKU is unique
// within the organization. LowStockThreshold overrides the organization
// default when set.
type Product struct {
	ID                uuid.UUID `json:"id"`
	OrganizationID    uuid.UUID `json:"organization_id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	CostPrice         *float64  `json:"cost_price,omitempty"`
	SellingPrice      *float64  `json:"selling_price,omitempty"`
	LowStockThreshold *int      `json:"low_stock_threshold,omitempty"`
	Description       string    `json:"description,omitempty"`
	ImageKey          string    `json:"image_key,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EffectiveThreshold returns the product's own threshold when set, otherwise
// the organization default.
func (p *Product) EffectiveThreshold(orgDefault int) int {
	if p.LowStockThreshold != nil {
		return *p.LowStockThreshold
	}
	return orgDefault
}

// IsLowStock reports whether quantity on hand is at or below the effective
// threshold.
func (p *Product) IsLowStock(orgDefault int) bool {
	return p.QuantityOnHand <= p.EffectiveThreshold(orgDefault)
}
