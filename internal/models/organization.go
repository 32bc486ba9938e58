package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLowStockThreshold is assigned to new organizations at signup.
const DefaultLowStockThreshold = 5

// Organization is the tenant: the unit of data isolation. Every user and
// product belongs to exactly one organization.
type Organization struct {
	ID                       uuid.UUID `json:"id"`
	Name                     string    `json:"name"`
	DefaultLowStockThreshold int       `json:"default_low_stock_threshold"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}
