package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity actions recorded in the stock movement log.
const (
	ActivityProductCreated = "product_created"
	ActivityProductUpdated = "product_updated"
	ActivityProductDeleted = "product_deleted"
	ActivityAlertSent      = "alert_sent"
)

// StockActivity is one entry in an organization's stock movement log.
// QuantityAfter is nil for deletions.
type StockActivity struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Action         string     `json:"action"`
	QuantityDelta  int        `json:"quantity_delta"`
	QuantityAfter  *int       `json:"quantity_after,omitempty"`
	Detail         string     `json:"detail,omitempty"`
	RecordedAt     time.Time  `json:"recorded_at"`
}
