package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. Every user belongs to exactly one
// organization for its entire lifetime; email is unique across all tenants.
// PasswordHash never leaves the process: the json tag strips it from every
// response.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	OrganizationID uuid.UUID `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
