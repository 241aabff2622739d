// Package models defines the domain types stored in the database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant that owns licenses, API keys, and agents.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Domain       string    `json:"domain"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewOrganization creates a new Organization with the given name and domain.
func NewOrganization(name, domain string) *Organization {
	now := time.Now()
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Domain:    domain,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
