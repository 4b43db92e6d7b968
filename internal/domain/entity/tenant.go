package entity

import "time"

// Tenant statuses.
const (
	TenantStatusActive    = "ACTIVE"
	TenantStatusSuspended = "SUSPENDED"
	TenantStatusInactive  = "INACTIVE"
	TenantStatusTrial     = "TRIAL"
)

// Tenant is a company using the hub. Its NIP is the context identifier for
// KSeF sessions; FullName and Address feed the seller section of generated
// invoices.
type Tenant struct {
	ID        string
	NIP       string
	Name      string
	FullName  string
	Email     string
	Phone     string
	Address   string // free text: "street, postcode city"
	Active    bool
	Status    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
