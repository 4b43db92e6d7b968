package entity

import "time"

// Session kinds.
const (
	SessionTypeOnline = "ONLINE" // interactive, single invoices
	SessionTypeBatch  = "BATCH"  // batch upload
)

// Session statuses. OPENED is set on a successful open; EXPIRED is detected
// lazily the next time the session is used; CLOSED only via an explicit
// terminate call; ERROR when the terminate call itself fails.
const (
	SessionStatusOpened  = "OPENED"
	SessionStatusActive  = "ACTIVE"
	SessionStatusClosed  = "CLOSED"
	SessionStatusError   = "ERROR"
	SessionStatusExpired = "EXPIRED"
)

// KsefSession is a persisted record of a session with the KSeF API.
type KsefSession struct {
	ID              string
	TenantID        string
	ReferenceNumber string
	SessionType     string
	Status          string
	AccessToken     string
	TokenExpiresAt  *time.Time
	// Processed item counters, updated as invoices flow through the session.
	InvoiceCount           int
	SuccessfulInvoiceCount int
	FailedInvoiceCount     int
	OpenedAt               *time.Time
	ClosedAt               *time.Time
	ErrorMessage           string
	CreatedAt              time.Time
}

// IsActive reports whether the session is in a usable state (expiry aside).
func (s *KsefSession) IsActive() bool {
	return s.Status == SessionStatusOpened || s.Status == SessionStatusActive
}

// IsTokenValid reports whether the stored token has not expired yet.
func (s *KsefSession) IsTokenValid(now time.Time) bool {
	return s.TokenExpiresAt != nil && s.TokenExpiresAt.After(now)
}
