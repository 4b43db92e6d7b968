package domain

import "errors"

// Domain errors (no external dependencies).
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicate      = errors.New("duplicate resource")
	ErrConflict       = errors.New("conflict with current state")
	ErrTenantInactive = errors.New("tenant is not active")

	// ErrAlreadySent guards the submission pipeline: an invoice in the SENT
	// state must not be submitted again.
	ErrAlreadySent = errors.New("invoice already sent to KSeF")
	// ErrNotSubmitted is returned when a receipt is requested for an invoice
	// that has no KSeF number yet.
	ErrNotSubmitted = errors.New("invoice not sent to KSeF yet")
	// ErrInvoiceNotDraft blocks deletion of invoices that left the draft state.
	ErrInvoiceNotDraft = errors.New("invoice is no longer a draft")
	// ErrNoActiveCertificate is returned when signing is requested for a
	// tenant without a valid active certificate.
	ErrNoActiveCertificate = errors.New("no active certificate for tenant")
	// ErrNoActiveSession is returned when a protected call is attempted
	// without an open, unexpired session.
	ErrNoActiveSession = errors.New("no active KSeF session")
)
