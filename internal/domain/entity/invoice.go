package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice statuses. DRAFT -> SENT happens on a successful submission; any
// failure inside the pipeline moves the invoice to ERROR (retryable, the whole
// pipeline re-runs). ACCEPTED/REJECTED are set by the external reconciliation
// path once KSeF's asynchronous verdict arrives.
const (
	InvoiceStatusDraft    = "DRAFT"
	InvoiceStatusPending  = "PENDING"
	InvoiceStatusSent     = "SENT"
	InvoiceStatusAccepted = "ACCEPTED"
	InvoiceStatusRejected = "REJECTED"
	InvoiceStatusError    = "ERROR"
)

// Invoice types (FA(3) document kinds).
const (
	InvoiceTypeFA         = "FA"
	InvoiceTypeFAVAT      = "FA_VAT"
	InvoiceTypeCorrective = "FA_CORRECTIVE"
	InvoiceTypeRR         = "RR"
)

// Invoice is an invoice routed through KSeF. Owned by its tenant; mutated only
// by the orchestrator and the CRUD layer. Deletion is disallowed once the
// status leaves DRAFT.
type Invoice struct {
	ID            string
	TenantID      string
	InvoiceNumber string // unique per tenant
	// KsefNumber is the KSeF-assigned reference. Assigned once on a
	// successful send and immutable thereafter.
	KsefNumber      string
	ReferenceNumber string // session reference number from the send response
	Type            string
	Status          string
	InvoiceDate     time.Time
	SaleDate        time.Time
	NetAmount       decimal.Decimal
	VatAmount       decimal.Decimal
	GrossAmount     decimal.Decimal
	Currency        string
	XMLContent      string // rendered FA(3) document (pre-signature)
	SignedXML       string // signed document; distinct from XMLContent, never re-rendered
	UpoContent      string // UPO receipt as returned by KSeF (base64)
	ErrorMessage    string
	Notes           string // free text; also carries ad-hoc buyer data (NIP: / Nabywca: markers)
	SentToKsefAt    *time.Time
	AcceptedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Deletable reports whether the invoice may still be destroyed.
func (i *Invoice) Deletable() bool {
	return i.Status == InvoiceStatusDraft
}
