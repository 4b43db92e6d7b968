// Wire DTOs for the KSeF 2.0 interactive session API.

package ksef

import "fmt"

// SessionRequest is the open-session body. The context identifier always
// uses the "onip" type for NIP-based authorization.
type SessionRequest struct {
	ContextIdentifier ContextIdentifier `json:"contextIdentifier"`
}

type ContextIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// SessionResponse is returned by open-session.
type SessionResponse struct {
	SessionToken    SessionToken `json:"sessionToken"`
	ReferenceNumber string       `json:"referenceNumber"`
	ProcessingCode  int          `json:"processingCode"`
}

type SessionToken struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// InvoiceRequest is the send-invoice body: SHA-256 hash of the signed
// document plus the document itself, Base64-encoded.
type InvoiceRequest struct {
	InvoiceHash    InvoiceHash    `json:"invoiceHash"`
	InvoicePayload InvoicePayload `json:"invoicePayload"`
}

type InvoiceHash struct {
	HashSHA  HashSHA `json:"hashSHA"`
	FileSize int64   `json:"fileSize"`
}

type HashSHA struct {
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding"`
	Value     string `json:"value"`
}

type InvoicePayload struct {
	Type        string `json:"type"`
	InvoiceBody string `json:"invoiceBody"`
}

// InvoiceResponse is returned by send-invoice. ElementReferenceNumber is the
// KSeF number assigned to the invoice.
type InvoiceResponse struct {
	ElementReferenceNumber string `json:"elementReferenceNumber"`
	ProcessingCode         int    `json:"processingCode"`
	ReferenceNumber        string `json:"referenceNumber"`
	Timestamp              string `json:"timestamp"`
}

// UpoResponse is returned by fetch-receipt. Upo carries the confirmation
// document Base64-encoded; it is stored as received.
type UpoResponse struct {
	ReferenceNumber        string `json:"referenceNumber"`
	Upo                    string `json:"upo"`
	ElementReferenceNumber string `json:"elementReferenceNumber"`
}

// SessionStatusResponse is returned by the session status query.
type SessionStatusResponse struct {
	ProcessingCode        int    `json:"processingCode"`
	ProcessingDescription string `json:"processingDescription"`
	ReferenceNumber       string `json:"referenceNumber"`
	NumberOfElements      int    `json:"numberOfElements"`
}

// APIError is the single transport error type. It wraps every failure mode
// of a client call: non-2xx status, body decode failure, or network error.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ksef %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ksef %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
