package ksef

import "crypto/tls"

// Signer signs an invoice XML and returns the document with the ds:Signature
// node appended as the last child of the root element.
type Signer interface {
	// Sign takes the rendered invoice XML (unsigned) and the certificate with
	// its private key, and returns the signed document. Any mutation of the
	// returned bytes invalidates the signature.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)

	// Verify re-parses a signed document and checks the embedded signature
	// against the certificate carried in its KeyInfo. It returns false, never
	// an error, for any structural or cryptographic mismatch.
	Verify(signedXML []byte) bool
}
