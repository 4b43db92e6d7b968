// Enveloped XMLDSig signing for KSeF invoices. Appends <ds:Signature> as the
// last child of the document root.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/Mc-Beton/K-fun/pkg/ksef"
)

// DigitalSignatureService signs invoice documents and verifies its own
// signatures. Both directions push the document through the same
// etree-normalize-then-canonicalize pipeline, so a document signed here
// always verifies here.
type DigitalSignatureService struct{}

// NewDigitalSignatureService creates the service.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign implements pkg/ksef.Signer. The Reference covers the whole document
// (empty URI) with the enveloped-signature and exclusive-C14N transforms.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("ksef: empty XML")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ksef: certificate must carry an RSA private key")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("ksef: parse certificate: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("ksef: parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("ksef: document has no root element")
	}

	// 1) Document digest over the normalized, canonicalized document.
	docDigestB64, err := documentDigest(doc)
	if err != nil {
		return nil, fmt.Errorf("ksef: canonicalize document: %w", err)
	}

	// 2) SignedInfo digest signed with RSA-SHA256.
	signedInfoXML := buildSignedInfo(docDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("ksef: canonicalize SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("ksef: sign SignedInfo: %w", err)
	}

	// 3) Assemble ds:Signature and append it as the last child of the root.
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)
	signatureXML := buildSignature(signedInfoXML, base64.StdEncoding.EncodeToString(signatureValue), certB64)

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("ksef: parse Signature: %w", err)
	}
	root.AddChild(sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("ksef: serialize signed XML: %w", err)
	}
	return out.Bytes(), nil
}

// Verify implements pkg/ksef.Signer. It recomputes the document digest with
// the signature detached and checks the RSA signature over SignedInfo using
// the certificate embedded in KeyInfo. Any structural defect means false.
func (s *DigitalSignatureService) Verify(signedXML []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return false
	}
	root := doc.Root()
	if root == nil {
		return false
	}

	sig := findSignature(root)
	if sig == nil {
		return false
	}

	digestValue := childText(sig, "SignedInfo", "Reference", "DigestValue")
	signatureValue := childText(sig, "SignatureValue")
	certText := childText(sig, "KeyInfo", "X509Data", "X509Certificate")
	if digestValue == "" || signatureValue == "" || certText == "" {
		return false
	}

	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certText))
	if err != nil {
		return false
	}
	x509Cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return false
	}
	pub, ok := x509Cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}

	// Canonicalize SignedInfo before detaching the signature; it carries its
	// own xmlns:ds declaration, so the subtree serializes standalone.
	signedInfo := findChild(sig, "SignedInfo")
	if signedInfo == nil {
		return false
	}
	siDoc := etree.NewDocument()
	siDoc.SetRoot(signedInfo.Copy())
	siBytes, err := siDoc.WriteToBytes()
	if err != nil {
		return false
	}
	canonicalSignedInfo, err := canonicalizeXML(siBytes)
	if err != nil {
		return false
	}

	// Enveloped transform: digest is over the document without the signature.
	root.RemoveChild(sig)
	docDigestB64, err := documentDigest(doc)
	if err != nil {
		return false
	}
	if docDigestB64 != strings.TrimSpace(digestValue) {
		return false
	}

	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureValue))
	if err != nil {
		return false
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, signHash[:], sigBytes) == nil
}

// documentDigest serializes the document through etree and canonicalizes it,
// then returns the Base64 SHA-256 digest. Sign and Verify both compute the
// digest through this function so normalization differences cancel out.
func documentDigest(doc *etree.Document) (string, error) {
	raw, err := doc.WriteToBytes()
	if err != nil {
		return "", err
	}
	canonical, err := canonicalizeXML(raw)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(digest[:]), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgExcC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgExcC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

// findSignature locates the ds:Signature child of the root, prefix aside.
func findSignature(root *etree.Element) *etree.Element {
	return findChild(root, "Signature")
}

// findChild finds a direct child by local tag name, ignoring any namespace
// prefix.
func findChild(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		tag := child.Tag
		if i := strings.Index(tag, ":"); i >= 0 {
			tag = tag[i+1:]
		}
		if tag == local {
			return child
		}
	}
	return nil
}

// childText walks a chain of local element names and returns the text of the
// last one, or empty when any hop is missing.
func childText(el *etree.Element, path ...string) string {
	cur := el
	for _, name := range path {
		cur = findChild(cur, name)
		if cur == nil {
			return ""
		}
	}
	return cur.Text()
}

var _ ksef.Signer = (*DigitalSignatureService)(nil)
