package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Test Sp. z o.o.", Country: []string{"PL"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}
}

const testInvoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<Faktura xmlns="http://crd.gov.pl/wzor/2023/06/29/12648/">
  <Naglowek>
    <KodFormularza kodSystemowy="FA(3)" wersjaSchemy="1-0E">FA</KodFormularza>
    <WariantFormularza>3</WariantFormularza>
  </Naglowek>
  <Fa>
    <P_2>FV/2025/09/001</P_2>
    <P_15>1230.00</P_15>
  </Fa>
</Faktura>`

func TestSignAppendsEnvelopedSignature(t *testing.T) {
	s := NewDigitalSignatureService()

	signed, err := s.Sign([]byte(testInvoiceXML), testCertificate(t))
	require.NoError(t, err)

	out := string(signed)
	assert.Contains(t, out, `<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">`)
	assert.Contains(t, out, `<ds:Reference URI="">`)
	assert.Contains(t, out, TransformEnveloped)
	assert.Contains(t, out, AlgRSASHA256)
	assert.Contains(t, out, "<ds:X509Certificate>")

	// Signature is the last element before the closing root tag.
	sigIdx := strings.LastIndex(out, "</ds:Signature>")
	rootIdx := strings.LastIndex(out, "</Faktura>")
	require.Greater(t, rootIdx, sigIdx)
	assert.Equal(t, -1, strings.Index(out[sigIdx+len("</ds:Signature>"):rootIdx], "<"))
}

func TestSignedDocumentVerifies(t *testing.T) {
	s := NewDigitalSignatureService()

	signed, err := s.Sign([]byte(testInvoiceXML), testCertificate(t))
	require.NoError(t, err)

	assert.True(t, s.Verify(signed))
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := NewDigitalSignatureService()

	signed, err := s.Sign([]byte(testInvoiceXML), testCertificate(t))
	require.NoError(t, err)

	tampered := strings.Replace(string(signed), "1230.00", "9230.00", 1)
	assert.False(t, s.Verify([]byte(tampered)))
}

func TestVerifyRejectsUnsignedDocument(t *testing.T) {
	s := NewDigitalSignatureService()

	assert.False(t, s.Verify([]byte(testInvoiceXML)))
	assert.False(t, s.Verify([]byte("not xml")))
	assert.False(t, s.Verify(nil))
}

func TestVerifyRejectsForeignSignatureValue(t *testing.T) {
	s := NewDigitalSignatureService()

	first, err := s.Sign([]byte(testInvoiceXML), testCertificate(t))
	require.NoError(t, err)
	second, err := s.Sign([]byte(testInvoiceXML), testCertificate(t))
	require.NoError(t, err)

	// Splice the second document's SignatureValue into the first.
	val := func(doc string) string {
		start := strings.Index(doc, "<ds:SignatureValue>") + len("<ds:SignatureValue>")
		end := strings.Index(doc, "</ds:SignatureValue>")
		return doc[start:end]
	}
	spliced := strings.Replace(string(first), val(string(first)), val(string(second)), 1)
	assert.False(t, s.Verify([]byte(spliced)))
}

func TestSignRejectsBadInput(t *testing.T) {
	s := NewDigitalSignatureService()
	cert := testCertificate(t)

	_, err := s.Sign(nil, cert)
	assert.Error(t, err)

	_, err = s.Sign([]byte("<open>"), cert)
	assert.Error(t, err)

	_, err = s.Sign([]byte(testInvoiceXML), tls.Certificate{Certificate: cert.Certificate})
	assert.Error(t, err)
}
