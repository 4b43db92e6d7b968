// Package ksef holds shared constants and ports for the KSeF 2.0 integration.
package ksef

// FA(3) schema identity. Downstream consumers depend on the exact namespace
// and element ordering, so these values must never drift from the published
// Ministry of Finance schema.
const (
	// Namespace is the FA(3) document namespace (CRD 2023-06-29).
	Namespace = "http://crd.gov.pl/wzor/2023/06/29/12648/"
	// NamespaceXSI for the schemaLocation attribute.
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"

	// FormCode and friends identify the FA(3) form in Naglowek.
	FormCode      = "FA"
	FormCodeSys   = "FA(3)"
	SchemaVersion = "1-0E"
	FormVariant   = "3"

	// SystemInfo identifies this generator in the document header.
	SystemInfo = "KSeF Hub v2.0"
)

// Fixed invoice body codes (FA(3) catalogue values).
const (
	CurrencyPLN = "PLN"
	CountryPL   = "PL"

	// PaymentMethodTransfer is FormaPlatnosci code 6 (bank transfer).
	PaymentMethodTransfer = "6"
	// PaymentTermDays: fixed payment term of issue date + 14 days.
	PaymentTermDays = 14

	// UnitPiece is the P_8B unit of measure for the single generated line.
	UnitPiece = "szt"
	// VATRateStandard is the P_12 standard VAT rate.
	VATRateStandard = "23"

	// AnnotationNotApplicable is the FA(3) "does not apply" flag value for
	// P_16..P_19 (cash accounting, self-billing, reverse charge, split payment).
	AnnotationNotApplicable = "2"

	RodzajFakturyVAT = "VAT"
)

// Environment identifiers for the KSeF API.
const (
	EnvTest = "test"
	EnvDemo = "demo"
	EnvProd = "prod"
)
