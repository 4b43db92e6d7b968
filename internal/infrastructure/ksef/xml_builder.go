package ksef

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	pkgksef "github.com/Mc-Beton/K-fun/pkg/ksef"
)

// Buyer-data fallbacks. The hub has no structured buyer entity yet; buyer
// identity is extracted from the invoice notes field ("NIP:" / "Nabywca:"
// markers) and falls back to these mock values. This is a known limitation,
// kept until a Buyer entity exists, not a defect to patch around.
const (
	defaultBuyerNIP     = "9999999999"
	defaultBuyerName    = "Firma Nabywca Sp. z o.o."
	defaultBuyerAddress = "ul. Nabywcy 10, 00-001 Warszawa"

	defaultSellerAddress = "ul. Przykładowa 1, 00-000 Warszawa"
	defaultStreetLine    = "ul. Nieznana 1"
	defaultPostalCode    = "00-000"
	defaultBuyerPostal   = "00-001"
	defaultCity          = "Warszawa"

	defaultLineItemName = "Usługa/Towar zgodnie z umową"
)

// InvoiceBuildContext carries everything Build needs. Rendering is a pure
// function of this context: identical input produces byte-identical output.
type InvoiceBuildContext struct {
	Invoice *entity.Invoice
	Tenant  *entity.Tenant
}

// XMLBuilderService renders an invoice into the FA(3) document for KSeF 2.0.
// Section order Naglowek, Podmiot1, Podmiot2, Fa, FaWiersz is mandated by the
// schema; consumers break on reordering even when the XML stays well-formed.
type XMLBuilderService struct{}

// NewXMLBuilderService creates the service.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build generates the FA(3) invoice document. All free text passes through
// encoding/xml and therefore has the five reserved characters escaped.
func (s *XMLBuilderService) Build(ctx *InvoiceBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Invoice == nil || ctx.Tenant == nil {
		return nil, fmt.Errorf("ksef: invoice and tenant are required in the build context")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "Faktura"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: pkgksef.Namespace},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: pkgksef.NamespaceXSI},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeHeader(enc, ctx)
	s.writeSeller(enc, ctx)
	s.writeBuyer(enc, ctx)
	s.writeBody(enc, ctx)
	s.writeLineItem(enc, ctx)

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeHeader emits Naglowek: form identity and the generation timestamp,
// which is derived from the invoice's creation time so rendering stays
// deterministic.
func (s *XMLBuilderService) writeHeader(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	startEl(enc, "Naglowek")
	writeElAttrs(enc, "KodFormularza", pkgksef.FormCode,
		xml.Attr{Name: xml.Name{Local: "kodSystemowy"}, Value: pkgksef.FormCodeSys},
		xml.Attr{Name: xml.Name{Local: "wersjaSchemy"}, Value: pkgksef.SchemaVersion},
	)
	writeEl(enc, "WariantFormularza", pkgksef.FormVariant)
	writeEl(enc, "DataWytworzeniaFa", ctx.Invoice.CreatedAt.Format("2006-01-02"))
	writeEl(enc, "SystemInfo", pkgksef.SystemInfo)
	endEl(enc, "Naglowek")
}

// writeSeller emits Podmiot1 from the tenant profile.
func (s *XMLBuilderService) writeSeller(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	t := ctx.Tenant

	startEl(enc, "Podmiot1")
	startEl(enc, "DaneIdentyfikacyjne")
	writeEl(enc, "NIP", pkgksef.NormalizeNIP(t.NIP))
	name := t.FullName
	if name == "" {
		name = t.Name
	}
	writeEl(enc, "Nazwa", name)
	endEl(enc, "DaneIdentyfikacyjne")

	address := t.Address
	if address == "" {
		address = defaultSellerAddress
	}
	s.writeAddress(enc, address, defaultPostalCode)

	if t.Email != "" {
		writeEl(enc, "AdresEmail", t.Email)
	}
	if t.Phone != "" {
		writeEl(enc, "NrTelefonu", t.Phone)
	}
	endEl(enc, "Podmiot1")
}

// writeBuyer emits Podmiot2. Buyer identity comes from the notes heuristics
// (see the constants above); private individuals without a NIP get BrakID.
func (s *XMLBuilderService) writeBuyer(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	startEl(enc, "Podmiot2")
	startEl(enc, "DaneIdentyfikacyjne")

	if nip := extractBuyerNIP(ctx.Invoice.Notes); nip != "" {
		writeEl(enc, "NIP", nip)
	} else {
		// No identifier: natural person not running a business.
		writeEl(enc, "BrakID", "1")
	}
	writeEl(enc, "Nazwa", extractBuyerName(ctx.Invoice.Notes))
	endEl(enc, "DaneIdentyfikacyjne")

	s.writeAddress(enc, defaultBuyerAddress, defaultBuyerPostal)
	endEl(enc, "Podmiot2")
}

// writeAddress decomposes a free-text "street, postcode city" address into
// the Adres group. The split is on the first comma; the second part splits on
// the first space into postal code and city. When decomposition fails the
// hard-coded fallbacks are used.
func (s *XMLBuilderService) writeAddress(enc *xml.Encoder, address, fallbackPostal string) {
	startEl(enc, "Adres")
	writeEl(enc, "KodKraju", pkgksef.CountryPL)

	parts := strings.SplitN(address, ",", 2)
	street := strings.TrimSpace(parts[0])
	if street == "" {
		street = defaultStreetLine
	}
	writeEl(enc, "AdresL1", street)

	if len(parts) > 1 {
		cityParts := strings.SplitN(strings.TrimSpace(parts[1]), " ", 2)
		if cityParts[0] != "" {
			writeEl(enc, "KodPocztowy", cityParts[0])
		}
		if len(cityParts) > 1 {
			writeEl(enc, "Miejscowosc", cityParts[1])
		}
	} else {
		writeEl(enc, "KodPocztowy", fallbackPostal)
		writeEl(enc, "Miejscowosc", defaultCity)
	}
	endEl(enc, "Adres")
}

// writeBody emits Fa: currency, dates, the three monetary totals rounded
// half-up to two decimals, the four annotation flags, payment term and method.
func (s *XMLBuilderService) writeBody(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	inv := ctx.Invoice

	currency := inv.Currency
	if currency == "" {
		currency = pkgksef.CurrencyPLN
	}
	saleDate := inv.SaleDate
	if saleDate.IsZero() {
		saleDate = inv.InvoiceDate
	}

	startEl(enc, "Fa")
	writeEl(enc, "KodWaluty", currency)
	writeEl(enc, "P_1", inv.InvoiceDate.Format("2006-01-02"))
	writeEl(enc, "P_2", inv.InvoiceNumber)
	writeEl(enc, "P_6", saleDate.Format("2006-01-02"))
	writeEl(enc, "P_13_1", formatDecimal(inv.NetAmount))
	writeEl(enc, "P_14_1", formatDecimal(inv.VatAmount))
	writeEl(enc, "P_15", formatDecimal(inv.GrossAmount))

	// Annotations: cash accounting, self-billing, reverse charge, split
	// payment. All fixed to "does not apply".
	startEl(enc, "Adnotacje")
	writeEl(enc, "P_16", pkgksef.AnnotationNotApplicable)
	writeEl(enc, "P_17", pkgksef.AnnotationNotApplicable)
	writeEl(enc, "P_18", pkgksef.AnnotationNotApplicable)
	writeEl(enc, "P_19", pkgksef.AnnotationNotApplicable)
	endEl(enc, "Adnotacje")

	writeEl(enc, "RodzajFaktury", pkgksef.RodzajFakturyVAT)

	startEl(enc, "TerminPlatnosci")
	writeEl(enc, "Termin", inv.InvoiceDate.AddDate(0, 0, pkgksef.PaymentTermDays).Format("2006-01-02"))
	endEl(enc, "TerminPlatnosci")

	writeEl(enc, "FormaPlatnosci", pkgksef.PaymentMethodTransfer)
	endEl(enc, "Fa")
}

// writeLineItem emits the single FaWiersz row. Line items are not modeled as
// a separate table yet, so row 1 carries the whole invoice: description from
// notes, quantity 1, net amount equal to the invoice net total, standard rate.
func (s *XMLBuilderService) writeLineItem(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	inv := ctx.Invoice

	name := inv.Notes
	if name == "" {
		name = defaultLineItemName
	}

	startEl(enc, "FaWiersz")
	writeEl(enc, "NrWierszaFa", "1")
	writeEl(enc, "P_7", name)
	writeEl(enc, "P_8B", pkgksef.UnitPiece)
	writeEl(enc, "P_9A", "1.00")
	writeEl(enc, "P_11", formatDecimal(inv.NetAmount))
	writeEl(enc, "P_11A", formatDecimal(inv.NetAmount))
	writeEl(enc, "P_12", pkgksef.VATRateStandard)
	endEl(enc, "FaWiersz")
}

// ── buyer extraction heuristics ───────────────────────────────────────────────

// extractBuyerNIP pulls the buyer NIP from a "NIP: <digits>" marker in the
// notes, or returns the mock default.
func extractBuyerNIP(notes string) string {
	if strings.Contains(notes, "NIP:") {
		rest := notes[strings.Index(notes, "NIP:")+len("NIP:"):]
		return strings.TrimSpace(strings.SplitN(rest, ",", 2)[0])
	}
	return defaultBuyerNIP
}

// extractBuyerName pulls the buyer name from a "Nabywca: <name>" marker in
// the notes, or returns the mock default.
func extractBuyerName(notes string) string {
	if strings.Contains(notes, "Nabywca:") {
		rest := notes[strings.Index(notes, "Nabywca:")+len("Nabywca:"):]
		return strings.TrimSpace(strings.SplitN(rest, ",", 2)[0])
	}
	return defaultBuyerName
}

// ── element helpers ───────────────────────────────────────────────────────────

func startEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func endEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	startEl(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	endEl(enc, local)
}

func writeElAttrs(enc *xml.Encoder, local, value string, attrs ...xml.Attr) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs})
	_ = enc.EncodeToken(xml.CharData(value))
	endEl(enc, local)
}

// formatDecimal renders a monetary amount rounded half-up to exactly two
// decimal places.
func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
