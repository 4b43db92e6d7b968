package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Mc-Beton/K-fun/internal/domain"
	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implements InvoiceRepository (usable with pool or tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository builds the adapter. Pass a pool or tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, tenant_id, invoice_number, ksef_number, reference_number,
	       type, status, invoice_date, sale_date,
	       net_amount, vat_amount, gross_amount, currency,
	       xml_content, signed_xml, upo_content, error_message, notes,
	       sent_to_ksef_at, accepted_at, created_at, updated_at`

// Create persists a new invoice.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	now := time.Now()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	query := `
		INSERT INTO invoices (id, tenant_id, invoice_number, ksef_number, reference_number,
			type, status, invoice_date, sale_date,
			net_amount, vat_amount, gross_amount, currency,
			xml_content, signed_xml, upo_content, error_message, notes,
			sent_to_ksef_at, accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.TenantID, invoice.InvoiceNumber,
		nullIfEmpty(invoice.KsefNumber), nullIfEmpty(invoice.ReferenceNumber),
		invoice.Type, invoice.Status, invoice.InvoiceDate, invoice.SaleDate,
		invoice.NetAmount, invoice.VatAmount, invoice.GrossAmount, invoice.Currency,
		nullIfEmpty(invoice.XMLContent), nullIfEmpty(invoice.SignedXML),
		nullIfEmpty(invoice.UpoContent), nullIfEmpty(invoice.ErrorMessage), nullIfEmpty(invoice.Notes),
		invoice.SentToKsefAt, invoice.AcceptedAt, invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice number already exists: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update persists the submission outcome fields of the invoice.
func (r *InvoiceRepo) Update(ctx context.Context, invoice *entity.Invoice) error {
	invoice.UpdatedAt = time.Now()

	// ksef_number is assigned once; COALESCE keeps an existing value when the
	// update carries none.
	query := `
		UPDATE invoices
		SET ksef_number      = COALESCE($2, ksef_number),
		    reference_number = COALESCE($3, reference_number),
		    status           = $4,
		    xml_content      = COALESCE($5, xml_content),
		    signed_xml       = COALESCE($6, signed_xml),
		    upo_content      = COALESCE($7, upo_content),
		    error_message    = $8,
		    sent_to_ksef_at  = COALESCE($9, sent_to_ksef_at),
		    accepted_at      = COALESCE($10, accepted_at),
		    updated_at       = $11
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		invoice.ID,
		nullIfEmpty(invoice.KsefNumber),
		nullIfEmpty(invoice.ReferenceNumber),
		invoice.Status,
		nullIfEmpty(invoice.XMLContent),
		nullIfEmpty(invoice.SignedXML),
		nullIfEmpty(invoice.UpoContent),
		nullIfEmpty(invoice.ErrorMessage),
		invoice.SentToKsefAt,
		invoice.AcceptedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID loads a single invoice.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetByTenant lists a tenant's invoices, newest first.
func (r *InvoiceRepo) GetByTenant(ctx context.Context, tenantID string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Delete removes a draft invoice. Non-drafts are refused.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !inv.Deletable() {
		return fmt.Errorf("invoice %s has status %s: %w", id, inv.Status, domain.ErrAlreadySent)
	}
	_, err = r.q.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND status = $2`, id, entity.InvoiceStatusDraft)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var ksefNumber, refNumber, xmlContent, signedXML, upoContent, errMsg, notes *string
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &ksefNumber, &refNumber,
		&inv.Type, &inv.Status, &inv.InvoiceDate, &inv.SaleDate,
		&inv.NetAmount, &inv.VatAmount, &inv.GrossAmount, &inv.Currency,
		&xmlContent, &signedXML, &upoContent, &errMsg, &notes,
		&inv.SentToKsefAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.KsefNumber = derefStr(ksefNumber)
	inv.ReferenceNumber = derefStr(refNumber)
	inv.XMLContent = derefStr(xmlContent)
	inv.SignedXML = derefStr(signedXML)
	inv.UpoContent = derefStr(upoContent)
	inv.ErrorMessage = derefStr(errMsg)
	inv.Notes = derefStr(notes)
	return &inv, nil
}
