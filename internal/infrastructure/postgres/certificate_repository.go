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

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo implements CertificateRepository.
type CertificateRepo struct {
	q Querier
}

// NewCertificateRepository builds the adapter.
func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

const certificateColumns = `id, tenant_id, certificate_id, type, status, subject_dn, issuer_dn,
	       serial_number, certificate_data, private_key_data, issued_at, expires_at,
	       fingerprint, notes, created_at, updated_at`

// Create persists a certificate record.
func (r *CertificateRepo) Create(ctx context.Context, cert *entity.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	now := time.Now()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now

	query := `
		INSERT INTO certificates (id, tenant_id, certificate_id, type, status, subject_dn, issuer_dn,
			serial_number, certificate_data, private_key_data, issued_at, expires_at,
			fingerprint, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		cert.ID, cert.TenantID, nullIfEmpty(cert.CertificateID), cert.Type, cert.Status,
		nullIfEmpty(cert.SubjectDN), nullIfEmpty(cert.IssuerDN), nullIfEmpty(cert.SerialNumber),
		cert.CertificateData, cert.PrivateKeyData, cert.IssuedAt, cert.ExpiresAt,
		nullIfEmpty(cert.Fingerprint), nullIfEmpty(cert.Notes), cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// Update persists status and metadata changes.
func (r *CertificateRepo) Update(ctx context.Context, cert *entity.Certificate) error {
	cert.UpdatedAt = time.Now()

	query := `
		UPDATE certificates
		SET status = $2, subject_dn = $3, issuer_dn = $4, serial_number = $5,
		    expires_at = $6, fingerprint = $7, notes = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		cert.ID, cert.Status, nullIfEmpty(cert.SubjectDN), nullIfEmpty(cert.IssuerDN),
		nullIfEmpty(cert.SerialNumber), cert.ExpiresAt, nullIfEmpty(cert.Fingerprint),
		nullIfEmpty(cert.Notes), cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID loads a certificate record.
func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	c, err := scanCertificate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return c, nil
}

// GetActiveByTenant lists the tenant's ACTIVE certificates, newest first.
func (r *CertificateRepo) GetActiveByTenant(ctx context.Context, tenantID string) ([]*entity.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
		WHERE tenant_id = $1 AND status = $2
		ORDER BY issued_at DESC`
	rows, err := r.q.Query(ctx, query, tenantID, entity.CertificateStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active certificates: %w", err)
	}
	defer rows.Close()

	var certs []*entity.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

func scanCertificate(row pgx.Row) (*entity.Certificate, error) {
	var c entity.Certificate
	var certID, subjectDN, issuerDN, serial, fingerprint, notes *string
	err := row.Scan(
		&c.ID, &c.TenantID, &certID, &c.Type, &c.Status, &subjectDN, &issuerDN,
		&serial, &c.CertificateData, &c.PrivateKeyData, &c.IssuedAt, &c.ExpiresAt,
		&fingerprint, &notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CertificateID = derefStr(certID)
	c.SubjectDN = derefStr(subjectDN)
	c.IssuerDN = derefStr(issuerDN)
	c.SerialNumber = derefStr(serial)
	c.Fingerprint = derefStr(fingerprint)
	c.Notes = derefStr(notes)
	return &c, nil
}
