package submission

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/Mc-Beton/K-fun/internal/domain"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
	"github.com/Mc-Beton/K-fun/internal/infrastructure/ksef/signer"
	"github.com/Mc-Beton/K-fun/pkg/config"
)

// CertificateSource resolves the signing certificate for a tenant.
type CertificateSource interface {
	CertificateFor(ctx context.Context, tenantID string) (tls.Certificate, error)
}

// FileCertificateSource serves one shared certificate loaded from the paths
// in the KSeF configuration, for single-tenant deployments. The file is read
// on every call so a rotated certificate is picked up without a restart.
type FileCertificateSource struct {
	cfg *config.KSeFConfig
}

// NewFileCertificateSource builds the source. Returns an error when no
// certificate path is configured.
func NewFileCertificateSource(cfg *config.KSeFConfig) (*FileCertificateSource, error) {
	if cfg.CertPath == "" {
		return nil, fmt.Errorf("submission: KSEF_CERT_PATH not configured")
	}
	return &FileCertificateSource{cfg: cfg}, nil
}

// CertificateFor ignores the tenant and loads the configured file: a
// .p12/.pfx keystore, or a PEM pair.
func (s *FileCertificateSource) CertificateFor(ctx context.Context, tenantID string) (tls.Certificate, error) {
	path := s.cfg.CertPath
	if strings.HasSuffix(path, ".p12") || strings.HasSuffix(path, ".pfx") {
		return signer.LoadFromP12(path, s.cfg.CertPassword)
	}
	return signer.LoadFromPEM(path, s.cfg.CertKeyPath)
}

// RepositoryCertificateSource serves per-tenant certificates from the
// certificate records in the database.
type RepositoryCertificateSource struct {
	certs repository.CertificateRepository
}

// NewRepositoryCertificateSource builds the source.
func NewRepositoryCertificateSource(certs repository.CertificateRepository) *RepositoryCertificateSource {
	return &RepositoryCertificateSource{certs: certs}
}

// CertificateFor returns the newest usable active certificate for the
// tenant. Records that are active but already past expiry are skipped.
func (s *RepositoryCertificateSource) CertificateFor(ctx context.Context, tenantID string) (tls.Certificate, error) {
	records, err := s.certs.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load certificates: %w", err)
	}
	now := time.Now()
	for _, record := range records {
		if !record.IsValid(now) {
			continue
		}
		cert, err := signer.ParsePEMPair([]byte(record.CertificateData), []byte(record.PrivateKeyData))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("certificate %s: %w", record.ID, err)
		}
		return cert, nil
	}
	return tls.Certificate{}, domain.ErrNoActiveCertificate
}

var _ CertificateSource = (*FileCertificateSource)(nil)
var _ CertificateSource = (*RepositoryCertificateSource)(nil)
