package repository

import (
	"context"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
)

// CertificateRepository is the persistence port for certificate records.
type CertificateRepository interface {
	Create(ctx context.Context, cert *entity.Certificate) error
	Update(ctx context.Context, cert *entity.Certificate) error
	GetByID(ctx context.Context, id string) (*entity.Certificate, error)
	// GetActiveByTenant returns the tenant's ACTIVE certificates, newest first.
	GetActiveByTenant(ctx context.Context, tenantID string) ([]*entity.Certificate, error)
}
