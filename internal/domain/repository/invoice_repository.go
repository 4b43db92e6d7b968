package repository

import (
	"context"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
)

// InvoiceRepository is the persistence port for invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	// Update persists all KSeF-related fields: status, ksef_number, xml
	// content, signed xml, upo content, error message, timestamps.
	Update(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByTenant(ctx context.Context, tenantID string) ([]*entity.Invoice, error)
	// Delete removes a draft invoice. Implementations must refuse non-drafts.
	Delete(ctx context.Context, id string) error
}
