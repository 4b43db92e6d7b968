package repository

import (
	"context"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
)

// SessionRepository is the persistence port for KSeF session records.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.KsefSession) error
	Update(ctx context.Context, session *entity.KsefSession) error
	GetByID(ctx context.Context, id string) (*entity.KsefSession, error)
	// GetOpenByTenant returns sessions in the OPENED/ACTIVE states for a
	// tenant, newest first.
	GetOpenByTenant(ctx context.Context, tenantID string) ([]*entity.KsefSession, error)
}
