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

var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo implements TenantRepository.
type TenantRepo struct {
	q Querier
}

// NewTenantRepository builds the adapter.
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

const tenantColumns = `id, nip, name, full_name, email, phone, address, active, status, notes, created_at, updated_at`

// Create persists a new tenant. NIP is unique across tenants.
func (r *TenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	query := `
		INSERT INTO tenants (id, nip, name, full_name, email, phone, address, active, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		tenant.ID, tenant.NIP, tenant.Name, nullIfEmpty(tenant.FullName),
		nullIfEmpty(tenant.Email), nullIfEmpty(tenant.Phone), nullIfEmpty(tenant.Address),
		tenant.Active, tenant.Status, nullIfEmpty(tenant.Notes),
		tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant NIP already registered: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// Update persists the tenant profile.
func (r *TenantRepo) Update(ctx context.Context, tenant *entity.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
		UPDATE tenants
		SET name = $2, full_name = $3, email = $4, phone = $5, address = $6,
		    active = $7, status = $8, notes = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		tenant.ID, tenant.Name, nullIfEmpty(tenant.FullName),
		nullIfEmpty(tenant.Email), nullIfEmpty(tenant.Phone), nullIfEmpty(tenant.Address),
		tenant.Active, tenant.Status, nullIfEmpty(tenant.Notes), tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID loads a tenant by id.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByNIP loads a tenant by its tax identifier.
func (r *TenantRepo) GetByNIP(ctx context.Context, nip string) (*entity.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE nip = $1`
	return r.getOne(ctx, query, nip)
}

func (r *TenantRepo) getOne(ctx context.Context, query string, arg any) (*entity.Tenant, error) {
	var t entity.Tenant
	var fullName, email, phone, address, notes *string
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.NIP, &t.Name, &fullName, &email, &phone, &address,
		&t.Active, &t.Status, &notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.FullName = derefStr(fullName)
	t.Email = derefStr(email)
	t.Phone = derefStr(phone)
	t.Address = derefStr(address)
	t.Notes = derefStr(notes)
	return &t, nil
}
