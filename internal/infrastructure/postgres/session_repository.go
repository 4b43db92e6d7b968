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

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo implements SessionRepository.
type SessionRepo struct {
	q Querier
}

// NewSessionRepository builds the adapter.
func NewSessionRepository(q Querier) *SessionRepo {
	return &SessionRepo{q: q}
}

const sessionColumns = `id, tenant_id, reference_number, session_type, status, access_token,
	       token_expires_at, invoice_count, successful_invoice_count, failed_invoice_count,
	       opened_at, closed_at, error_message, created_at`

// Create persists a new session record.
func (r *SessionRepo) Create(ctx context.Context, session *entity.KsefSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO ksef_sessions (id, tenant_id, reference_number, session_type, status, access_token,
			token_expires_at, invoice_count, successful_invoice_count, failed_invoice_count,
			opened_at, closed_at, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		session.ID, session.TenantID, nullIfEmpty(session.ReferenceNumber),
		session.SessionType, session.Status, nullIfEmpty(session.AccessToken),
		session.TokenExpiresAt, session.InvoiceCount, session.SuccessfulInvoiceCount,
		session.FailedInvoiceCount, session.OpenedAt, session.ClosedAt,
		nullIfEmpty(session.ErrorMessage), session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Update persists session state transitions and counters.
func (r *SessionRepo) Update(ctx context.Context, session *entity.KsefSession) error {
	query := `
		UPDATE ksef_sessions
		SET status = $2, access_token = $3, token_expires_at = $4,
		    invoice_count = $5, successful_invoice_count = $6, failed_invoice_count = $7,
		    opened_at = COALESCE($8, opened_at), closed_at = COALESCE($9, closed_at),
		    error_message = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		session.ID, session.Status, nullIfEmpty(session.AccessToken), session.TokenExpiresAt,
		session.InvoiceCount, session.SuccessfulInvoiceCount, session.FailedInvoiceCount,
		session.OpenedAt, session.ClosedAt, nullIfEmpty(session.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID loads a session.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*entity.KsefSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ksef_sessions WHERE id = $1`
	s, err := scanSession(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// GetOpenByTenant lists OPENED/ACTIVE sessions for a tenant, newest first.
func (r *SessionRepo) GetOpenByTenant(ctx context.Context, tenantID string) ([]*entity.KsefSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ksef_sessions
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, tenantID, entity.SessionStatusOpened, entity.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.KsefSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*entity.KsefSession, error) {
	var s entity.KsefSession
	var refNumber, accessToken, errMsg *string
	err := row.Scan(
		&s.ID, &s.TenantID, &refNumber, &s.SessionType, &s.Status, &accessToken,
		&s.TokenExpiresAt, &s.InvoiceCount, &s.SuccessfulInvoiceCount, &s.FailedInvoiceCount,
		&s.OpenedAt, &s.ClosedAt, &errMsg, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ReferenceNumber = derefStr(refNumber)
	s.AccessToken = derefStr(accessToken)
	s.ErrorMessage = derefStr(errMsg)
	return &s, nil
}
