package submission

import (
	"context"
	"time"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
	ksefapi "github.com/Mc-Beton/K-fun/internal/infrastructure/ksef"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

// defaultSessionExpirySeconds is assumed when the open-session response
// carries no expiresIn.
const defaultSessionExpirySeconds = 3600

// SessionService owns the session lifecycle: opening sessions through the
// cache, recording them, and closing them. Session records are an audit
// trail; the cache is the source of truth for which token a submission uses.
type SessionService struct {
	client   ksefapi.API
	cache    *ksefapi.SessionCache
	sessions repository.SessionRepository
	log      *logger.Logger
}

// NewSessionService builds the service.
func NewSessionService(client ksefapi.API, cache *ksefapi.SessionCache, sessions repository.SessionRepository, log *logger.Logger) *SessionService {
	return &SessionService{client: client, cache: cache, sessions: sessions, log: log}
}

// TokenFor returns a session token for the tenant, reusing a cached one when
// available and opening a new session otherwise.
func (s *SessionService) TokenFor(ctx context.Context, tenant *entity.Tenant, initialToken string) (string, error) {
	return s.cache.GetOrCreate(ctx, tenant.NIP, initialToken, func(ctx context.Context) (string, error) {
		return s.openSession(ctx, tenant, initialToken)
	})
}

// openSession performs the open exchange and records the session. The
// authorization token sent to KSeF is derived from the tenant's initial
// token, never the initial token itself.
func (s *SessionService) openSession(ctx context.Context, tenant *entity.Tenant, initialToken string) (string, error) {
	resp, err := s.client.InitSession(ctx, tenant.NIP, ksefapi.AuthorizationToken(initialToken))
	if err != nil {
		return "", err
	}

	expiresIn := resp.SessionToken.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultSessionExpirySeconds
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(expiresIn) * time.Second)

	record := &entity.KsefSession{
		TenantID:        tenant.ID,
		ReferenceNumber: resp.ReferenceNumber,
		SessionType:     entity.SessionTypeOnline,
		Status:          entity.SessionStatusOpened,
		AccessToken:     resp.SessionToken.Token,
		TokenExpiresAt:  &expiresAt,
		OpenedAt:        &now,
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		// The session is open and usable; a missing audit row must not fail
		// the submission.
		s.log.Error().Err(err).Str("tenant", tenant.ID).Msg("failed to record KSeF session")
	}
	return resp.SessionToken.Token, nil
}

// CloseSessions terminates every open session of the tenant. Expired
// sessions are only marked as such. A failed terminate call is recorded on
// the session and logged, never re-raised: the session expires on its own
// regardless.
func (s *SessionService) CloseSessions(ctx context.Context, tenant *entity.Tenant) error {
	open, err := s.sessions.GetOpenByTenant(ctx, tenant.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sess := range open {
		s.cache.Invalidate(sess.AccessToken)

		if !sess.IsTokenValid(now) {
			sess.Status = entity.SessionStatusExpired
			s.updateRecord(ctx, sess)
			continue
		}

		if err := s.client.TerminateSession(ctx, sess.AccessToken); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("failed to terminate KSeF session")
			sess.Status = entity.SessionStatusError
			sess.ErrorMessage = err.Error()
			s.updateRecord(ctx, sess)
			continue
		}

		closedAt := time.Now()
		sess.Status = entity.SessionStatusClosed
		sess.ClosedAt = &closedAt
		s.updateRecord(ctx, sess)
	}
	return nil
}

// RecordInvoiceOutcome bumps the session counters for the newest open
// session of the tenant, if any.
func (s *SessionService) RecordInvoiceOutcome(ctx context.Context, tenantID string, ok bool) {
	open, err := s.sessions.GetOpenByTenant(ctx, tenantID)
	if err != nil || len(open) == 0 {
		return
	}
	sess := open[0]
	sess.InvoiceCount++
	if ok {
		sess.SuccessfulInvoiceCount++
	} else {
		sess.FailedInvoiceCount++
	}
	if sess.Status == entity.SessionStatusOpened {
		sess.Status = entity.SessionStatusActive
	}
	s.updateRecord(ctx, sess)
}

func (s *SessionService) updateRecord(ctx context.Context, sess *entity.KsefSession) {
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.log.Error().Err(err).Str("session", sess.ID).Msg("failed to update session record")
	}
}
