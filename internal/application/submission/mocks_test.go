package submission

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mc-Beton/K-fun/internal/domain"
	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	ksefapi "github.com/Mc-Beton/K-fun/internal/infrastructure/ksef"
)

// ── in-memory repositories ────────────────────────────────────────────────────

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]entity.Invoice
	updates  int
}

func newMemInvoiceRepo(invoices ...*entity.Invoice) *memInvoiceRepo {
	r := &memInvoiceRepo{invoices: make(map[string]entity.Invoice)}
	for _, inv := range invoices {
		r.invoices[inv.ID] = *inv
	}
	return r
}

func (r *memInvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *memInvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return domain.ErrNotFound
	}
	r.invoices[inv.ID] = *inv
	r.updates++
	return nil
}

func (r *memInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := inv
	return &copy, nil
}

func (r *memInvoiceRepo) GetByTenant(ctx context.Context, tenantID string) ([]*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID {
			copy := inv
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.invoices, id)
	return nil
}

func (r *memInvoiceRepo) stored(t *testing.T, id string) entity.Invoice {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	require.True(t, ok)
	return inv
}

type memTenantRepo struct {
	tenants map[string]entity.Tenant
}

func newMemTenantRepo(tenants ...*entity.Tenant) *memTenantRepo {
	r := &memTenantRepo{tenants: make(map[string]entity.Tenant)}
	for _, tn := range tenants {
		r.tenants[tn.ID] = *tn
	}
	return r
}

func (r *memTenantRepo) Create(ctx context.Context, tn *entity.Tenant) error {
	r.tenants[tn.ID] = *tn
	return nil
}

func (r *memTenantRepo) Update(ctx context.Context, tn *entity.Tenant) error {
	r.tenants[tn.ID] = *tn
	return nil
}

func (r *memTenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	tn, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := tn
	return &copy, nil
}

func (r *memTenantRepo) GetByNIP(ctx context.Context, nip string) (*entity.Tenant, error) {
	for _, tn := range r.tenants {
		if tn.NIP == nip {
			copy := tn
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions []*entity.KsefSession
}

func (r *memSessionRepo) Create(ctx context.Context, s *entity.KsefSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = time.Now().Format("150405.000000000")
	}
	copy := *s
	r.sessions = append([]*entity.KsefSession{&copy}, r.sessions...)
	return nil
}

func (r *memSessionRepo) Update(ctx context.Context, s *entity.KsefSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.sessions {
		if existing.ID == s.ID {
			copy := *s
			r.sessions[i] = &copy
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*entity.KsefSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			copy := *s
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// stored snapshots the i-th session record, newest first.
func (r *memSessionRepo) stored(t *testing.T, i int) entity.KsefSession {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Less(t, i, len(r.sessions))
	return *r.sessions[i]
}

func (r *memSessionRepo) GetOpenByTenant(ctx context.Context, tenantID string) ([]*entity.KsefSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.KsefSession
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.IsActive() {
			copy := *s
			out = append(out, &copy)
		}
	}
	return out, nil
}

// ── fake KSeF API ─────────────────────────────────────────────────────────────

type fakeAPI struct {
	mu            sync.Mutex
	initCalls     int
	sendCalls     int
	terminated    []string
	lastSignedXML []byte

	initErr      error
	sendErr      error
	upoErr       error
	terminateErr error
}

func (a *fakeAPI) InitSession(ctx context.Context, nip, authToken string) (*ksefapi.SessionResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initCalls++
	if a.initErr != nil {
		return nil, a.initErr
	}
	return &ksefapi.SessionResponse{
		SessionToken:    ksefapi.SessionToken{Token: "session-token", ExpiresIn: 3600},
		ReferenceNumber: "session-ref",
	}, nil
}

func (a *fakeAPI) SendInvoice(ctx context.Context, sessionToken string, signedXML []byte) (*ksefapi.InvoiceResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendCalls++
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	a.lastSignedXML = signedXML
	return &ksefapi.InvoiceResponse{
		ElementReferenceNumber: "KSEF-2025-0001",
		ReferenceNumber:        "ref-0001",
		ProcessingCode:         100,
	}, nil
}

func (a *fakeAPI) GetUpo(ctx context.Context, sessionToken, referenceNumber string) (*ksefapi.UpoResponse, error) {
	if a.upoErr != nil {
		return nil, a.upoErr
	}
	return &ksefapi.UpoResponse{ReferenceNumber: referenceNumber, Upo: "dXBvLWNvbnRlbnQ="}, nil
}

func (a *fakeAPI) SessionStatus(ctx context.Context, sessionToken, referenceNumber string) (*ksefapi.SessionStatusResponse, error) {
	return &ksefapi.SessionStatusResponse{ReferenceNumber: referenceNumber, ProcessingCode: 310}, nil
}

func (a *fakeAPI) TerminateSession(ctx context.Context, sessionToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.terminateErr != nil {
		return a.terminateErr
	}
	a.terminated = append(a.terminated, sessionToken)
	return nil
}

func (a *fakeAPI) CheckStatus(ctx context.Context) bool { return true }

var _ ksefapi.API = (*fakeAPI)(nil)

// ── certificate source ────────────────────────────────────────────────────────

type staticCertSource struct {
	cert tls.Certificate
	err  error
}

func (s *staticCertSource) CertificateFor(ctx context.Context, tenantID string) (tls.Certificate, error) {
	if s.err != nil {
		return tls.Certificate{}, s.err
	}
	return s.cert, nil
}

func generateCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ACME Sp. z o.o.", Country: []string{"PL"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv, Leaf: leaf}
}

var errBoom = errors.New("boom")
