package ksef

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Mc-Beton/K-fun/pkg/config"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

const (
	sessionTokenHeader = "SessionToken"

	defaultTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second

	maxResponseBytes = 1 << 20
)

// API is the outbound port for the KSeF interactive session protocol. The
// concrete implementation is HTTP; tests inject a mock.
type API interface {
	InitSession(ctx context.Context, nip, authToken string) (*SessionResponse, error)
	SendInvoice(ctx context.Context, sessionToken string, signedXML []byte) (*InvoiceResponse, error)
	GetUpo(ctx context.Context, sessionToken, referenceNumber string) (*UpoResponse, error)
	SessionStatus(ctx context.Context, sessionToken, referenceNumber string) (*SessionStatusResponse, error)
	TerminateSession(ctx context.Context, sessionToken string) error
	CheckStatus(ctx context.Context) bool
}

// ConnectivityNotifier receives connect/disconnect transition events from the
// health probe.
type ConnectivityNotifier interface {
	KsefConnected(environment, baseURL string)
	KsefConnectionFailed(reason, details string)
}

// Client talks to the KSeF API. Stateless per call; the only retained state
// is the last known connectivity bit used to de-duplicate probe
// notifications.
type Client struct {
	baseURL     string
	environment string
	timeout     time.Duration
	httpClient  *http.Client
	notifier    ConnectivityNotifier
	log         *logger.Logger

	mu            sync.Mutex
	lastConnState *bool
}

// NewClient builds the client from configuration. notifier may be nil, in
// which case probe transitions are only logged.
func NewClient(cfg *config.KSeFConfig, notifier ConnectivityNotifier, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		environment: cfg.Environment,
		timeout:     timeout,
		httpClient:  &http.Client{},
		notifier:    notifier,
		log:         log,
	}
}

// AuthorizationToken derives the session authorization token from a tenant's
// initial KSeF token: Base64 of its SHA-256 digest.
func AuthorizationToken(initialToken string) string {
	sum := sha256.Sum256([]byte(initialToken))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// InitSession opens an interactive session for the given NIP. The auth token
// goes in the SessionToken header; the returned token authorizes the
// follow-up calls.
func (c *Client) InitSession(ctx context.Context, nip, authToken string) (*SessionResponse, error) {
	c.log.Info().Str("nip", nip).Msg("initializing KSeF session")

	body := SessionRequest{
		ContextIdentifier: ContextIdentifier{Type: "onip", Identifier: nip},
	}
	var out SessionResponse
	if err := c.call(ctx, "init-session", http.MethodPost, "/session/init", authToken, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendInvoice transmits a signed invoice document. The body carries the
// SHA-256 hash of the exact bytes plus the document Base64-encoded.
func (c *Client) SendInvoice(ctx context.Context, sessionToken string, signedXML []byte) (*InvoiceResponse, error) {
	c.log.Info().Int("size", len(signedXML)).Msg("sending invoice to KSeF")

	sum := sha256.Sum256(signedXML)
	body := InvoiceRequest{
		InvoiceHash: InvoiceHash{
			HashSHA: HashSHA{
				Algorithm: "SHA-256",
				Encoding:  "Base64",
				Value:     base64.StdEncoding.EncodeToString(sum[:]),
			},
			FileSize: int64(len(signedXML)),
		},
		InvoicePayload: InvoicePayload{
			Type:        "plain",
			InvoiceBody: base64.StdEncoding.EncodeToString(signedXML),
		},
	}
	var out InvoiceResponse
	if err := c.call(ctx, "send-invoice", http.MethodPut, "/invoice/send", sessionToken, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpo fetches the official confirmation document for a submitted invoice.
func (c *Client) GetUpo(ctx context.Context, sessionToken, referenceNumber string) (*UpoResponse, error) {
	c.log.Info().Str("reference", referenceNumber).Msg("fetching UPO")

	var out UpoResponse
	path := "/invoice/upo/" + referenceNumber
	if err := c.call(ctx, "get-upo", http.MethodGet, path, sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionStatus queries the processing state of an open session.
func (c *Client) SessionStatus(ctx context.Context, sessionToken, referenceNumber string) (*SessionStatusResponse, error) {
	var out SessionStatusResponse
	path := "/session/status/" + referenceNumber
	if err := c.call(ctx, "session-status", http.MethodGet, path, sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TerminateSession explicitly closes a session. The session would expire on
// its own; this is a courtesy to the KSeF service.
func (c *Client) TerminateSession(ctx context.Context, sessionToken string) error {
	c.log.Info().Msg("terminating KSeF session")
	return c.call(ctx, "terminate-session", http.MethodGet, "/session/terminate", sessionToken, nil, nil)
}

// CheckStatus probes the unauthenticated status endpoint with a short
// timeout. Transition events fire only when the connectivity bit flips, so
// steady-state probing stays quiet.
func (c *Client) CheckStatus(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/common/status", nil)
	if err != nil {
		c.recordConnState(false, err.Error())
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordConnState(false, err.Error())
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordConnState(false, fmt.Sprintf("HTTP %d", resp.StatusCode))
		return false
	}
	c.recordConnState(true, "")
	return true
}

// recordConnState updates the one-bit connectivity flag and notifies only on
// a flip.
func (c *Client) recordConnState(up bool, reason string) {
	c.mu.Lock()
	flipped := c.lastConnState == nil || *c.lastConnState != up
	c.lastConnState = &up
	c.mu.Unlock()

	if !flipped {
		return
	}
	if up {
		c.log.Info().Str("url", c.baseURL).Msg("KSeF API reachable")
		if c.notifier != nil {
			c.notifier.KsefConnected(c.environment, c.baseURL)
		}
	} else {
		c.log.Warn().Str("url", c.baseURL).Str("reason", reason).Msg("KSeF API unreachable")
		if c.notifier != nil {
			details := fmt.Sprintf(`{"url": %q, "error": %q}`, c.baseURL, reason)
			c.notifier.KsefConnectionFailed(reason, details)
		}
	}
}

// call executes a single bounded JSON request. Any failure mode comes back
// as *APIError; the client never retries.
func (c *Client) call(ctx context.Context, op, method, path, sessionToken string, reqBody, respBody any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set(sessionTokenHeader, sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(raw))}
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var _ API = (*Client)(nil)
