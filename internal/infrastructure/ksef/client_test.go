package ksef

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mc-Beton/K-fun/pkg/config"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

type recordingNotifier struct {
	connected []string
	failed    []string
}

func (n *recordingNotifier) KsefConnected(environment, baseURL string) {
	n.connected = append(n.connected, baseURL)
}

func (n *recordingNotifier) KsefConnectionFailed(reason, details string) {
	n.failed = append(n.failed, reason)
}

func newTestClient(baseURL string, notifier ConnectivityNotifier) *Client {
	cfg := &config.KSeFConfig{BaseURL: baseURL, Environment: "test"}
	return NewClient(cfg, notifier, logger.New(logger.Config{Env: "test", Level: "error"}))
}

func TestInitSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/init", r.URL.Path)
		assert.Equal(t, "auth-token", r.Header.Get("SessionToken"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "onip", req.ContextIdentifier.Type)
		assert.Equal(t, "5260250274", req.ContextIdentifier.Identifier)

		json.NewEncoder(w).Encode(SessionResponse{
			SessionToken:    SessionToken{Token: "session-123", ExpiresIn: 3600},
			ReferenceNumber: "ref-1",
			ProcessingCode:  200,
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, nil).InitSession(context.Background(), "5260250274", "auth-token")
	require.NoError(t, err)
	assert.Equal(t, "session-123", resp.SessionToken.Token)
	assert.Equal(t, 3600, resp.SessionToken.ExpiresIn)
	assert.Equal(t, "ref-1", resp.ReferenceNumber)
}

func TestSendInvoice(t *testing.T) {
	signed := []byte("<Faktura>signed</Faktura>")
	sum := sha256.Sum256(signed)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/invoice/send", r.URL.Path)
		assert.Equal(t, "session-123", r.Header.Get("SessionToken"))

		var req InvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SHA-256", req.InvoiceHash.HashSHA.Algorithm)
		assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), req.InvoiceHash.HashSHA.Value)
		assert.Equal(t, int64(len(signed)), req.InvoiceHash.FileSize)
		assert.Equal(t, "plain", req.InvoicePayload.Type)
		assert.Equal(t, base64.StdEncoding.EncodeToString(signed), req.InvoicePayload.InvoiceBody)

		json.NewEncoder(w).Encode(InvoiceResponse{
			ElementReferenceNumber: "KSEF-123",
			ProcessingCode:         100,
			ReferenceNumber:        "ref-2",
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, nil).SendInvoice(context.Background(), "session-123", signed)
	require.NoError(t, err)
	assert.Equal(t, "KSEF-123", resp.ElementReferenceNumber)
}

func TestGetUpo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/invoice/upo/ref-2", r.URL.Path)

		json.NewEncoder(w).Encode(UpoResponse{ReferenceNumber: "ref-2", Upo: "dXBv"})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, nil).GetUpo(context.Background(), "session-123", "ref-2")
	require.NoError(t, err)
	assert.Equal(t, "dXBv", resp.Upo)
}

func TestSessionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/session/status/ref-1", r.URL.Path)
		assert.Equal(t, "session-123", r.Header.Get("SessionToken"))

		json.NewEncoder(w).Encode(SessionStatusResponse{
			ReferenceNumber:       "ref-1",
			ProcessingCode:        310,
			ProcessingDescription: "Trwa przetwarzanie",
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, nil).SessionStatus(context.Background(), "session-123", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, 310, resp.ProcessingCode)
	assert.Equal(t, "Trwa przetwarzanie", resp.ProcessingDescription)
}

func TestTerminateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/terminate", r.URL.Path)
		assert.Equal(t, "session-123", r.Header.Get("SessionToken"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, nil).TerminateSession(context.Background(), "session-123")
	assert.NoError(t, err)
}

func TestCallTranslatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).InitSession(context.Background(), "5260250274", "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "init-session", apiErr.Op)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "invalid token")
}

func TestCallTranslatesDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).InitSession(context.Background(), "5260250274", "auth")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Error(), "decode response")
}

func TestCheckStatusNotifiesOnlyOnFlips(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/common/status", r.URL.Path)
		assert.Empty(t, r.Header.Get("SessionToken"))
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	notifier := &recordingNotifier{}
	client := newTestClient(srv.URL, notifier)
	ctx := context.Background()

	assert.True(t, client.CheckStatus(ctx))
	assert.True(t, client.CheckStatus(ctx))
	assert.Len(t, notifier.connected, 1, "repeat success must not re-notify")

	healthy = false
	assert.False(t, client.CheckStatus(ctx))
	assert.False(t, client.CheckStatus(ctx))
	assert.Len(t, notifier.failed, 1, "repeat failure must not re-notify")

	healthy = true
	assert.True(t, client.CheckStatus(ctx))
	assert.Len(t, notifier.connected, 2, "recovery must notify once")
}

func TestAuthorizationToken(t *testing.T) {
	sum := sha256.Sum256([]byte("initial-token"))
	expected := base64.StdEncoding.EncodeToString(sum[:])

	assert.Equal(t, expected, AuthorizationToken("initial-token"))
	assert.NotEqual(t, AuthorizationToken("a"), AuthorizationToken("b"))
}
