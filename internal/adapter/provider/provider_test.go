package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loyalty-topup/config"
	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collaborator(srv *httptest.Server) config.HTTPCollaboratorConfig {
	return config.HTTPCollaboratorConfig{BaseURL: srv.URL + "/", APIKey: "key-1", Timeout: time.Second}
}

func TestQRClient_IssueQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/qr", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "100.00", body["amount"])
		assert.Equal(t, "THB", body["currency"])
		assert.Equal(t, "TOPUP-20260309-AB12C", body["orderId"])
		assert.EqualValues(t, 15, body["expiryMinutes"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactionId":"ptx-1","qrPayload":"00020101","expiresAt":"2026-03-09T10:15:00Z"}`))
	}))
	defer srv.Close()

	c := NewQRClient(collaborator(srv), 2, nil)
	res, err := c.IssueQR(context.Background(), ports.QRRequest{
		AmountMinor:   10000,
		Currency:      "THB",
		OrderID:       "TOPUP-20260309-AB12C",
		ExpiryMinutes: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, "ptx-1", res.ProviderTransactionID)
	assert.Equal(t, "00020101", res.QRPayload)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 15, 0, 0, time.UTC), res.ExpiresAt.UTC())
}

func TestQRClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusServiceUnavailable, `maintenance`, "unexpected status 503: maintenance"},
		{"bad json", http.StatusOK, `{`, "decode response"},
		{"bad expiry", http.StatusOK, `{"transactionId":"p","qrPayload":"q","expiresAt":"tomorrow"}`, "bad expiresAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewQRClient(collaborator(srv), 2, nil).IssueQR(context.Background(), ports.QRRequest{AmountMinor: 1})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestQRClient_StatusErrorType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewQRClient(collaborator(srv), 2, nil).IssueQR(context.Background(), ports.QRRequest{AmountMinor: 1})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestQRClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := collaborator(srv)
	cfg.Timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := NewQRClient(cfg, 2, nil).IssueQR(context.Background(), ports.QRRequest{AmountMinor: 1})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProfileClient_MirrorPointsIncrement(t *testing.T) {
	var gotPath string
	var gotBody map[string]int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewProfileClient(collaborator(srv), nil)
	require.NoError(t, c.MirrorPointsIncrement(context.Background(), "line:U 1", 100))
	assert.Equal(t, "/v1/profiles/line:U%201/points:increment", gotPath)
	assert.Equal(t, int64(100), gotBody["delta"])
}

func TestProfileClient_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewProfileClient(collaborator(srv), nil).MirrorPointsIncrement(context.Background(), "owner-1", 1)
	assert.ErrorContains(t, err, "profile store")
}

// stubHTTPClient implements HTTPClient for testing.
type stubHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return s.doFunc(req)
}

func TestPushNotifier_Notify(t *testing.T) {
	var got domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewPushNotifier(config.NotifyConfig{URL: srv.URL + "/push", Token: "tok", Timeout: time.Second}, nil)
	err := n.Notify(context.Background(), domain.Notification{
		RecipientRef: "owner-1",
		Kind:         domain.NotificationTopupSucceeded,
		Context:      map[string]string{"points": "100"},
	})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.RecipientRef)
	assert.Equal(t, domain.NotificationTopupSucceeded, got.Kind)
	assert.Equal(t, "100", got.Context["points"])
}

func TestPushNotifier_TransportError(t *testing.T) {
	client := &stubHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	n := NewPushNotifier(config.NotifyConfig{URL: "http://gateway.invalid"}, client)

	err := n.Notify(context.Background(), domain.Notification{RecipientRef: "owner-1"})
	assert.ErrorContains(t, err, "notify gateway: connection refused")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Notify(context.Background(), domain.Notification{
		RecipientRef: "owner-1",
		Kind:         domain.NotificationTopupFailed,
	}))
	assert.Contains(t, buf.String(), `"kind":"TOPUP_FAILED"`)
	assert.Contains(t, buf.String(), `"recipient":"owner-1"`)
}
