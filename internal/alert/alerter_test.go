package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureAlerter) Send(_ context.Context, a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureAlerter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func TestMultiAlerterCooldown(t *testing.T) {
	ctx := context.Background()
	capture := &captureAlerter{}
	m := NewMultiAlerter(time.Hour, discardLogger(), capture)

	a := Alert{Type: AlertTypeOrderingViolation, Title: "stream halted"}
	require.NoError(t, m.Send(ctx, a))
	require.NoError(t, m.Send(ctx, a))
	assert.Equal(t, 1, capture.count())

	// A different type has its own cooldown window.
	require.NoError(t, m.Send(ctx, Alert{Type: AlertTypeAuditMismatch, Title: "drift"}))
	assert.Equal(t, 2, capture.count())
}

func TestWebhookAlerterSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhookAlerter(srv.URL)
	err := w.Send(context.Background(), Alert{
		Type:    AlertTypePipelineHalted,
		Title:   "consumer exited",
		Message: "terminal apply failure",
		Fields:  map[string]string{"kind": "POOL_SWAP"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PIPELINE_HALTED", got["type"])
	assert.Equal(t, "consumer exited", got["title"])
}

func TestWebhookAlerterNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhookAlerter(srv.URL)
	err := w.Send(context.Background(), Alert{Type: AlertTypeFeedDown, Title: "feed"})
	assert.Error(t, err)
}

func TestSlackAlerterSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackAlerter(srv.URL)
	err := s.Send(context.Background(), Alert{
		Type:    AlertTypeAuditMismatch,
		Title:   "holdings drift",
		Message: "ledger balance disagrees with transfer history",
		Fields:  map[string]string{"token": "0xtoken"},
	})
	require.NoError(t, err)
	assert.Contains(t, got["text"], "AUDIT_MISMATCH")
	assert.Contains(t, got["text"], "holdings drift")
	assert.Contains(t, got["text"], "0xtoken")
}
