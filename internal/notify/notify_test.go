package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertCritical,
		Title:   "circuit breaker tripped",
		Message: "daily loss limit reached",
	})
	require.NoError(t, err)
	assert.Equal(t, "CRITICAL", received["level"])
	assert.Equal(t, "circuit breaker tripped", received["title"])
	assert.NotEmpty(t, received["ts"])
}

func TestWebhookNotifier_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t"})
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestLogNotifier_Send(t *testing.T) {
	n := NewLogNotifier()
	assert.NoError(t, n.Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m"}))
}
