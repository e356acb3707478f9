package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vibecodingwiki/core/internal/config"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.AutumnConfig{APIKey: "am_test", BaseURL: baseURL}, zap.NewNop())
}

func TestCheckAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/check", r.URL.Path)
		assert.Equal(t, "Bearer am_test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"allowed": true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.True(t, c.Check(context.Background(), "user-1", FeatureAIGeneration))
}

func TestCheckDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"allowed": false}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.False(t, c.Check(context.Background(), "user-1", FeatureAIGeneration))
}

func TestCheckFailsOpenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.True(t, c.Check(context.Background(), "user-1", FeatureIngestion))
}

func TestCheckFailsOpenOnUnreachableGateway(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	assert.True(t, c.Check(context.Background(), "user-1", FeatureIngestion))
}

func TestCheckFailsOpenOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"allowed": false}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.True(t, c.Check(ctx, "user-1", FeatureAIGeneration))
}

func TestDisabledClientAllowsEverything(t *testing.T) {
	c := NewClient(config.AutumnConfig{}, zap.NewNop())
	assert.False(t, c.Enabled())
	assert.True(t, c.Check(context.Background(), "user-1", FeatureAIGeneration))
	assert.NoError(t, c.Track(context.Background(), "user-1", FeatureAIGeneration, 1))
}

func TestClientRejectionIsNotOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	assert.False(t, c.Check(context.Background(), "user-1", FeatureAIGeneration))
}
