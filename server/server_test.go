package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/conceptlens/internal/profile"
	storetest "github.com/hrygo/conceptlens/store/test"
)

func newTestServer(t *testing.T, p *profile.Profile) *Server {
	t.Helper()
	ctx := context.Background()
	s, err := NewServer(ctx, p, storetest.NewTestingStore(ctx, t))
	require.NoError(t, err)
	return s
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, &profile.Profile{Mode: "dev"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.\n", rec.Body.String())
}

func TestServer_WithoutEmbeddingProvider(t *testing.T) {
	// AI enabled but no key: the server still starts, without ranking.
	s := newTestServer(t, &profile.Profile{
		Mode:                "dev",
		AIEnabled:           true,
		AIEmbeddingProvider: "openai",
		AIEmbeddingModel:    "text-embedding-3-small",
	})
	assert.Nil(t, s.embeddingService)

	s.StartBackgroundRunners(context.Background())
	assert.Empty(t, s.runnerCancelFuncs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/concepts/relationships", strings.NewReader(`{"owner_id":1,"title":"Two Sum"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestServer_StartsRunnerWithProvider(t *testing.T) {
	s := newTestServer(t, &profile.Profile{
		Mode:                  "dev",
		AIEnabled:             true,
		AIEmbeddingProvider:   "openai",
		AIEmbeddingModel:      "text-embedding-3-small",
		AIEmbeddingDimensions: 2,
		AIOpenAIAPIKey:        "test-key",
		AIOpenAIBaseURL:       "http://127.0.0.1:0",
	})
	require.NotNil(t, s.embeddingService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartBackgroundRunners(ctx)
	assert.Len(t, s.runnerCancelFuncs, 1)
	s.runnerCancelFuncs[0]()
}
