package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// newFakeProvider serves the OpenAI embeddings endpoint. respond builds the
// items for one request.
func newFakeProvider(t *testing.T, respond func(req embeddingsRequest) []embeddingItem) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   respond(req),
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server, calls
}

// unitVectors returns one vector per input with a single 1 at the input's index.
func unitVectors(dimensions int) func(req embeddingsRequest) []embeddingItem {
	return func(req embeddingsRequest) []embeddingItem {
		items := make([]embeddingItem, len(req.Input))
		for i := range req.Input {
			vector := make([]float32, dimensions)
			vector[i%dimensions] = 1
			items[i] = embeddingItem{Object: "embedding", Embedding: vector, Index: i}
		}
		return items
	}
}

func newTestService(t *testing.T, baseURL string, dimensions int) EmbeddingService {
	t.Helper()
	service, err := NewEmbeddingService(&EmbeddingConfig{
		Provider:   "openai",
		Model:      "test-embedding",
		Dimensions: dimensions,
		APIKey:     "test-key",
		BaseURL:    baseURL,
	})
	require.NoError(t, err)
	return service
}

func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EmbeddingConfig
		expectError bool
	}{
		{
			name:        "SiliconFlow config",
			cfg:         &EmbeddingConfig{Provider: "siliconflow", Model: "BAAI/bge-m3", Dimensions: 1024, APIKey: "test-key", BaseURL: "https://api.siliconflow.cn/v1"},
			expectError: false,
		},
		{
			name:        "OpenAI config",
			cfg:         &EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536, APIKey: "test-key"},
			expectError: false,
		},
		{
			name:        "Ollama config",
			cfg:         &EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768, BaseURL: "http://localhost:11434/v1"},
			expectError: false,
		},
		{
			name:        "Unsupported provider",
			cfg:         &EmbeddingConfig{Provider: "unsupported"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewEmbeddingService(tt.cfg)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Dimensions, service.Dimensions())
			assert.Equal(t, tt.cfg.Model, service.Model())
		})
	}
}

func TestEmbeddingService_Embed(t *testing.T) {
	var seen embeddingsRequest
	server, _ := newFakeProvider(t, func(req embeddingsRequest) []embeddingItem {
		seen = req
		return unitVectors(4)(req)
	})
	service := newTestService(t, server.URL, 4)

	vector, err := service.Embed(context.Background(), "Two Sum")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vector)
	assert.Equal(t, []string{"Two Sum"}, seen.Input)
	assert.Equal(t, "test-embedding", seen.Model)
	assert.Equal(t, 4, seen.Dimensions)
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	t.Run("orders vectors by index", func(t *testing.T) {
		server, _ := newFakeProvider(t, func(req embeddingsRequest) []embeddingItem {
			items := unitVectors(3)(req)
			items[0], items[2] = items[2], items[0]
			return items
		})
		service := newTestService(t, server.URL, 3)

		vectors, err := service.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, []float32{1, 0, 0}, vectors[0])
		assert.Equal(t, []float32{0, 1, 0}, vectors[1])
		assert.Equal(t, []float32{0, 0, 1}, vectors[2])
	})

	t.Run("empty input", func(t *testing.T) {
		service := newTestService(t, "http://127.0.0.1:0", 3)
		_, err := service.EmbedBatch(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("missing vectors", func(t *testing.T) {
		server, _ := newFakeProvider(t, func(req embeddingsRequest) []embeddingItem {
			return unitVectors(3)(req)[:1]
		})
		service := newTestService(t, server.URL, 3)
		_, err := service.EmbedBatch(context.Background(), []string{"a", "b"})
		require.Error(t, err)
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		server, _ := newFakeProvider(t, unitVectors(2))
		service := newTestService(t, server.URL, 3)
		_, err := service.Embed(context.Background(), "a")
		require.Error(t, err)
	})

	t.Run("provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid api key","type":"auth"}}`, http.StatusUnauthorized)
		}))
		t.Cleanup(server.Close)
		service := newTestService(t, server.URL, 3)
		_, err := service.Embed(context.Background(), "a")
		require.Error(t, err)
	})
}

func TestRateLimitedEmbeddingService(t *testing.T) {
	t.Run("disabled returns the service itself", func(t *testing.T) {
		service := newTestService(t, "http://127.0.0.1:0", 3)
		assert.Same(t, service, NewRateLimitedEmbeddingService(service, 0))
	})

	t.Run("delegates", func(t *testing.T) {
		server, calls := newFakeProvider(t, unitVectors(3))
		service := NewRateLimitedEmbeddingService(newTestService(t, server.URL, 3), 100)

		_, err := service.Embed(context.Background(), "a")
		require.NoError(t, err)
		_, err = service.EmbedBatch(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, "test-embedding", service.Model())
	})

	t.Run("wait honours context", func(t *testing.T) {
		server, calls := newFakeProvider(t, unitVectors(3))
		// One token per minute: the second call cannot get a token before the deadline.
		service := NewRateLimitedEmbeddingService(newTestService(t, server.URL, 3), 1.0/60)

		_, err := service.Embed(context.Background(), "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = service.Embed(ctx, "b")
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestNewEmbeddingServiceFromConfig(t *testing.T) {
	service, err := NewEmbeddingServiceFromConfig(&Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, service)

	_, err = NewEmbeddingServiceFromConfig(&Config{Enabled: true, Embedding: EmbeddingConfig{Provider: "openai", Model: "m"}})
	require.Error(t, err)

	service, err = NewEmbeddingServiceFromConfig(&Config{Enabled: true, Embedding: EmbeddingConfig{Provider: "openai", Model: "m", APIKey: "k", RateLimit: 5}})
	require.NoError(t, err)
	require.NotNil(t, service)
	assert.Equal(t, "m", service.Model())
}
