package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbeddingService(t *testing.T) {
	t.Run("disabled returns the service itself", func(t *testing.T) {
		service := newTestService(t, "http://127.0.0.1:0", 3)
		assert.Same(t, service, NewCachedEmbeddingService(service, 0))
	})

	t.Run("embed hits cache", func(t *testing.T) {
		server, calls := newFakeProvider(t, unitVectors(3))
		service := NewCachedEmbeddingService(newTestService(t, server.URL, 3), 10)

		first, err := service.Embed(context.Background(), "Two Sum")
		require.NoError(t, err)
		first[0] = 42

		second, err := service.Embed(context.Background(), "Two Sum")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, second, "cached vector is not aliased")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("batch embeds only misses", func(t *testing.T) {
		var inputs [][]string
		server, calls := newFakeProvider(t, func(req embeddingsRequest) []embeddingItem {
			inputs = append(inputs, req.Input)
			return unitVectors(3)(req)
		})
		service := NewCachedEmbeddingService(newTestService(t, server.URL, 3), 10)

		_, err := service.Embed(context.Background(), "b")
		require.NoError(t, err)

		vectors, err := service.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, []float32{1, 0, 0}, vectors[1], "b comes from the cache")
		assert.Equal(t, []float32{1, 0, 0}, vectors[0])
		assert.Equal(t, []float32{0, 1, 0}, vectors[2])
		assert.Equal(t, [][]string{{"b"}, {"a", "c"}}, inputs)

		_, err = service.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		service := NewCachedEmbeddingService(newTestService(t, "http://127.0.0.1:0", 3), 10)
		_, err := service.Embed(context.Background(), "a")
		require.Error(t, err)
		_, err = service.EmbedBatch(context.Background(), nil)
		require.Error(t, err)
	})
}
