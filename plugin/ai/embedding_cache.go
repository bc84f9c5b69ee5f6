package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hrygo/conceptlens/plugin/ai/cache"
)

const embeddingCacheTTL = 24 * time.Hour

// cachedEmbeddingService serves repeated texts from memory. Keys include the
// model so that vectors of different models never mix.
type cachedEmbeddingService struct {
	EmbeddingService
	vectors *cache.LRU[[]float32]
}

// NewCachedEmbeddingService wraps service with an LRU of at most size vectors.
// A non-positive size returns service unchanged.
func NewCachedEmbeddingService(service EmbeddingService, size int) EmbeddingService {
	if size <= 0 {
		return service
	}
	return &cachedEmbeddingService{
		EmbeddingService: service,
		vectors:          cache.NewLRU[[]float32](size, embeddingCacheTTL),
	}
}

func (s *cachedEmbeddingService) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return s.Model() + ":" + hex.EncodeToString(sum[:])
}

func (s *cachedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)
	if vector, ok := s.vectors.Get(key); ok {
		return clone(vector), nil
	}
	vector, err := s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.vectors.Set(key, clone(vector))
	return vector, nil
}

func (s *cachedEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		keys[i] = s.key(text)
		if vector, ok := s.vectors.Get(keys[i]); ok {
			vectors[i] = clone(vector)
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 && len(texts) > 0 {
		return vectors, nil
	}

	pending := make([]string, len(missing))
	for i, index := range missing {
		pending[i] = texts[index]
	}
	embedded, err := s.EmbeddingService.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(pending) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(embedded), len(pending))
	}
	for i, index := range missing {
		vectors[index] = embedded[i]
		s.vectors.Set(keys[index], clone(embedded[i]))
	}
	return vectors, nil
}

func clone(vector []float32) []float32 {
	return append([]float32(nil), vector...)
}
