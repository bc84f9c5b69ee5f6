package ai

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// rateLimitedEmbeddingService throttles calls to the wrapped provider.
type rateLimitedEmbeddingService struct {
	EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimitedEmbeddingService wraps service so that it issues at most
// perSecond requests per second, with bursts up to one second's worth.
// A non-positive rate returns service unchanged.
func NewRateLimitedEmbeddingService(service EmbeddingService, perSecond float64) EmbeddingService {
	if perSecond <= 0 {
		return service
	}
	burst := int(math.Ceil(perSecond))
	return &rateLimitedEmbeddingService{
		EmbeddingService: service,
		limiter:          rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *rateLimitedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return s.EmbeddingService.Embed(ctx, text)
}

func (s *rateLimitedEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return s.EmbeddingService.EmbedBatch(ctx, texts)
}
