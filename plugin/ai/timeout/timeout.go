// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

const (
	// EmbeddingTimeout bounds a single call to the embedding provider.
	EmbeddingTimeout = 30 * time.Second

	// CorpusFetchTimeout bounds loading one owner's concept snapshot.
	CorpusFetchTimeout = 10 * time.Second

	// BackfillBatchTimeout bounds one batch of the background embedding runner.
	BackfillBatchTimeout = 2 * time.Minute
)
