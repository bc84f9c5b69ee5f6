package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/conceptlens/plugin/ai"
	"github.com/hrygo/conceptlens/plugin/ai/concept"
	"github.com/hrygo/conceptlens/plugin/ai/timeout"
	"github.com/hrygo/conceptlens/store"
)

// Runner computes missing concept embeddings in the background so that
// relationship ranking finds every stored concept.
type Runner struct {
	store            *store.Store
	embeddingService ai.EmbeddingService
	interval         time.Duration
	batchSize        int
	pageSize         int
}

// NewRunner creates a concept embedding runner. Small batches keep provider
// requests short and memory flat.
func NewRunner(store *store.Store, embeddingService ai.EmbeddingService) *Runner {
	return &Runner{
		store:            store,
		embeddingService: embeddingService,
		interval:         2 * time.Minute,
		batchSize:        8,
		pageSize:         160,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.processPendingConcepts(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPendingConcepts(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending concepts once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.processPendingConcepts(ctx)
}

// processPendingConcepts walks every concept without an embedding once, page
// by page with an id cursor. Rows that are skipped or whose batch fails are
// retried on the next pass and never hold back the rows after them.
func (r *Runner) processPendingConcepts(ctx context.Context) {
	var afterID int32
	for {
		concepts, err := r.findConceptsWithoutEmbedding(ctx, afterID)
		if err != nil {
			slog.Error("failed to find concepts without embedding", "error", err)
			return
		}
		if len(concepts) == 0 {
			return
		}
		afterID = concepts[len(concepts)-1].ID

		if !r.processPage(ctx, concepts) {
			return
		}
		if len(concepts) < r.pageSize {
			return
		}
	}
}

// processPage embeds one page in batches. It reports false when ctx is done.
func (r *Runner) processPage(ctx context.Context, concepts []*store.Concept) bool {
	slog.Info("processing concepts for embedding", "count", len(concepts))

	for i := 0; i < len(concepts); i += r.batchSize {
		select {
		case <-ctx.Done():
			slog.Info("embedding processing cancelled", "processed", i, "total", len(concepts))
			return false
		default:
		}

		end := min(i+r.batchSize, len(concepts))
		batch := concepts[i:end]

		if err := r.processBatch(ctx, batch); err != nil {
			slog.Error("failed to process batch", "error", err)
			continue
		}
		slog.Info("batch processed", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(concepts)))
	}
	return true
}

func (r *Runner) findConceptsWithoutEmbedding(ctx context.Context, afterID int32) ([]*store.Concept, error) {
	return r.store.FindConceptsWithoutEmbedding(ctx, &store.FindConceptsWithoutEmbedding{
		Model:   r.embeddingService.Model(),
		AfterID: afterID,
		Limit:   r.pageSize,
	})
}

func (r *Runner) processBatch(ctx context.Context, rows []*store.Concept) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Rows with malformed key points are left for a later pass.
	pending := make([]*store.Concept, 0, len(rows))
	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		c, err := concept.DecodeConcept(row, false)
		if err != nil {
			slog.Warn("skipping malformed concept", "conceptID", row.ID, "error", err)
			continue
		}
		pending = append(pending, row)
		texts = append(texts, concept.EmbeddingText(c))
	}
	if len(pending) == 0 {
		return nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, timeout.BackfillBatchTimeout)
	defer cancel()

	vectors, err := r.embeddingService.EmbedBatch(batchCtx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("got %d vectors for %d concepts", len(vectors), len(pending))
	}

	model := r.embeddingService.Model()
	for i, row := range pending {
		_, err := r.store.UpsertConceptEmbedding(ctx, &store.ConceptEmbedding{
			ConceptID: row.ID,
			Embedding: vectors[i],
			Model:     model,
		})
		if err != nil {
			slog.Error("failed to upsert embedding", "conceptID", row.ID, "error", err)
		}
	}

	return nil
}
