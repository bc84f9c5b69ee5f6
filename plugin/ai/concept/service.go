package concept

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/conceptlens/plugin/ai"
	"github.com/hrygo/conceptlens/plugin/ai/timeout"
	"github.com/hrygo/conceptlens/store"
)

// ConceptReader loads an owner's corpus.
type ConceptReader interface {
	ListConcepts(ctx context.Context, find *store.FindConcept) ([]*store.Concept, error)
	ListConceptsWithEmbedding(ctx context.Context, find *store.FindConceptEmbedding) ([]*store.Concept, error)
}

// ConceptStore is the persistence used by Service. *store.Store satisfies it.
type ConceptStore interface {
	ConceptReader
	CreateConcept(ctx context.Context, create *store.Concept) (*store.Concept, error)
	UpdateConcept(ctx context.Context, update *store.UpdateConcept) (*store.Concept, error)
	DeleteConcept(ctx context.Context, delete *store.DeleteConcept) error
	UpsertConceptEmbedding(ctx context.Context, upsert *store.ConceptEmbedding) (*store.ConceptEmbedding, error)
	UpsertConceptRelation(ctx context.Context, upsert *store.ConceptRelation) (*store.ConceptRelation, error)
	ListConceptRelations(ctx context.Context, find *store.FindConceptRelation) ([]*store.ConceptRelation, error)
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	// Concurrency bounds the concepts analyzed in parallel by Analyze.
	Concurrency int
	Ranker      RankerConfig
	// Catalogue overrides the built-in alias and variant tables when set.
	Catalogue *Catalogue
}

// DefaultServiceConfig returns the default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Concurrency: 4,
		Ranker:      DefaultRankerConfig(),
	}
}

// Service runs identity resolution and relationship ranking against an
// owner's stored concepts.
type Service struct {
	store       ConceptStore
	embedding   ai.EmbeddingService
	classifier  *Classifier
	resolver    *IdentityResolver
	ranker      *Ranker
	concurrency int
}

// NewService creates a Service. embedding may be nil, in which case only the
// identity cascade is available.
func NewService(s ConceptStore, embedding ai.EmbeddingService) *Service {
	return NewServiceWithConfig(s, embedding, DefaultServiceConfig())
}

// NewServiceWithConfig creates a Service with custom thresholds and catalogue.
func NewServiceWithConfig(s ConceptStore, embedding ai.EmbeddingService, config ServiceConfig) *Service {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	classifier := NewClassifier()
	resolver := NewIdentityResolver(config.Catalogue)
	resolver.semanticThreshold = config.Ranker.DuplicateThreshold
	return &Service{
		store:       s,
		embedding:   embedding,
		classifier:  classifier,
		resolver:    resolver,
		ranker:      NewRankerWithConfig(classifier, config.Ranker),
		concurrency: config.Concurrency,
	}
}

// HasEmbedding reports whether an embedding provider is configured.
func (s *Service) HasEmbedding() bool {
	return s.embedding != nil
}

// ResolveIdentity decides whether c is already in the owner's library. When c
// carries an embedding and a provider is configured, the semantic stage runs
// after the lexical ones.
func (s *Service) ResolveIdentity(ctx context.Context, ownerID int32, c Concept) (*Resolution, error) {
	if Normalize(c.Title) == "" {
		return nil, ErrEmptyTitle
	}
	corpus, err := s.loadCorpus(ctx, ownerID, c.HasEmbedding())
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(c, corpus)
}

// RankRelationships embeds c when it has no embedding yet and ranks it against
// every embedded concept of the owner. It fails with a ConfigurationError when
// no embedding can be obtained.
func (s *Service) RankRelationships(ctx context.Context, ownerID int32, c Concept) (*RankResult, error) {
	if Normalize(c.Title) == "" {
		return nil, ErrEmptyTitle
	}
	if s.embedding == nil {
		return nil, &ConfigurationError{Reason: "no embedding provider configured"}
	}
	if !c.HasEmbedding() {
		embedding, err := s.embed(ctx, c)
		if err != nil {
			return nil, err
		}
		c.Embedding = embedding
	}
	corpus, err := s.loadCorpus(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}
	return s.ranker.Rank(c, corpus)
}

// Analysis is the outcome for one concept of a batch.
type Analysis struct {
	Title      string      `json:"title"`
	Resolution *Resolution `json:"resolution"`
	// Ranking is nil when no embedding could be obtained.
	Ranking *RankResult `json:"ranking,omitempty"`
	// Fallback explains why ranking was skipped.
	Fallback string `json:"fallback,omitempty"`
}

// Analyze resolves and ranks a batch of new concepts against one snapshot of
// the owner's library. Concepts of the batch are never compared with each
// other. A concept whose embedding cannot be obtained is still resolved by the
// lexical stages; any other failure aborts the batch.
func (s *Service) Analyze(ctx context.Context, ownerID int32, concepts []Concept) ([]*Analysis, error) {
	for i, c := range concepts {
		if Normalize(c.Title) == "" {
			return nil, fmt.Errorf("concept %d: %w", i, ErrEmptyTitle)
		}
	}
	if len(concepts) == 0 {
		return []*Analysis{}, nil
	}

	corpus, err := s.loadCorpus(ctx, ownerID, s.embedding != nil)
	if err != nil {
		return nil, err
	}

	results := make([]*Analysis, len(concepts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range concepts {
		g.Go(func() error {
			analysis, err := s.analyzeOne(gctx, c, corpus)
			if err != nil {
				return fmt.Errorf("concept %q: %w", c.Title, err)
			}
			results[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) analyzeOne(ctx context.Context, c Concept, corpus *Corpus) (*Analysis, error) {
	analysis := &Analysis{Title: c.Title}

	if s.embedding == nil {
		analysis.Fallback = (&ConfigurationError{Reason: "no embedding provider configured"}).Error()
		c.Embedding = nil
	} else if !c.HasEmbedding() {
		embedding, err := s.embed(ctx, c)
		switch {
		case err == nil:
			c.Embedding = embedding
		case IsConfigurationError(err):
			slog.Warn("falling back to identity resolution", "title", c.Title, "error", err)
			analysis.Fallback = err.Error()
		default:
			return nil, err
		}
	}

	resolution, err := s.resolver.Resolve(c, corpus)
	if err != nil {
		return nil, err
	}
	analysis.Resolution = resolution

	if c.HasEmbedding() {
		ranking, err := s.ranker.Rank(c, corpus)
		if err != nil {
			return nil, err
		}
		analysis.Ranking = ranking
	}
	return analysis, nil
}

// CreateConcept stores c for the owner. A carried embedding is stored too
// when a provider is configured.
func (s *Service) CreateConcept(ctx context.Context, ownerID int32, c Concept) (*Concept, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	row, err := s.store.CreateConcept(ctx, &store.Concept{
		UID:       shortuuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		TitleKey:  Normalize(title),
		Category:  strings.TrimSpace(c.Category),
		Summary:   c.Summary,
		KeyPoints: EncodeKeyPoints(c.KeyPoints),
		Details:   c.Details,
	})
	if err != nil {
		return nil, fmt.Errorf("create concept: %w", err)
	}

	created := c
	created.ID = row.ID
	created.UID = row.UID
	created.Title = row.Title
	created.Category = row.Category
	if c.HasEmbedding() && s.embedding != nil {
		if err := s.SaveEmbedding(ctx, created.ID, c.Embedding); err != nil {
			return nil, err
		}
	}
	slog.Info("created concept", "owner_id", ownerID, "concept_id", created.ID)
	return &created, nil
}

// ListConcepts returns the owner's concepts in creation order. Rows that
// cannot be decoded are skipped.
func (s *Service) ListConcepts(ctx context.Context, ownerID int32) ([]Concept, error) {
	corpus, err := s.loadCorpus(ctx, ownerID, false)
	if err != nil {
		return nil, err
	}
	list := make([]Concept, 0, corpus.Len())
	for i := 0; i < corpus.Len(); i++ {
		list = append(list, corpus.At(i))
	}
	return list, nil
}

// SaveEmbedding persists the embedding of a concept under the provider's model.
func (s *Service) SaveEmbedding(ctx context.Context, conceptID int32, embedding []float32) error {
	if s.embedding == nil {
		return &ConfigurationError{Reason: "no embedding provider configured"}
	}
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if dimensions := s.embedding.Dimensions(); dimensions > 0 && len(embedding) != dimensions {
		return &DimensionMismatchError{Left: len(embedding), Right: dimensions}
	}
	_, err := s.store.UpsertConceptEmbedding(ctx, &store.ConceptEmbedding{
		ConceptID: conceptID,
		Embedding: embedding,
		Model:     s.embedding.Model(),
	})
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Link records a classified relation between two of the owner's concepts, in
// both directions. It returns the classification of conceptID against relatedID.
func (s *Service) Link(ctx context.Context, ownerID, conceptID, relatedID int32) (*RelationshipClassification, error) {
	if conceptID == relatedID {
		return nil, ErrSameConcept
	}
	from, err := s.getConcept(ctx, ownerID, conceptID)
	if err != nil {
		return nil, err
	}
	to, err := s.getConcept(ctx, ownerID, relatedID)
	if err != nil {
		return nil, err
	}

	forward := s.classifier.Classify(from, to)
	if err := s.upsertRelation(ctx, from.ID, to.ID, forward); err != nil {
		return nil, err
	}
	if err := s.upsertRelation(ctx, to.ID, from.ID, s.classifier.Classify(to, from)); err != nil {
		return nil, err
	}
	slog.Info("linked concepts", "owner_id", ownerID, "concept_id", from.ID, "related_concept_id", to.ID, "type", forward.Type)
	return &forward, nil
}

// Merge folds source into target: key points are unioned, missing summary and
// category are taken from source, details are concatenated and source's
// relations move to target. Source is deleted.
func (s *Service) Merge(ctx context.Context, ownerID, sourceID, targetID int32) (*Concept, error) {
	if sourceID == targetID {
		return nil, ErrSameConcept
	}
	source, err := s.getConcept(ctx, ownerID, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.getConcept(ctx, ownerID, targetID)
	if err != nil {
		return nil, err
	}

	keyPoints := EncodeKeyPoints(mergeKeyPoints(target.KeyPoints, source.KeyPoints))
	summary := target.Summary
	if strings.TrimSpace(summary) == "" {
		summary = source.Summary
	}
	category := target.Category
	if strings.TrimSpace(category) == "" {
		category = source.Category
	}
	details := target.Details
	if strings.TrimSpace(source.Details) != "" {
		if strings.TrimSpace(details) == "" {
			details = source.Details
		} else {
			details = details + "\n\n---\n\n" + source.Details
		}
	}

	updated, err := s.store.UpdateConcept(ctx, &store.UpdateConcept{
		ID:        target.ID,
		Summary:   &summary,
		Category:  &category,
		KeyPoints: &keyPoints,
		Details:   &details,
	})
	if err != nil {
		return nil, fmt.Errorf("update target concept: %w", err)
	}
	if err := s.moveRelations(ctx, source.ID, target.ID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteConcept(ctx, &store.DeleteConcept{ID: source.ID}); err != nil {
		return nil, fmt.Errorf("delete source concept: %w", err)
	}

	merged, err := DecodeConcept(updated, false)
	if err != nil {
		return nil, err
	}
	slog.Info("merged concepts", "owner_id", ownerID, "source_id", source.ID, "target_id", target.ID)
	return &merged, nil
}

// moveRelations re-points every relation of source at target, dropping the
// ones that would link target to itself.
func (s *Service) moveRelations(ctx context.Context, sourceID, targetID int32) error {
	outgoing, err := s.store.ListConceptRelations(ctx, &store.FindConceptRelation{ConceptID: &sourceID})
	if err != nil {
		return fmt.Errorf("list relations: %w", err)
	}
	incoming, err := s.store.ListConceptRelations(ctx, &store.FindConceptRelation{RelatedConceptID: &sourceID})
	if err != nil {
		return fmt.Errorf("list relations: %w", err)
	}
	for _, relation := range outgoing {
		relation.ConceptID = targetID
	}
	for _, relation := range incoming {
		relation.RelatedConceptID = targetID
	}
	for _, relation := range append(outgoing, incoming...) {
		if relation.ConceptID == relation.RelatedConceptID {
			continue
		}
		if _, err := s.store.UpsertConceptRelation(ctx, relation); err != nil {
			return fmt.Errorf("move relation: %w", err)
		}
	}
	return nil
}

func (s *Service) upsertRelation(ctx context.Context, from, to int32, classification RelationshipClassification) error {
	_, err := s.store.UpsertConceptRelation(ctx, &store.ConceptRelation{
		ConceptID:        from,
		RelatedConceptID: to,
		Type:             string(classification.Type),
		Reason:           classification.Reason,
		Strength:         classification.Strength,
	})
	if err != nil {
		return fmt.Errorf("link %d -> %d: %w", from, to, err)
	}
	return nil
}

// getConcept loads one of the owner's concepts.
func (s *Service) getConcept(ctx context.Context, ownerID, id int32) (Concept, error) {
	rows, err := s.store.ListConcepts(ctx, &store.FindConcept{ID: &id, OwnerID: &ownerID})
	if err != nil {
		return Concept{}, fmt.Errorf("get concept %d: %w", id, err)
	}
	if len(rows) == 0 {
		return Concept{}, fmt.Errorf("%w: %d", ErrConceptNotFound, id)
	}
	return DecodeConcept(rows[0], false)
}

// loadCorpus snapshots the owner's concepts. Embeddings are loaded only when
// requested and a provider, whose model names the stored vectors, is configured.
func (s *Service) loadCorpus(ctx context.Context, ownerID int32, withEmbedding bool) (*Corpus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.CorpusFetchTimeout)
	defer cancel()

	if withEmbedding && s.embedding != nil {
		rows, err := s.store.ListConceptsWithEmbedding(ctx, &store.FindConceptEmbedding{
			OwnerID: ownerID,
			Model:   s.embedding.Model(),
		})
		if err != nil {
			return nil, fmt.Errorf("load concepts: %w", err)
		}
		return FromStore(rows, true), nil
	}

	rows, err := s.store.ListConcepts(ctx, &store.FindConcept{OwnerID: &ownerID})
	if err != nil {
		return nil, fmt.Errorf("load concepts: %w", err)
	}
	return FromStore(rows, false), nil
}

// embed asks the provider for the embedding of c. Provider failures are
// reported as ConfigurationError; cancellation of ctx is returned as is.
func (s *Service) embed(ctx context.Context, c Concept) ([]float32, error) {
	if s.embedding == nil {
		return nil, &ConfigurationError{Reason: "no embedding provider configured"}
	}
	embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()

	embedding, err := s.embedding.Embed(embedCtx, EmbeddingText(c))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConfigurationError{Reason: "embedding provider failed", Cause: err}
	}
	if len(embedding) == 0 {
		return nil, &ConfigurationError{Reason: "embedding provider returned an empty vector"}
	}
	return embedding, nil
}

// mergeKeyPoints appends the points of extra missing from base, comparing
// normalized text.
func mergeKeyPoints(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var merged []string
	for _, point := range append(append([]string{}, base...), extra...) {
		key := Normalize(point)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, point)
	}
	return merged
}
