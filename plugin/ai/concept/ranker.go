package concept

import (
	"log/slog"
	"sort"
)

// RankerConfig holds the bucketing thresholds and list sizes of the ranker.
type RankerConfig struct {
	// DuplicateThreshold: similarity strictly above it marks a duplicate.
	DuplicateThreshold float64
	// RelatedThreshold: similarity strictly above it, and not a duplicate, marks a related concept.
	RelatedThreshold float64
	MaxDuplicates    int
	MaxRelated       int
}

// DefaultRankerConfig returns the default thresholds.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		DuplicateThreshold: 0.85,
		RelatedThreshold:   0.6,
		MaxDuplicates:      3,
		MaxRelated:         5,
	}
}

// Ranker scores a new concept against every embedded concept of a corpus and
// buckets the results into duplicates and related concepts.
type Ranker struct {
	config     RankerConfig
	classifier *Classifier
}

// NewRanker creates a Ranker with the default configuration.
func NewRanker(classifier *Classifier) *Ranker {
	return NewRankerWithConfig(classifier, DefaultRankerConfig())
}

// NewRankerWithConfig creates a Ranker with custom thresholds.
func NewRankerWithConfig(classifier *Classifier, config RankerConfig) *Ranker {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Ranker{config: config, classifier: classifier}
}

// Rank compares c, which must carry an embedding, with the corpus. Concepts
// without an embedding are skipped. A dimension mismatch aborts the ranking.
func (r *Ranker) Rank(c Concept, corpus *Corpus) (*RankResult, error) {
	if !c.HasEmbedding() {
		return nil, &ConfigurationError{Reason: "concept has no embedding"}
	}
	result := &RankResult{
		Duplicates: []MatchCandidate{},
		Related:    []MatchCandidate{},
		Embedding:  c.Embedding,
	}

	for i := 0; i < corpus.Len(); i++ {
		existing := corpus.concepts[i]
		if c.ID != 0 && existing.ID == c.ID {
			continue
		}
		if !existing.HasEmbedding() {
			slog.Debug("skipping concept without embedding", "concept_id", existing.ID)
			continue
		}

		similarity, err := CosineSimilarity(c.Embedding, existing.Embedding)
		if err != nil {
			return nil, err
		}
		if similarity <= r.config.RelatedThreshold {
			continue
		}

		candidate := MatchCandidate{
			ConceptID:    existing.ID,
			UID:          existing.UID,
			Title:        existing.Title,
			Category:     existing.Category,
			Summary:      existing.Summary,
			Similarity:   similarity,
			Score:        percentage(similarity),
			Relationship: r.classifier.Classify(c, existing),
		}
		if similarity > r.config.DuplicateThreshold {
			result.Duplicates = append(result.Duplicates, candidate)
		} else {
			result.Related = append(result.Related, candidate)
		}
	}

	result.Duplicates = topN(result.Duplicates, r.config.MaxDuplicates)
	result.Related = topN(result.Related, r.config.MaxRelated)
	return result, nil
}

// topN sorts candidates by similarity, descending and stable with respect to
// corpus order, keeps the first n and assigns ranks.
func topN(candidates []MatchCandidate, n int) []MatchCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if n >= 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}
