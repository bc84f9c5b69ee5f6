// Package concept resolves the identity of newly extracted concepts against a
// user's library and classifies how they relate to existing concepts.
package concept

// Concept is a single unit of knowledge in a user's library.
type Concept struct {
	ID        int32     `json:"id,omitempty"`
	UID       string    `json:"uid,omitempty"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"` // e.g. "Algorithms > Sorting"
	Summary   string    `json:"summary,omitempty"`
	KeyPoints []string  `json:"key_points,omitempty"`
	Details   string    `json:"details,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the concept carries a computed embedding.
func (c Concept) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// RelationshipType is the closed set of relationship verdicts.
type RelationshipType string

const (
	RelSharedDataStructure     RelationshipType = "SHARED_DATA_STRUCTURE"
	RelSharedAlgorithm         RelationshipType = "SHARED_ALGORITHM"
	RelSharedProblemPattern    RelationshipType = "SHARED_PROBLEM_PATTERN"
	RelSharedComplexityConcern RelationshipType = "SHARED_COMPLEXITY_CONCERN"
	RelSameCategory            RelationshipType = "SAME_CATEGORY"
	RelPrerequisite            RelationshipType = "PREREQUISITE"
	RelGeneralSimilarity       RelationshipType = "GENERAL_SIMILARITY"
)

// RelationshipClassification explains why two concepts are related.
type RelationshipClassification struct {
	Type           RelationshipType `json:"type"`
	Reason         string           `json:"reason"`
	SharedElements []string         `json:"shared_elements,omitempty"`
	Strength       float64          `json:"strength"`
}

// MatchCandidate is an existing concept judged to be a duplicate of, or
// related to, a new concept. It is never persisted.
type MatchCandidate struct {
	ConceptID    int32                      `json:"concept_id"`
	UID          string                     `json:"uid,omitempty"`
	Title        string                     `json:"title"`
	Category     string                     `json:"category,omitempty"`
	Summary      string                     `json:"summary,omitempty"`
	Similarity   float64                    `json:"similarity"`
	Score        int                        `json:"score"` // rounded percentage, 0-100
	Relationship RelationshipClassification `json:"relationship"`
	Rank         int                        `json:"rank"`
}

// MatchType names the resolver stage that produced a match.
type MatchType string

const (
	MatchExact    MatchType = "EXACT"
	MatchAlias    MatchType = "ALIAS"
	MatchFuzzy    MatchType = "FUZZY"
	MatchVariant  MatchType = "VARIANT"
	MatchSemantic MatchType = "SEMANTIC"
	MatchNone     MatchType = "NONE"
)

// Resolution is the outcome of identity resolution.
type Resolution struct {
	Resolved          bool      `json:"resolved"`
	MatchType         MatchType `json:"match_type"`
	ExistingConceptID int32     `json:"existing_concept_id,omitempty"`
	ExistingUID       string    `json:"existing_uid,omitempty"`
	ExistingTitle     string    `json:"existing_title,omitempty"`
	// CanonicalTitle is set when the alias stage rewrote the title.
	CanonicalTitle string `json:"canonical_title,omitempty"`
	// Confidence is the lexical similarity between the new and matched titles.
	Confidence float64 `json:"confidence"`
}

// RankResult holds the ranked duplicate and related candidates of one concept.
type RankResult struct {
	Duplicates []MatchCandidate `json:"duplicates"`
	Related    []MatchCandidate `json:"related"`
	// Embedding is the vector the ranking used, returned so the caller can
	// persist it without recomputing.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasDuplicate reports whether any duplicate candidate was found.
func (r *RankResult) HasDuplicate() bool {
	return r != nil && len(r.Duplicates) > 0
}
