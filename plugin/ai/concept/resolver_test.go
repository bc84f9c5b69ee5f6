package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityResolver_Resolve(t *testing.T) {
	resolver := NewIdentityResolver(nil)

	tests := []struct {
		name       string
		concept    Concept
		corpus     []Concept
		matchType  MatchType
		existingID int32
		canonical  string
	}{
		{
			name:       "exact after normalization",
			concept:    Concept{Title: "two  SUM"},
			corpus:     []Concept{{ID: 1, Title: "Two Sum"}},
			matchType:  MatchExact,
			existingID: 1,
		},
		{
			name:      "never matches itself",
			concept:   Concept{ID: 1, Title: "Two Sum"},
			corpus:    []Concept{{ID: 1, Title: "Two Sum"}},
			matchType: MatchNone,
		},
		{
			name:       "alias to canonical title",
			concept:    Concept{Title: "2sum"},
			corpus:     []Concept{{ID: 5, Title: "Two Sum"}},
			matchType:  MatchAlias,
			existingID: 5,
			canonical:  "Two Sum",
		},
		{
			name:       "exact runs before alias",
			concept:    Concept{Title: "reverse a linked list"},
			corpus:     []Concept{{ID: 1, Title: "Reverse Linked List"}, {ID: 2, Title: "Reverse a Linked List"}},
			matchType:  MatchExact,
			existingID: 2,
		},
		{
			name:       "alias runs before fuzzy",
			concept:    Concept{Title: "Kadane's algorithm"},
			corpus:     []Concept{{ID: 1, Title: "Kadane's algorithm explained"}, {ID: 2, Title: "Maximum Subarray"}},
			matchType:  MatchAlias,
			existingID: 2,
			canonical:  "Maximum Subarray",
		},
		{
			name:       "fuzzy needs a third of the keywords",
			concept:    Concept{Title: "Longest Increasing Subsequence Problem"},
			corpus:     []Concept{{ID: 1, Title: "Longest Path"}, {ID: 2, Title: "Longest Increasing Path"}},
			matchType:  MatchFuzzy,
			existingID: 2,
		},
		{
			name:       "algorithm variant",
			concept:    Concept{Title: "DFS", Category: "Algorithms > Graphs"},
			corpus:     []Concept{{ID: 3, Title: "Depth First Search"}},
			matchType:  MatchVariant,
			existingID: 3,
		},
		{
			name:       "variant matches two surface variants without the base phrase",
			concept:    Concept{Title: "DFS", Category: "Algorithms"},
			corpus:     []Concept{{ID: 3, Title: "Depth-first search"}},
			matchType:  MatchVariant,
			existingID: 3,
		},
		{
			name:       "variant matches sibling variants of one family",
			concept:    Concept{Title: "Memoization", Category: "Algorithms > Dynamic Programming"},
			corpus:     []Concept{{ID: 1, Title: "Binary Search"}, {ID: 4, Title: "Tabulation"}},
			matchType:  MatchVariant,
			existingID: 4,
		},
		{
			name:      "variant needs an algorithm category",
			concept:   Concept{Title: "DFS", Category: "Cooking"},
			corpus:    []Concept{{ID: 3, Title: "Depth First Search"}},
			matchType: MatchNone,
		},
		{
			name:       "semantic picks the most similar above threshold",
			concept:    Concept{Title: "Pair lookup", Embedding: []float32{1, 0}},
			corpus:     []Concept{{ID: 1, Title: "Alpha", Embedding: vectorAt(0.9)}, {ID: 2, Title: "Beta", Embedding: vectorAt(0.95)}},
			matchType:  MatchSemantic,
			existingID: 2,
		},
		{
			name:      "semantic below threshold",
			concept:   Concept{Title: "Pair lookup", Embedding: []float32{1, 0}},
			corpus:    []Concept{{ID: 1, Title: "Alpha", Embedding: vectorAt(0.8)}},
			matchType: MatchNone,
		},
		{
			name:      "no match is not an error",
			concept:   Concept{Title: "Quantum tunnelling"},
			corpus:    []Concept{{ID: 1, Title: "Two Sum"}},
			matchType: MatchNone,
		},
		{
			name:      "empty corpus",
			concept:   Concept{Title: "Two Sum"},
			matchType: MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolution, err := resolver.Resolve(tt.concept, NewCorpus(tt.corpus))
			require.NoError(t, err)
			assert.Equal(t, tt.matchType, resolution.MatchType)
			assert.Equal(t, tt.matchType != MatchNone, resolution.Resolved)
			assert.Equal(t, tt.existingID, resolution.ExistingConceptID)
			assert.Equal(t, tt.canonical, resolution.CanonicalTitle)
		})
	}
}

func TestIdentityResolver_ContainsDuplicate(t *testing.T) {
	corpus := NewCorpus([]Concept{{ID: 7, UID: "cd", Title: "contains duplicate problem"}})

	resolution, err := NewIdentityResolver(nil).Resolve(Concept{Title: "Contains Duplicate", Category: "LeetCode Problems"}, corpus)
	require.NoError(t, err)
	assert.True(t, resolution.Resolved)
	assert.Contains(t, []MatchType{MatchAlias, MatchFuzzy}, resolution.MatchType)
	assert.Equal(t, int32(7), resolution.ExistingConceptID)
	assert.Equal(t, "cd", resolution.ExistingUID)
	assert.Equal(t, "contains duplicate problem", resolution.ExistingTitle)
	assert.InDelta(t, LexicalSimilarity("Contains Duplicate", "contains duplicate problem"), resolution.Confidence, 1e-12)
}

func TestIdentityResolver_Errors(t *testing.T) {
	resolver := NewIdentityResolver(nil)

	_, err := resolver.Resolve(Concept{Title: "  "}, NewCorpus(nil))
	require.ErrorIs(t, err, ErrEmptyTitle)

	_, err = resolver.Resolve(
		Concept{Title: "Pair lookup", Embedding: []float32{1, 0, 0}},
		NewCorpus([]Concept{{ID: 1, Title: "Alpha", Embedding: []float32{1, 0}}}),
	)
	require.Error(t, err)
	assert.True(t, IsDimensionMismatch(err))
}

func TestFuzzyKeywords(t *testing.T) {
	assert.Equal(t, []string{"longest", "common", "prefix"}, fuzzyKeywords("Longest Common Prefix of the longest"))
	assert.Empty(t, fuzzyKeywords("Two Sum"))
}
