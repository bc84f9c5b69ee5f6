package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name     string
		newC     Concept
		existing Concept
		typ      RelationshipType
		reason   string
		shared   []string
		strength float64
	}{
		{
			name:     "shared data structure",
			newC:     Concept{Title: "Contains Duplicate", Summary: "Use a hash set to detect repeats"},
			existing: Concept{Title: "Two Sum", Summary: "Use a hash map to look up the complement"},
			typ:      RelSharedDataStructure,
			reason:   "Both use the same data structures: hash",
			shared:   []string{"hash"},
			strength: 0.8,
		},
		{
			name:     "later rule replaces earlier verdict",
			newC:     Concept{Title: "Merge Sort", Summary: "Sorting an array by recursion"},
			existing: Concept{Title: "Quick Sort", Summary: "Sorting an array with recursion"},
			typ:      RelSharedAlgorithm,
			reason:   "Both apply the same algorithmic technique: sorting, recursion",
			shared:   []string{"array", "sorting", "recursion"},
			strength: 1.0,
		},
		{
			name:     "complexity is not read from titles",
			newC:     Concept{Title: "O(n) scan"},
			existing: Concept{Title: "O(n) pass"},
			typ:      RelGeneralSimilarity,
			reason:   "Semantically similar concepts",
			strength: 0.6,
		},
		{
			name:     "complexity in summaries",
			newC:     Concept{Title: "Linear scan", Summary: "Runs in O(n) time"},
			existing: Concept{Title: "Counting", KeyPoints: []string{"Runs in O(n) time"}},
			typ:      RelSharedComplexityConcern,
			reason:   "Both discuss the same complexity concern: o(n)",
			shared:   []string{"o(n)"},
			strength: 0.8,
		},
		{
			name:     "same category",
			newC:     Concept{Title: "Alpha", Category: "Algorithms > Sorting"},
			existing: Concept{Title: "Beta", Category: "algorithms >  sorting"},
			typ:      RelSameCategory,
			reason:   `Both belong to category "Algorithms > Sorting"`,
			shared:   []string{"Algorithms > Sorting"},
			strength: 0.8,
		},
		{
			name:     "generic category is ignored",
			newC:     Concept{Title: "Alpha", Category: "General"},
			existing: Concept{Title: "Beta", Category: "general"},
			typ:      RelGeneralSimilarity,
			reason:   "Semantically similar concepts",
			strength: 0.6,
		},
		{
			name:     "category annotates a specific verdict",
			newC:     Concept{Title: "Stack basics", Category: "Data Structures"},
			existing: Concept{Title: "Monotonic stack", Category: "Data Structures"},
			typ:      RelSharedDataStructure,
			reason:   `Both use the same data structures: stack (same category "Data Structures")`,
			shared:   []string{"stack"},
			strength: 0.8,
		},
		{
			name:     "new concept is the prerequisite",
			newC:     Concept{Title: "Basic Arrays", Summary: "Introduction to array indexing"},
			existing: Concept{Title: "Advanced Array Techniques", Summary: "Expert-level array tricks"},
			typ:      RelPrerequisite,
			reason:   `"Basic Arrays" is a prerequisite for "Advanced Array Techniques"`,
			shared:   []string{"array"},
			strength: 0.8,
		},
		{
			name:     "existing concept is the prerequisite",
			newC:     Concept{Title: "Advanced Array Techniques", Summary: "Expert-level array tricks"},
			existing: Concept{Title: "Basic Arrays", Summary: "Introduction to array indexing"},
			typ:      RelPrerequisite,
			reason:   `"Basic Arrays" is a prerequisite for "Advanced Array Techniques"`,
			shared:   []string{"array"},
			strength: 0.8,
		},
		{
			name:     "mixed level is neutral",
			newC:     Concept{Title: "Basic and advanced trees"},
			existing: Concept{Title: "Introduction to trees"},
			typ:      RelSharedDataStructure,
			reason:   "Both use the same data structures: tree",
			shared:   []string{"tree"},
			strength: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.newC, tt.existing)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.shared, got.SharedElements)
			assert.InDelta(t, tt.strength, got.Strength, 1e-9)
		})
	}
}

func TestClassifier_StrengthIsCapped(t *testing.T) {
	c := Concept{
		Title:   "Graph traversal",
		Summary: "Recursion over a tree, a graph, a stack and a queue",
	}
	got := NewClassifier().Classify(c, c)
	assert.Equal(t, []string{"queue", "stack", "tree", "graph", "traversal", "recursion"}, got.SharedElements)
	assert.Equal(t, RelSharedAlgorithm, got.Type)
	assert.Equal(t, 1.0, got.Strength)
}
