package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasResolver_Resolve(t *testing.T) {
	resolver := NewAliasResolver(nil)

	tests := []struct {
		name      string
		title     string
		category  string
		canonical string
		ok        bool
	}{
		{name: "short phrasing", title: "2sum", canonical: "Two Sum", ok: true},
		{name: "phrasing inside a longer title", title: "The two-sum problem", canonical: "Two Sum", ok: true},
		{name: "phrasing is case and space insensitive", title: "  Kadane's   ALGORITHM ", canonical: "Maximum Subarray", ok: true},
		{name: "already canonical", title: "Two Sum", ok: false},
		{name: "canonical with different case", title: "contains duplicate", ok: false},
		{name: "keyword pass under allowed category", title: "Find anagram pairs", category: "LeetCode Problems", canonical: "Valid Anagram", ok: true},
		{name: "keyword pass under nested category", title: "Find anagram pairs", category: "Practice > LeetCode", canonical: "Valid Anagram", ok: true},
		{name: "keyword pass needs allowed category", title: "Find anagram pairs", category: "Algorithms", ok: false},
		{name: "keyword pass without category", title: "Find anagram pairs", ok: false},
		{name: "first keyword entry wins", title: "Group anagram words", category: "leetcode", canonical: "Group Anagrams", ok: true},
		{name: "keyword must be a whole word", title: "Recycle bin", category: "LeetCode", ok: false},
		{name: "keyword plural form", title: "Counting the islands", category: "LeetCode", canonical: "Number of Islands", ok: true},
		{name: "keyword singular is a different word", title: "Island biogeography", category: "LeetCode", ok: false},
		{name: "phrasing must be whole words", title: "Redetect cycles", ok: false},
		{name: "unknown title", title: "Binary Search", category: "LeetCode Problems", ok: false},
		{name: "empty title", title: "   ", category: "LeetCode Problems", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, ok := resolver.Resolve(tt.title, tt.category)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.canonical, canonical)
		})
	}
}

func TestParseCatalogue(t *testing.T) {
	t.Run("normalizes phrases", func(t *testing.T) {
		cat, err := ParseCatalogue([]byte(`
alias_categories: ["  Puzzles "]
aliases:
  - canonical: Tower of Hanoi
    keyword: " HANOI "
    phrasings: ["Hanoi  Towers"]
variant_categories: [Algorithms]
variants:
  - base: " Binary Search "
    variants: ["Bisection"]
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"puzzles"}, cat.AliasCategories)
		assert.Equal(t, "Tower of Hanoi", cat.Aliases[0].Canonical)
		assert.Equal(t, "hanoi", cat.Aliases[0].Keyword)
		assert.Equal(t, []string{"hanoi towers"}, cat.Aliases[0].Phrasings)
		assert.Equal(t, []string{"algorithms"}, cat.VariantCategories)
		assert.Equal(t, "binary search", cat.Variants[0].Base)
		assert.Equal(t, []string{"bisection"}, cat.Variants[0].Variants)

		canonical, ok := NewAliasResolver(cat).Resolve("hanoi towers puzzle", "")
		assert.True(t, ok)
		assert.Equal(t, "Tower of Hanoi", canonical)
	})

	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "aliases: [unclosed"},
		{"alias without canonical", "aliases:\n  - keyword: x\n"},
		{"variant without base", "variants:\n  - variants: [x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogue([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestDefaultCatalogue(t *testing.T) {
	cat := DefaultCatalogue()
	require.NotEmpty(t, cat.Aliases)
	require.NotEmpty(t, cat.Variants)
	assert.Same(t, cat, DefaultCatalogue())
	for _, entry := range cat.Aliases {
		assert.NotEmpty(t, entry.Phrasings, entry.Canonical)
	}
}

func TestPhraseMatcher(t *testing.T) {
	tests := []struct {
		phrase  string
		text    string
		matches bool
	}{
		{"set", "hash set lookup", true},
		{"set", "offset arithmetic", false},
		{"map", "hash maps", true},
		{"tree", "binary trees", true},
		{"o(n)", "runs in o(n) time", true},
		{"o(n)", "runs in o(n log n) time", false},
		{"list", "listing files", false},
		{"", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.phrase+"/"+tt.text, func(t *testing.T) {
			assert.Equal(t, tt.matches, newPhraseMatcher(tt.phrase).matches(tt.text))
		})
	}
}
