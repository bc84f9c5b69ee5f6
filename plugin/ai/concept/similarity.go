package concept

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Weights of the lexical similarity blend.
const (
	jaccardWeight     = 0.5
	containmentWeight = 0.3
	charOverlapWeight = 0.2

	// containmentScore is the signal value when one title contains the other.
	containmentScore = 0.8
	// minLexicalTokenLen excludes short stop-words from the Jaccard token set.
	minLexicalTokenLen = 3
)

// Normalize lowercases text, trims it and collapses whitespace runs to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// LexicalSimilarity scores two strings in [0,1] by blending token Jaccard,
// substring containment and distinct-character overlap.
func LexicalSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}

	score := jaccardWeight*tokenJaccard(na, nb) +
		containmentWeight*containment(na, nb) +
		charOverlapWeight*charOverlap(na, nb)
	return math.Min(score, 1.0)
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(normalized) {
		if utf8.RuneCountInString(word) >= minLexicalTokenLen {
			set[word] = struct{}{}
		}
	}
	return set
}

func tokenJaccard(na, nb string) float64 {
	setA, setB := tokenSet(na), tokenSet(nb)
	var intersection int
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func containment(na, nb string) float64 {
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}
	return 0
}

func charSet(normalized string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range normalized {
		if r != ' ' {
			set[r] = struct{}{}
		}
	}
	return set
}

func charOverlap(na, nb string) float64 {
	setA, setB := charSet(na), charSet(nb)
	maxLen := max(len(setA), len(setB))
	if maxLen == 0 {
		return 0
	}
	var common int
	for r := range setA {
		if _, ok := setB[r]; ok {
			common++
		}
	}
	return float64(common) / float64(maxLen)
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Both vectors must have the same, positive length.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, &DimensionMismatchError{Left: len(a), Right: len(b)}
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// percentage converts a similarity to a rounded 0-100 score.
func percentage(similarity float64) int {
	p := int(math.Round(similarity * 100))
	return min(max(p, 0), 100)
}
