package concept

import (
	"fmt"
	"math"
	"strings"
)

const (
	baseStrength    = 0.6
	strengthPerItem = 0.2
)

// textScope selects the concept fields a rule scans.
type textScope int

const (
	// scopeFull covers title, summary and key points.
	scopeFull textScope = iota
	// scopeBody covers summary and key points; titles rarely state complexity.
	scopeBody
)

// keywordRule is one row of the relationship taxonomy. Rules are evaluated in
// order and a later matching rule replaces the verdict of an earlier one.
type keywordRule struct {
	Type     RelationshipType
	Reason   string // formatted with the comma-joined shared keywords
	Scope    textScope
	Keywords []string

	matchers []phraseMatcher
}

var defaultRules = []keywordRule{
	{
		Type:     RelSharedDataStructure,
		Reason:   "Both use the same data structures: %s",
		Scope:    scopeFull,
		Keywords: []string{"array", "set", "map", "list", "queue", "stack", "tree", "graph", "hash"},
	},
	{
		Type:     RelSharedAlgorithm,
		Reason:   "Both apply the same algorithmic technique: %s",
		Scope:    scopeFull,
		Keywords: []string{"sorting", "searching", "traversal", "recursion", "iteration", "dynamic programming", "greedy", "backtracking"},
	},
	{
		Type:     RelSharedProblemPattern,
		Reason:   "Both follow the same problem pattern: %s",
		Scope:    scopeFull,
		Keywords: []string{"duplicate", "contains", "find", "remove", "insert", "merge", "split", "reverse"},
	},
	{
		Type:     RelSharedComplexityConcern,
		Reason:   "Both discuss the same complexity concern: %s",
		Scope:    scopeBody,
		Keywords: []string{"time complexity", "space complexity", "o(1)", "o(log n)", "o(n)", "o(n log n)", "o(n^2)", "o(n²)", "o(2^n)", "optimization"},
	},
}

var (
	beginnerWords = []string{"basic", "fundamental", "introduction", "beginner"}
	advancedWords = []string{"advanced", "complex", "optimization", "expert"}

	// genericCategories never count as a shared category.
	genericCategories = map[string]bool{
		"":              true,
		"general":       true,
		"other":         true,
		"misc":          true,
		"miscellaneous": true,
		"uncategorized": true,
		"uncategorised": true,
	}
)

// Classifier assigns a relationship type to a pair of concepts.
type Classifier struct {
	rules    []keywordRule
	beginner []phraseMatcher
	advanced []phraseMatcher
}

// NewClassifier creates a Classifier with the default taxonomy.
func NewClassifier() *Classifier {
	rules := make([]keywordRule, len(defaultRules))
	for i, rule := range defaultRules {
		rule.matchers = compileMatchers(rule.Keywords)
		rules[i] = rule
	}
	return &Classifier{
		rules:    rules,
		beginner: compileMatchers(beginnerWords),
		advanced: compileMatchers(advancedWords),
	}
}

func compileMatchers(words []string) []phraseMatcher {
	matchers := make([]phraseMatcher, len(words))
	for i, w := range words {
		matchers[i] = newPhraseMatcher(w)
	}
	return matchers
}

// Classify explains how newConcept relates to existing.
func (c *Classifier) Classify(newConcept, existing Concept) RelationshipClassification {
	verdict := RelationshipClassification{
		Type:   RelGeneralSimilarity,
		Reason: "Semantically similar concepts",
	}
	var shared []string
	specific := false

	newText := conceptText(newConcept)
	existingText := conceptText(existing)

	for _, rule := range c.rules {
		a, b := newText.scoped(rule.Scope), existingText.scoped(rule.Scope)
		common := sharedKeywords(rule.matchers, a, b)
		if len(common) == 0 {
			continue
		}
		verdict.Type = rule.Type
		verdict.Reason = fmt.Sprintf(rule.Reason, strings.Join(common, ", "))
		shared = appendUnique(shared, common...)
		specific = true
	}

	if category, ok := sharedCategory(newConcept.Category, existing.Category); ok {
		if !specific {
			verdict.Type = RelSameCategory
			verdict.Reason = fmt.Sprintf("Both belong to category %q", category)
			shared = appendUnique(shared, category)
		} else {
			verdict.Reason += fmt.Sprintf(" (same category %q)", category)
		}
	}

	if reason, ok := c.prerequisite(newConcept, existing, newText.heading, existingText.heading); ok {
		verdict.Type = RelPrerequisite
		verdict.Reason = reason
	}

	verdict.SharedElements = shared
	verdict.Strength = math.Min(baseStrength+strengthPerItem*float64(len(shared)), 1.0)
	return verdict
}

type level int

const (
	levelNeutral level = iota
	levelBasic
	levelAdvanced
)

func (c *Classifier) level(heading string) level {
	basic := anyMatch(c.beginner, heading)
	advanced := anyMatch(c.advanced, heading)
	switch {
	case basic && !advanced:
		return levelBasic
	case advanced && !basic:
		return levelAdvanced
	default:
		return levelNeutral
	}
}

func (c *Classifier) prerequisite(newConcept, existing Concept, newHeading, existingHeading string) (string, bool) {
	newLevel, existingLevel := c.level(newHeading), c.level(existingHeading)
	switch {
	case newLevel == levelBasic && existingLevel == levelAdvanced:
		return fmt.Sprintf("%q is a prerequisite for %q", newConcept.Title, existing.Title), true
	case newLevel == levelAdvanced && existingLevel == levelBasic:
		return fmt.Sprintf("%q is a prerequisite for %q", existing.Title, newConcept.Title), true
	default:
		return "", false
	}
}

// scannedText is the normalized text of a concept, split by scope.
type scannedText struct {
	heading string // title + summary
	full    string // title + summary + key points
	body    string // summary + key points
}

func conceptText(c Concept) scannedText {
	keyPoints := strings.Join(c.KeyPoints, " ")
	return scannedText{
		heading: Normalize(c.Title + " " + c.Summary),
		full:    Normalize(c.Title + " " + c.Summary + " " + keyPoints),
		body:    Normalize(c.Summary + " " + keyPoints),
	}
}

func (t scannedText) scoped(scope textScope) string {
	if scope == scopeBody {
		return t.body
	}
	return t.full
}

// sharedKeywords returns, in taxonomy order, the keywords found in both texts.
func sharedKeywords(matchers []phraseMatcher, a, b string) []string {
	var common []string
	for _, m := range matchers {
		if m.matches(a) && m.matches(b) {
			common = append(common, m.phrase)
		}
	}
	return common
}

func anyMatch(matchers []phraseMatcher, text string) bool {
	for _, m := range matchers {
		if m.matches(text) {
			return true
		}
	}
	return false
}

func sharedCategory(a, b string) (string, bool) {
	na, nb := Normalize(a), Normalize(b)
	if na != nb || genericCategories[na] {
		return "", false
	}
	return strings.TrimSpace(a), true
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
