package concept

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogueYAML []byte

// AliasEntry maps a canonical problem name to its known phrasings.
type AliasEntry struct {
	Canonical string   `yaml:"canonical"`
	Keyword   string   `yaml:"keyword"`
	Phrasings []string `yaml:"phrasings"`
}

// VariantEntry lists surface variants of one algorithm family.
type VariantEntry struct {
	Base     string   `yaml:"base"`
	Variants []string `yaml:"variants"`
}

// Catalogue holds the alias and algorithm-variant tables.
type Catalogue struct {
	AliasCategories   []string       `yaml:"alias_categories"`
	Aliases           []AliasEntry   `yaml:"aliases"`
	VariantCategories []string       `yaml:"variant_categories"`
	Variants          []VariantEntry `yaml:"variants"`
}

// ParseCatalogue decodes a YAML catalogue and normalizes every phrase in it.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalogue")
	}
	for i := range cat.AliasCategories {
		cat.AliasCategories[i] = Normalize(cat.AliasCategories[i])
	}
	for i := range cat.VariantCategories {
		cat.VariantCategories[i] = Normalize(cat.VariantCategories[i])
	}
	for i := range cat.Aliases {
		entry := &cat.Aliases[i]
		if strings.TrimSpace(entry.Canonical) == "" {
			return nil, errors.Errorf("alias entry %d has no canonical name", i)
		}
		entry.Keyword = Normalize(entry.Keyword)
		for j := range entry.Phrasings {
			entry.Phrasings[j] = Normalize(entry.Phrasings[j])
		}
	}
	for i := range cat.Variants {
		entry := &cat.Variants[i]
		if entry.Base = Normalize(entry.Base); entry.Base == "" {
			return nil, errors.Errorf("variant entry %d has no base phrase", i)
		}
		for j := range entry.Variants {
			entry.Variants[j] = Normalize(entry.Variants[j])
		}
	}
	return &cat, nil
}

var (
	defaultCatalogueOnce sync.Once
	defaultCatalogue     *Catalogue
)

// DefaultCatalogue returns the built-in catalogue.
func DefaultCatalogue() *Catalogue {
	defaultCatalogueOnce.Do(func() {
		cat, err := ParseCatalogue(defaultCatalogueYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalogue = cat
	})
	return defaultCatalogue
}

// AliasResolver maps known phrasings of named problems to a canonical title.
// Phrasings and keywords match whole words of the normalized title.
type AliasResolver struct {
	catalogue *Catalogue
	entries   []aliasMatcher
}

type aliasMatcher struct {
	canonical string
	keyword   *phraseMatcher
	phrasings []phraseMatcher
}

// NewAliasResolver creates an AliasResolver. A nil catalogue selects the built-in one.
func NewAliasResolver(cat *Catalogue) *AliasResolver {
	if cat == nil {
		cat = DefaultCatalogue()
	}
	entries := make([]aliasMatcher, 0, len(cat.Aliases))
	for _, entry := range cat.Aliases {
		matcher := aliasMatcher{canonical: entry.Canonical}
		if entry.Keyword != "" {
			keyword := newPhraseMatcher(entry.Keyword)
			matcher.keyword = &keyword
		}
		for _, phrasing := range entry.Phrasings {
			if phrasing != "" {
				matcher.phrasings = append(matcher.phrasings, newPhraseMatcher(phrasing))
			}
		}
		entries = append(entries, matcher)
	}
	return &AliasResolver{catalogue: cat, entries: entries}
}

// Resolve returns the canonical title for a known phrasing of title.
// It reports false when nothing matches or when title already is the canonical name.
func (r *AliasResolver) Resolve(title, category string) (string, bool) {
	normalized := Normalize(title)
	if normalized == "" {
		return "", false
	}

	for _, entry := range r.entries {
		for _, phrasing := range entry.phrasings {
			if !phrasing.matches(normalized) {
				continue
			}
			if normalized == Normalize(entry.canonical) {
				return "", false
			}
			return entry.canonical, true
		}
	}

	// Broad pass: paraphrased titles filed under a named-problem category.
	if !categoryAllowed(category, r.catalogue.AliasCategories) {
		return "", false
	}
	for _, entry := range r.entries {
		if entry.keyword == nil || !entry.keyword.matches(normalized) {
			continue
		}
		if normalized == Normalize(entry.canonical) {
			return "", false
		}
		return entry.canonical, true
	}
	return "", false
}

// categoryAllowed reports whether any segment of a hierarchical category path
// is in the allow-list.
func categoryAllowed(category string, allowList []string) bool {
	for _, segment := range categorySegments(category) {
		for _, allowed := range allowList {
			if segment == allowed {
				return true
			}
		}
	}
	return false
}

// categorySegments splits "Algorithms > Sorting" into normalized segments.
func categorySegments(category string) []string {
	var segments []string
	for _, part := range strings.Split(category, ">") {
		if s := Normalize(part); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// phraseMatcher matches a normalized phrase on word boundaries, tolerating a
// plural suffix.
type phraseMatcher struct {
	phrase string
	re     *regexp.Regexp
}

func newPhraseMatcher(phrase string) phraseMatcher {
	phrase = Normalize(phrase)
	if phrase == "" {
		return phraseMatcher{re: regexp.MustCompile(`[^\x00-\x{10FFFF}]`)}
	}
	pattern := regexp.QuoteMeta(phrase)
	if isWordByte(phrase[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(phrase[len(phrase)-1]) {
		pattern += `(?:s|es)?\b`
	}
	return phraseMatcher{phrase: phrase, re: regexp.MustCompile(pattern)}
}

func (m phraseMatcher) matches(normalized string) bool {
	return m.re.MatchString(normalized)
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
