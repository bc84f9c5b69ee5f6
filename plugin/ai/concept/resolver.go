package concept

import (
	"strings"
	"unicode/utf8"
)

// minFuzzyKeywordLen is the rune length a title word must exceed to count as
// a fuzzy-match keyword.
const minFuzzyKeywordLen = 3

// stageFunc is one step of the identity cascade. It returns nil, nil when it
// finds nothing, so the next stage is consulted.
type stageFunc func(c Concept, corpus *Corpus) (*Resolution, error)

type variantFamily struct {
	base     string
	matchers []phraseMatcher // base first, then its surface variants
}

func (f variantFamily) matches(normalized string) bool {
	return anyMatch(f.matchers, normalized)
}

// IdentityResolver decides whether a new concept is one already in the corpus.
// The cascade is first-match-wins: cheaper, stricter stages run first and a
// later stage is only consulted when every earlier one found nothing.
type IdentityResolver struct {
	aliases           *AliasResolver
	variantCategories []string
	variants          []variantFamily
	semanticThreshold float64
	stages            []stageFunc
}

// NewIdentityResolver creates a resolver over the given catalogue; nil selects
// the built-in one.
func NewIdentityResolver(cat *Catalogue) *IdentityResolver {
	if cat == nil {
		cat = DefaultCatalogue()
	}
	r := &IdentityResolver{
		aliases:           NewAliasResolver(cat),
		variantCategories: cat.VariantCategories,
		semanticThreshold: DefaultRankerConfig().DuplicateThreshold,
	}
	for _, entry := range cat.Variants {
		family := variantFamily{base: entry.Base, matchers: []phraseMatcher{newPhraseMatcher(entry.Base)}}
		for _, v := range entry.Variants {
			family.matchers = append(family.matchers, newPhraseMatcher(v))
		}
		r.variants = append(r.variants, family)
	}
	r.stages = []stageFunc{
		r.matchExact,
		r.matchAlias,
		r.matchFuzzyKeyword,
		r.matchAlgorithmVariant,
		r.matchSemantic,
	}
	return r
}

// Resolve runs the cascade for c against corpus. A concept that matches
// nothing yields Resolved=false with MatchNone; that is not an error.
func (r *IdentityResolver) Resolve(c Concept, corpus *Corpus) (*Resolution, error) {
	if Normalize(c.Title) == "" {
		return nil, ErrEmptyTitle
	}
	for _, stage := range r.stages {
		resolution, err := stage(c, corpus)
		if err != nil {
			return nil, err
		}
		if resolution != nil {
			return resolution, nil
		}
	}
	return &Resolution{MatchType: MatchNone}, nil
}

func (r *IdentityResolver) matchExact(c Concept, corpus *Corpus) (*Resolution, error) {
	if i, ok := firstOther(c, corpus, corpus.FindByTitle(c.Title)); ok {
		return resolved(MatchExact, c, corpus.At(i)), nil
	}
	return nil, nil
}

func (r *IdentityResolver) matchAlias(c Concept, corpus *Corpus) (*Resolution, error) {
	canonical, ok := r.aliases.Resolve(c.Title, c.Category)
	if !ok {
		return nil, nil
	}
	if i, ok := firstOther(c, corpus, corpus.FindByTitle(canonical)); ok {
		resolution := resolved(MatchAlias, c, corpus.At(i))
		resolution.CanonicalTitle = canonical
		return resolution, nil
	}
	return nil, nil
}

// matchFuzzyKeyword accepts the first candidate, in corpus order, that
// contains at least a third of the new title's keywords.
// TODO: pick the candidate with the highest keyword fraction; the first one
// over the bar can shadow a better match later in the corpus.
func (r *IdentityResolver) matchFuzzyKeyword(c Concept, corpus *Corpus) (*Resolution, error) {
	keywords := fuzzyKeywords(c.Title)
	if len(keywords) == 0 {
		return nil, nil
	}
	for _, i := range corpus.FindTitleContaining(keywords...) {
		if isSelf(c, corpus, i) {
			continue
		}
		title := corpus.normalizedTitle(i)
		matched := 0
		for _, keyword := range keywords {
			if strings.Contains(title, keyword) {
				matched++
			}
		}
		if 3*matched >= len(keywords) {
			return resolved(MatchFuzzy, c, corpus.At(i)), nil
		}
	}
	return nil, nil
}

func (r *IdentityResolver) matchAlgorithmVariant(c Concept, corpus *Corpus) (*Resolution, error) {
	if !categoryAllowed(c.Category, r.variantCategories) {
		return nil, nil
	}
	title := Normalize(c.Title)
	for _, family := range r.variants {
		if !family.matches(title) {
			continue
		}
		for i := 0; i < corpus.Len(); i++ {
			existing := corpus.normalizedTitle(i)
			if existing == title || isSelf(c, corpus, i) {
				continue
			}
			if family.matches(existing) {
				return resolved(MatchVariant, c, corpus.At(i)), nil
			}
		}
	}
	return nil, nil
}

// matchSemantic resolves to the most similar embedded concept above the
// duplicate threshold. It only runs when the new concept has an embedding.
func (r *IdentityResolver) matchSemantic(c Concept, corpus *Corpus) (*Resolution, error) {
	if !c.HasEmbedding() {
		return nil, nil
	}
	best, bestScore := -1, r.semanticThreshold
	for i := 0; i < corpus.Len(); i++ {
		if isSelf(c, corpus, i) || !corpus.concepts[i].HasEmbedding() {
			continue
		}
		score, err := CosineSimilarity(c.Embedding, corpus.concepts[i].Embedding)
		if err != nil {
			return nil, err
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, nil
	}
	return resolved(MatchSemantic, c, corpus.At(best)), nil
}

// fuzzyKeywords returns the distinct words of title longer than three characters.
func fuzzyKeywords(title string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, word := range strings.Fields(Normalize(title)) {
		if utf8.RuneCountInString(word) <= minFuzzyKeywordLen || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

func isSelf(c Concept, corpus *Corpus, i int) bool {
	return c.ID != 0 && corpus.concepts[i].ID == c.ID
}

func firstOther(c Concept, corpus *Corpus, indexes []int) (int, bool) {
	for _, i := range indexes {
		if !isSelf(c, corpus, i) {
			return i, true
		}
	}
	return 0, false
}

func resolved(matchType MatchType, c Concept, existing Concept) *Resolution {
	return &Resolution{
		Resolved:          true,
		MatchType:         matchType,
		ExistingConceptID: existing.ID,
		ExistingUID:       existing.UID,
		ExistingTitle:     existing.Title,
		Confidence:        LexicalSimilarity(c.Title, existing.Title),
	}
}
