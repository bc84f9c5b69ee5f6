package concept

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/hrygo/conceptlens/store"
)

// Corpus is a read-only snapshot of one owner's existing concepts. It is
// built by copying its input and exposes no mutators, so it can be shared by
// concurrent resolutions.
type Corpus struct {
	concepts []Concept
	titles   []string         // normalized titles, parallel to concepts
	byTitle  map[string][]int // normalized title -> indexes in corpus order
}

// NewCorpus snapshots concepts. Later changes to the input do not affect the corpus.
func NewCorpus(concepts []Concept) *Corpus {
	c := &Corpus{
		concepts: make([]Concept, len(concepts)),
		titles:   make([]string, len(concepts)),
		byTitle:  make(map[string][]int, len(concepts)),
	}
	for i, item := range concepts {
		item.KeyPoints = slices.Clone(item.KeyPoints)
		item.Embedding = slices.Clone(item.Embedding)
		c.concepts[i] = item
		title := Normalize(item.Title)
		c.titles[i] = title
		c.byTitle[title] = append(c.byTitle[title], i)
	}
	return c
}

// Len returns the number of concepts in the snapshot.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.concepts)
}

// At returns a copy of the i-th concept.
func (c *Corpus) At(i int) Concept {
	item := c.concepts[i]
	item.KeyPoints = slices.Clone(item.KeyPoints)
	item.Embedding = slices.Clone(item.Embedding)
	return item
}

// FindByTitle returns the indexes of concepts whose normalized title equals title's.
func (c *Corpus) FindByTitle(title string) []int {
	if c == nil {
		return nil
	}
	return slices.Clone(c.byTitle[Normalize(title)])
}

// FindTitleContaining returns, in corpus order, the indexes of concepts whose
// normalized title contains any of the given normalized fragments.
func (c *Corpus) FindTitleContaining(fragments ...string) []int {
	if c == nil {
		return nil
	}
	var found []int
	for i, title := range c.titles {
		for _, fragment := range fragments {
			if fragment != "" && strings.Contains(title, fragment) {
				found = append(found, i)
				break
			}
		}
	}
	return found
}

// normalizedTitle returns the cached normalized title of the i-th concept.
func (c *Corpus) normalizedTitle(i int) string {
	return c.titles[i]
}

// FromStore decodes stored concepts into a snapshot. Rows whose key points
// cannot be decoded are skipped and logged. A row whose embedding cannot be
// decoded stays in the snapshot without an embedding, so it still takes part
// in identity resolution but not in ranking. Embeddings are decoded only when
// withEmbedding is set.
func FromStore(rows []*store.Concept, withEmbedding bool) *Corpus {
	concepts := make([]Concept, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		item, err := DecodeConcept(row, false)
		if err != nil {
			slog.Warn("skipping malformed concept", "concept_id", row.ID, "error", err)
			continue
		}
		if withEmbedding && row.Embedding != "" {
			embedding, err := ParseEmbedding(row.Embedding)
			if err != nil {
				slog.Warn("ignoring malformed embedding", "concept_id", row.ID,
					"error", &ParseError{ConceptID: row.ID, Field: "embedding", Cause: err})
			} else {
				item.Embedding = embedding
			}
		}
		concepts = append(concepts, item)
	}
	return NewCorpus(concepts)
}

// DecodeConcept converts a stored row into a Concept.
func DecodeConcept(row *store.Concept, withEmbedding bool) (Concept, error) {
	item := Concept{
		ID:       row.ID,
		UID:      row.UID,
		Title:    row.Title,
		Category: row.Category,
		Summary:  row.Summary,
		Details:  row.Details,
	}
	keyPoints, err := ParseKeyPoints(row.KeyPoints)
	if err != nil {
		return Concept{}, &ParseError{ConceptID: row.ID, Field: "key_points", Cause: err}
	}
	item.KeyPoints = keyPoints

	if withEmbedding && row.Embedding != "" {
		embedding, err := ParseEmbedding(row.Embedding)
		if err != nil {
			return Concept{}, &ParseError{ConceptID: row.ID, Field: "embedding", Cause: err}
		}
		item.Embedding = embedding
	}
	return item, nil
}

// ParseKeyPoints decodes the stored JSON array of key points. Empty input is
// an empty list.
func ParseKeyPoints(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var keyPoints []string
	if err := json.Unmarshal([]byte(raw), &keyPoints); err != nil {
		return nil, err
	}
	return keyPoints, nil
}

// ParseEmbedding decodes a stored vector. Both the JSON array form and the
// pgvector text form ("[0.1,0.2]") are accepted.
func ParseEmbedding(raw string) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &embedding); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return embedding, nil
}

// EncodeKeyPoints serializes key points for storage.
func EncodeKeyPoints(keyPoints []string) string {
	if len(keyPoints) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(keyPoints)
	return string(data)
}
