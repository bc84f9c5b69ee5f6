package store

import "context"

// Concept is a stored unit of knowledge owned by one user.
type Concept struct {
	ID      int32
	UID     string
	OwnerID int32

	Title string
	// TitleKey is the normalized title used for exact lookups.
	TitleKey string
	Category string
	Summary  string
	// KeyPoints is a JSON array of strings.
	KeyPoints string
	Details   string

	// Embedding is the stored vector in text form ("[0.1,0.2]"). It is only
	// populated by ListConceptsWithEmbedding and is empty when none is stored.
	Embedding string

	CreatedTs int64
	UpdatedTs int64
}

type FindConcept struct {
	ID       *int32
	UID      *string
	OwnerID  *int32
	TitleKey *string
	// TitleSearch matches title keys containing the given lowercase text.
	TitleSearch *string
	Limit       *int
}

type UpdateConcept struct {
	ID int32

	UpdatedTs *int64
	Title     *string
	TitleKey  *string
	Category  *string
	Summary   *string
	KeyPoints *string
	Details   *string
}

// DeleteConcept removes a concept together with its embeddings and relations.
type DeleteConcept struct {
	ID int32
}

// ConceptEmbedding is the vector of one concept for one model.
type ConceptEmbedding struct {
	ID        int32
	ConceptID int32
	Embedding []float32
	Model     string
	CreatedTs int64
	UpdatedTs int64
}

type FindConceptEmbedding struct {
	OwnerID int32
	Model   string
}

// FindConceptsWithoutEmbedding selects concepts, of any owner, that have no
// embedding for Model yet, in id order starting after AfterID.
type FindConceptsWithoutEmbedding struct {
	Model   string
	AfterID int32
	Limit   int
}

// ConceptRelation links two concepts with a classified relationship.
type ConceptRelation struct {
	ConceptID        int32
	RelatedConceptID int32
	Type             string
	Reason           string
	Strength         float64
	CreatedTs        int64
}

type FindConceptRelation struct {
	ConceptID        *int32
	RelatedConceptID *int32
}

func (s *Store) CreateConcept(ctx context.Context, create *Concept) (*Concept, error) {
	return s.driver.CreateConcept(ctx, create)
}

func (s *Store) ListConcepts(ctx context.Context, find *FindConcept) ([]*Concept, error) {
	return s.driver.ListConcepts(ctx, find)
}

// GetConcept returns the first concept matching find, or nil when none does.
func (s *Store) GetConcept(ctx context.Context, find *FindConcept) (*Concept, error) {
	list, err := s.ListConcepts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConcept(ctx context.Context, update *UpdateConcept) (*Concept, error) {
	return s.driver.UpdateConcept(ctx, update)
}

func (s *Store) DeleteConcept(ctx context.Context, delete *DeleteConcept) error {
	return s.driver.DeleteConcept(ctx, delete)
}

// UpsertConceptEmbedding inserts or updates a concept embedding.
func (s *Store) UpsertConceptEmbedding(ctx context.Context, upsert *ConceptEmbedding) (*ConceptEmbedding, error) {
	return s.driver.UpsertConceptEmbedding(ctx, upsert)
}

func (s *Store) ListConceptsWithEmbedding(ctx context.Context, find *FindConceptEmbedding) ([]*Concept, error) {
	return s.driver.ListConceptsWithEmbedding(ctx, find)
}

func (s *Store) FindConceptsWithoutEmbedding(ctx context.Context, find *FindConceptsWithoutEmbedding) ([]*Concept, error) {
	return s.driver.FindConceptsWithoutEmbedding(ctx, find)
}

func (s *Store) UpsertConceptRelation(ctx context.Context, upsert *ConceptRelation) (*ConceptRelation, error) {
	return s.driver.UpsertConceptRelation(ctx, upsert)
}

func (s *Store) ListConceptRelations(ctx context.Context, find *FindConceptRelation) ([]*ConceptRelation, error) {
	return s.driver.ListConceptRelations(ctx, find)
}
