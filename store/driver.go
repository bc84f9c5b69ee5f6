package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	// Migrate creates the tables and indexes idempotently.
	Migrate(ctx context.Context) error

	// Concept model related methods.
	CreateConcept(ctx context.Context, create *Concept) (*Concept, error)
	ListConcepts(ctx context.Context, find *FindConcept) ([]*Concept, error)
	UpdateConcept(ctx context.Context, update *UpdateConcept) (*Concept, error)
	DeleteConcept(ctx context.Context, delete *DeleteConcept) error

	// ConceptEmbedding model related methods.
	UpsertConceptEmbedding(ctx context.Context, upsert *ConceptEmbedding) (*ConceptEmbedding, error)
	// ListConceptsWithEmbedding returns every concept of the owner, with the
	// embedding of the given model in text form when one is stored.
	ListConceptsWithEmbedding(ctx context.Context, find *FindConceptEmbedding) ([]*Concept, error)
	FindConceptsWithoutEmbedding(ctx context.Context, find *FindConceptsWithoutEmbedding) ([]*Concept, error)

	// ConceptRelation model related methods.
	UpsertConceptRelation(ctx context.Context, upsert *ConceptRelation) (*ConceptRelation, error)
	ListConceptRelations(ctx context.Context, find *FindConceptRelation) ([]*ConceptRelation, error)
}
