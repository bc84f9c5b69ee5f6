package concept

import (
	"errors"
	"fmt"
)

// ErrEmptyTitle is returned when a concept without a title is submitted for matching.
var ErrEmptyTitle = errors.New("concept title is empty")

// ErrConceptNotFound is returned when a concept does not exist or belongs to another owner.
var ErrConceptNotFound = errors.New("concept not found")

// ErrSameConcept is returned when a link or merge names the same concept twice.
var ErrSameConcept = errors.New("source and target are the same concept")

// ErrEmptyEmbedding is returned for a zero-length embedding.
var ErrEmptyEmbedding = errors.New("empty embedding")

// ConfigurationError reports that no embedding could be obtained because the
// provider is missing or failing. Callers fall back to identity resolution.
type ConfigurationError struct {
	Reason string
	Cause  error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding unavailable: %s: %v", e.Reason, e.Cause)
	}
	return "embedding unavailable: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// DimensionMismatchError reports two embeddings of different length. It means
// the corpus is inconsistent (e.g. the embedding model changed) and must
// never be swallowed.
type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d != %d", e.Left, e.Right)
}

// ParseError reports a stored concept field that could not be decoded.
// It only disqualifies the one row it belongs to.
type ParseError struct {
	ConceptID int32
	Field     string
	Cause     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("concept %d: malformed %s: %v", e.ConceptID, e.Field, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsDimensionMismatch reports whether err is, or wraps, a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var target *DimensionMismatchError
	return errors.As(err, &target)
}
