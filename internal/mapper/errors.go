package mapper

import (
	"errors"
	"fmt"

	"dteintake/pkg/models"
)

// Common mapping errors
var (
	// ErrMissingIdentity is returned when neither a document number nor a
	// total can be resolved, so the document cannot be told apart from noise.
	ErrMissingIdentity = errors.New("document number and total could not be resolved")

	// ErrInvalidDocument is returned when the document does not have the shape
	// the mapper requires (e.g. a DTE without identificacion).
	ErrInvalidDocument = errors.New("document does not match the expected schema")

	// ErrUnexpected is returned when a mapper fails in a way it did not
	// anticipate. The original panic value is kept in the error message.
	ErrUnexpected = errors.New("unexpected mapping failure")

	// ErrMapperNotFound is returned by the registry when no mapper is bound to
	// a format and no fallback is configured.
	ErrMapperNotFound = errors.New("no mapper registered for format")
)

// MappingError describes a failed conversion of one source document.
type MappingError struct {
	// Source is the path of the file being mapped.
	Source string

	// Mapper is the name of the mapper that failed.
	Mapper string

	// Partial holds the fields resolved before the failure.
	Partial map[string]any

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Mapper != "" {
		return fmt.Sprintf("mapping %s with %s failed: %v", e.Source, e.Mapper, e.Err)
	}
	return fmt.Sprintf("mapping %s failed: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *MappingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMappingError creates a new MappingError.
func NewMappingError(source, mapper string, err error, partial map[string]any) *MappingError {
	return &MappingError{
		Source:  source,
		Mapper:  mapper,
		Partial: partial,
		Err:     err,
	}
}

// WrapMappingError wraps an error as a MappingError if it isn't already one.
func WrapMappingError(source, mapper string, err error, partial map[string]any) error {
	if err == nil {
		return nil
	}

	var mappingErr *MappingError
	if errors.As(err, &mappingErr) {
		return err
	}

	return NewMappingError(source, mapper, err, partial)
}

// MapperNotFoundError is returned when a format has no mapper.
type MapperNotFoundError struct {
	Format models.Format
}

func (e *MapperNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMapperNotFound, e.Format)
}

func (e *MapperNotFoundError) Is(target error) bool {
	return target == ErrMapperNotFound
}
