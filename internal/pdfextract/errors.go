package pdfextract

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrUnreadablePDF is returned when the file cannot be opened or parsed
	// as a PDF document.
	ErrUnreadablePDF = errors.New("invalid or corrupted PDF document")

	// ErrNoTextLayer is returned when the rendered text is shorter than the
	// configured minimum. Scanned PDFs without a text layer end up here; OCR
	// is not attempted.
	ErrNoTextLayer = errors.New("PDF has no usable text layer")

	// ErrTotalNotFound is returned when none of the total patterns match.
	// The accompanying ExtractionError carries the fields that were found.
	ErrTotalNotFound = errors.New("invoice total not found in PDF text")
)

// ExtractionError wraps errors with additional context about the extraction failure.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Extract", "RenderPages").
	Op string

	// Path is the PDF file being processed.
	Path string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// Partial holds whatever was extracted before the failure, if anything.
	Partial *Result
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pdfextract: %s %s failed: %s: %v", e.Op, e.Path, e.Details, e.Err)
	}
	return fmt.Sprintf("pdfextract: %s %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(op, path string, err error, details string) *ExtractionError {
	return &ExtractionError{
		Op:      op,
		Path:    path,
		Err:     err,
		Details: details,
	}
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op, path string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	return NewExtractionError(op, path, err, details)
}
