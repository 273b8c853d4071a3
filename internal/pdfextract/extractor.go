// Package pdfextract turns the text layer of a DTE printout into the fields
// needed to build an invoice.
//
// Text comes from a PageRenderer; the default one reads the PDF with
// github.com/ledongthuc/pdf. Scanned documents without a text layer are
// rejected with ErrNoTextLayer since OCR is out of scope.
//
// Implementation Details:
//   - Page texts are concatenated in page order, separated by newlines
//   - Every field has an ordered list of regular expressions; the first match wins
//   - Amounts are parsed after stripping currency symbols and thousands separators
//   - A missing total is fatal, every other field is optional
package pdfextract

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// DefaultMinTextLength is the shortest text accepted as a real text layer.
const DefaultMinTextLength = 50

// PageRenderer returns the plain text of each page of a PDF.
type PageRenderer interface {
	PageTexts(path string) ([]string, error)
}

// Result contains the fields extracted from one PDF.
type Result struct {
	// Source is the PDF path.
	Source string `json:"source"`

	// Fields holds the raw captured value per field key.
	Fields map[string]string `json:"fields"`

	// Total is always set on a successful extraction.
	Total decimal.Decimal `json:"total"`

	// Subtotal and Tax are zero when not found.
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`

	// Text is the concatenated page text.
	Text string `json:"-"`

	// PageCount is the number of pages rendered.
	PageCount int `json:"page_count"`

	// ProcessingDuration is how long rendering and matching took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Document synthesizes the raw document handed to the detector. It carries
// the PDF marker so only the PDF mapper picks it up.
func (r *Result) Document() map[string]any {
	doc := map[string]any{
		models.PDFMarkerKey:     true,
		models.PDFKeySourceFile: r.Source,
		models.PDFKeyPageCount:  r.PageCount,
		models.PDFKeyTotal:      r.Total.StringFixed(2),
	}
	for field, value := range r.Fields {
		if _, exists := doc[field]; !exists {
			doc[field] = value
		}
	}
	if !r.Subtotal.IsZero() {
		doc[models.PDFKeySubtotal] = r.Subtotal.StringFixed(2)
	}
	if !r.Tax.IsZero() {
		doc[models.PDFKeyTax] = r.Tax.StringFixed(2)
	}
	return doc
}

// Extractor extracts invoice fields from PDF text.
type Extractor struct {
	renderer      PageRenderer
	patterns      []FieldPattern
	minTextLength int
	log           zerolog.Logger
}

type Option func(*Extractor)

// WithRenderer replaces the PDF text renderer.
func WithRenderer(r PageRenderer) Option {
	return func(e *Extractor) { e.renderer = r }
}

// WithMinTextLength sets the minimum accepted text length.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) { e.minTextLength = n }
}

// WithPatterns replaces the field patterns.
func WithPatterns(p []FieldPattern) Option {
	return func(e *Extractor) { e.patterns = p }
}

// NewExtractor creates an extractor backed by LedongthucRenderer unless
// another renderer is supplied.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		renderer:      LedongthucRenderer{},
		patterns:      DefaultPatterns,
		minTextLength: DefaultMinTextLength,
		log:           logger.WithComponent("pdf-extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract renders the PDF at path and extracts its fields.
func (e *Extractor) Extract(path string) (*Result, error) {
	const op = "Extract"
	start := time.Now()

	pages, err := e.renderer.PageTexts(path)
	if err != nil {
		e.log.Error().Err(err).Str("file", path).Msg("Failed to render PDF text")
		return nil, WrapExtractionError(op, path, err, "rendering page text")
	}

	result, err := e.extract(path, strings.Join(pages, "\n"))
	stamp := func(r *Result) {
		r.PageCount = len(pages)
		r.ProcessingDuration = time.Since(start)
	}
	if result != nil {
		stamp(result)
	}
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) && extractionErr.Partial != nil {
		stamp(extractionErr.Partial)
	}
	return result, err
}

// ExtractText extracts fields from already rendered text.
func (e *Extractor) ExtractText(text, source string) (*Result, error) {
	return e.extract(source, text)
}

func (e *Extractor) extract(source, text string) (*Result, error) {
	const op = "Extract"

	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length < e.minTextLength {
		e.log.Warn().
			Str("file", source).
			Int("text_length", length).
			Int("min_length", e.minTextLength).
			Msg("PDF text layer too short")
		return nil, NewExtractionError(op, source, ErrNoTextLayer, "")
	}

	result := &Result{
		Source: source,
		Fields: make(map[string]string),
		Text:   text,
	}

	for _, fp := range e.patterns {
		value, amount, ok := e.match(fp, text)
		if !ok {
			e.log.Debug().Str("file", source).Str("field", fp.Field).Msg("No pattern matched")
			continue
		}
		result.Fields[fp.Field] = value

		if fp.Amount {
			switch fp.Field {
			case models.PDFKeyTotal:
				result.Total = amount
			case models.PDFKeySubtotal:
				result.Subtotal = amount
			case models.PDFKeyTax:
				result.Tax = amount
			}
		}
	}

	if _, ok := result.Fields[models.PDFKeyTotal]; !ok {
		extractionErr := NewExtractionError(op, source, ErrTotalNotFound, "")
		extractionErr.Partial = result
		return nil, extractionErr
	}

	e.log.Info().
		Str("file", source).
		Int("fields", len(result.Fields)).
		Str("total", result.Total.StringFixed(2)).
		Msg("PDF fields extracted")

	return result, nil
}

// match returns the first value matched for the field. Amount fields only
// count as matched when the captured text parses.
func (e *Extractor) match(fp FieldPattern, text string) (string, decimal.Decimal, bool) {
	for _, re := range fp.Patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 && m[1] != "" {
			value = m[1]
		}
		value = strings.TrimSpace(value)

		if !fp.Amount {
			return value, decimal.Zero, true
		}
		if amount, ok := ParseCurrency(value); ok {
			return value, amount, true
		}
	}
	return "", decimal.Zero, false
}

// ParseCurrency strips currency symbols and thousands separators and parses
// the remaining amount. "$1,234.50" and "1.234,50" both yield 1234.50.
func ParseCurrency(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(s)
	for _, symbol := range []string{"US$", "USD", "$", " "} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}
	cleaned = strings.TrimRight(cleaned, ".,")
	if cleaned == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastComma > lastDot && len(cleaned)-lastComma-1 <= 2:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
