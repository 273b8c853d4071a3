package pdfextract

import (
	"regexp"

	"dteintake/pkg/models"
)

// FieldPattern lists the expressions tried for one field, most specific
// first. The first capture group is the value; without one the whole match
// is used.
type FieldPattern struct {
	Field    string
	Amount   bool
	Patterns []*regexp.Regexp
}

const amount = `(?:US)?\$?\s*([0-9][0-9.,]*)`

// DefaultPatterns recognizes the printed representation of Salvadoran DTEs.
var DefaultPatterns = []FieldPattern{
	{
		Field: models.PDFKeyControlNumber,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)n[uú]mero\s+de\s+control\s*:?\s*(DTE-[0-9]{2}-[A-Z0-9]{8}-[0-9]{15})`),
			regexp.MustCompile(`(DTE-[0-9]{2}-[A-Z0-9]{8}-[0-9]{15})`),
		},
	},
	{
		Field: models.PDFKeyGenerationCode,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)c[oó]digo\s+de\s+generaci[oó]n\s*:?\s*([0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12})`),
			regexp.MustCompile(`(?i)\b([0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12})\b`),
		},
	},
	{
		Field: models.PDFKeyIssueDate,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)fecha\s+(?:y\s+hora\s+)?(?:de\s+)?emisi[oó]n\s*:?\s*([0-9]{2}[/-][0-9]{2}[/-][0-9]{4}|[0-9]{4}-[0-9]{2}-[0-9]{2})`),
			regexp.MustCompile(`\b([0-9]{4}-[0-9]{2}-[0-9]{2})\b`),
			regexp.MustCompile(`\b([0-9]{2}/[0-9]{2}/[0-9]{4})\b`),
		},
	},
	{
		Field: models.PDFKeySupplierName,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:nombre\s+o\s+raz[oó]n\s+social|raz[oó]n\s+social|nombre)\s*:\s*(.+?)\s*$`),
			regexp.MustCompile(`(?im)^\s*emisor\s*:\s*(.+?)\s*$`),
		},
	},
	{
		Field: models.PDFKeySupplierNIT,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bNIT\s*:?\s*([0-9]{4}-?[0-9]{6}-?[0-9]{3}-?[0-9])`),
			regexp.MustCompile(`(?i)\bNIT\s*:?\s*([0-9]{9,14})`),
		},
	},
	{
		Field: models.PDFKeySupplierNRC,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bNRC\s*:?\s*([0-9]{1,7}(?:-[0-9])?)`),
		},
	},
	{
		Field:  models.PDFKeyTotal,
		Amount: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)total\s+a\s+pagar\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)monto\s+total\s+(?:de\s+la\s+)?operaci[oó]n\s*:?\s*` + amount),
			regexp.MustCompile(`(?im)^\s*total\s*:?\s*` + amount),
		},
	},
	{
		Field:  models.PDFKeyTax,
		Amount: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bIVA\s*(?:13\s*%)?\s*:?\s*` + amount),
			regexp.MustCompile(`(?i)impuesto\s+al\s+valor\s+agregado\s*(?:13\s*%)?\s*:?\s*` + amount),
		},
	},
	{
		Field:  models.PDFKeySubtotal,
		Amount: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)sub[\s-]?total\s*:?\s*` + amount),
		},
	},
}
