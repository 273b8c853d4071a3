package mapper

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// ManualReviewWarning is attached to every invoice built from PDF text.
const ManualReviewWarning = "data extracted from PDF text; manual review required"

// PDFExtractedMapper maps documents synthesized by the PDF extractor. The
// document type cannot be read reliably from text, so it is always unknown.
type PDFExtractedMapper struct {
	log zerolog.Logger
}

func NewPDFExtractedMapper() *PDFExtractedMapper {
	return &PDFExtractedMapper{log: logger.WithComponent("mapper-pdf")}
}

func (m *PDFExtractedMapper) Name() string { return NamePDFExtracted }

// CanHandle only accepts documents carrying the PDF marker.
func (m *PDFExtractedMapper) CanHandle(doc map[string]any) bool {
	marker, _ := doc[models.PDFMarkerKey].(bool)
	return marker
}

func (m *PDFExtractedMapper) Map(doc map[string]any, source string) (inv *models.Invoice, err error) {
	partial := map[string]any{}
	defer guard(source, m.Name(), partial, &err)

	if !m.CanHandle(doc) {
		return nil, NewMappingError(source, m.Name(), ErrInvalidDocument, partial)
	}

	out := &models.Invoice{
		DocumentNumber: LookupString(doc, models.PDFKeyGenerationCode),
		ControlNumber:  LookupString(doc, models.PDFKeyControlNumber),
		DocumentType:   models.DocumentTypeUnknown,
		Currency:       DefaultCurrency,
		Supplier: models.Party{
			Name:       LookupString(doc, models.PDFKeySupplierName),
			TaxID:      LookupString(doc, models.PDFKeySupplierNIT),
			RegistryID: LookupString(doc, models.PDFKeySupplierNRC),
		},
		Summary: models.Summary{
			Subtotal: DecimalOr(doc[models.PDFKeySubtotal], decimal.Zero),
			Tax:      DecimalOr(doc[models.PDFKeyTax], decimal.Zero),
			Total:    DecimalOr(doc[models.PDFKeyTotal], decimal.Zero),
		},
	}
	out.AddWarning("%s", ManualReviewWarning)
	partial["control_number"] = out.ControlNumber
	partial["total"] = out.Summary.Total.String()

	if out.DocumentNumber == "" {
		out.DocumentNumber = "PDF-" + fileStem(source)
		out.AddWarning("generation code not found, synthesized %q", out.DocumentNumber)
	}
	if out.Supplier.Name == "" {
		out.Supplier.Name = PlaceholderSupplierName
		out.AddWarning("supplier name not found")
	}
	if date, ok := ParseDate(doc[models.PDFKeyIssueDate]); ok {
		out.IssueDate = date
	} else {
		out.IssueDate = SentinelIssueDate
		out.AddWarning("issue date not found, using %s", SentinelIssueDate.Format("2006-01-02"))
	}
	if out.Summary.Subtotal.IsZero() && out.Summary.Tax.IsPositive() {
		out.Summary.Subtotal = out.Summary.Total.Sub(out.Summary.Tax)
	}

	m.log.Info().
		Str("file", source).
		Str("document_number", out.DocumentNumber).
		Str("total", out.Summary.Total.StringFixed(2)).
		Msg("Mapped PDF extracted document, manual review required")

	return finish(out, doc, source), nil
}
