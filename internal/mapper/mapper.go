// Package mapper converts detected raw documents into the canonical invoice.
//
// Each Mapper handles one family of input schemas. Mappers are pure: they read
// the decoded document and the source path and never perform I/O. Missing
// optional fields degrade to documented defaults plus a processing warning;
// only a document that cannot be identified at all fails with a MappingError.
package mapper

import (
	"github.com/shopspring/decimal"

	"dteintake/pkg/models"
)

// Mapper converts one raw document into an Invoice.
type Mapper interface {
	// Name identifies the mapper in logs and profile bindings.
	Name() string

	// CanHandle reports whether the mapper recognizes the document shape.
	CanHandle(doc map[string]any) bool

	// Map builds the invoice. Failures are always *MappingError.
	Map(doc map[string]any, source string) (*models.Invoice, error)
}

// Mapper names used by profile bindings.
const (
	NameDTEStandard  = "dte_standard"
	NameGeneric      = "generic"
	NamePDFExtracted = "pdf_extracted"
)

// SoftTolerance is the absolute difference tolerated by the construction-time
// arithmetic checks.
var SoftTolerance = decimal.NewFromFloat(0.01)

// finish attaches soft invariant warnings and the raw document.
func finish(inv *models.Invoice, doc map[string]any, source string) *models.Invoice {
	inv.Metadata.SourceFile = source
	inv.Metadata.RawData = doc
	for _, w := range inv.SoftInvariantWarnings(SoftTolerance) {
		inv.AddWarning("%s", w)
	}
	if inv.Metadata.ProcessingWarnings == nil {
		inv.Metadata.ProcessingWarnings = []string{}
	}
	if inv.Items == nil {
		inv.Items = []models.LineItem{}
	}
	return inv
}
