// Package invoice validates canonical purchase invoices before they are
// trusted downstream.
//
// Validation never fails with an error. Every finding becomes an issue with a
// level, and an invoice is valid when none of its issues is an ERROR.
//
// Checks, in order:
//   - Required fields: document number, issue date, a positive total and the
//     supplier name (ERROR)
//   - Recommended fields: control number, supplier NIT, line items, subtotal
//     and tax (WARNING)
//   - Arithmetic: total against subtotal plus tax, subtotal against the line
//     items, tax against the VAT rate (WARNING) and the sales breakdown (INFO)
//   - Date plausibility: future dates and dates older than MaxAgeYears (WARNING)
//   - Duplicates against the invoices already accepted (ERROR or WARNING)
//
// With ValidatorConfig.FacturaIncludesVAT set, consumer invoices (factura,
// tipoDte 01) are checked as carrying the IVA inside the taxable amount.
package invoice

import (
	"dteintake/pkg/models"
)

// InvoiceValidator defines the interface for purchase invoice validation.
type InvoiceValidator interface {
	// Validate checks inv against the rules and against existing, the
	// invoices accepted before it. It must not modify either.
	Validate(inv *models.Invoice, existing []*models.Invoice) *models.ValidationResult
}

var _ InvoiceValidator = (*PurchaseValidator)(nil)
