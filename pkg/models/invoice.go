package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the fiscal document kind carried by a DTE.
type DocumentType string

const (
	DocumentTypeFactura               DocumentType = "factura"                    // 01
	DocumentTypeCreditoFiscal         DocumentType = "comprobante_credito_fiscal" // 03
	DocumentTypeNotaRemision          DocumentType = "nota_remision"              // 04
	DocumentTypeNotaCredito           DocumentType = "nota_credito"               // 05
	DocumentTypeNotaDebito            DocumentType = "nota_debito"                // 06
	DocumentTypeComprobanteRetencion  DocumentType = "comprobante_retencion"      // 07
	DocumentTypeFacturaExportacion    DocumentType = "factura_exportacion"        // 11
	DocumentTypeFacturaSujetoExcluido DocumentType = "factura_sujeto_excluido"    // 14
	DocumentTypeUnknown               DocumentType = "unknown"
)

var documentTypeCodes = map[string]DocumentType{
	"01": DocumentTypeFactura,
	"03": DocumentTypeCreditoFiscal,
	"04": DocumentTypeNotaRemision,
	"05": DocumentTypeNotaCredito,
	"06": DocumentTypeNotaDebito,
	"07": DocumentTypeComprobanteRetencion,
	"11": DocumentTypeFacturaExportacion,
	"14": DocumentTypeFacturaSujetoExcluido,
}

// DocumentTypeFromCode resolves a two-digit tipoDte code. Single digit codes
// are zero padded. The second return value is false for unknown codes.
func DocumentTypeFromCode(code string) (DocumentType, bool) {
	if len(code) == 1 {
		code = "0" + code
	}
	t, ok := documentTypeCodes[code]
	if !ok {
		return DocumentTypeUnknown, false
	}
	return t, true
}

// PaymentCondition mirrors condicionOperacion.
type PaymentCondition int

const (
	PaymentUnspecified PaymentCondition = 0
	PaymentCash        PaymentCondition = 1
	PaymentCredit      PaymentCondition = 2
	PaymentOther       PaymentCondition = 3
)

// Party is a supplier (emisor) or receiver (receptor).
type Party struct {
	Name                string `json:"name"`
	TaxID               string `json:"tax_id,omitempty"`      // NIT or other document number
	RegistryID          string `json:"registry_id,omitempty"` // NRC
	ActivityCode        string `json:"activity_code,omitempty"`
	ActivityDescription string `json:"activity_description,omitempty"`
	CommercialName      string `json:"commercial_name,omitempty"`
	Address             string `json:"address,omitempty"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
}

type LineItem struct {
	LineNumber     int             `json:"line_number"`
	Code           string          `json:"code,omitempty"`
	Description    string          `json:"description"`
	UnitOfMeasure  string          `json:"unit_of_measure,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Discount       decimal.Decimal `json:"discount"`
	NonSubjectSale decimal.Decimal `json:"non_subject_sale"` // ventaNoSuj
	ExemptSale     decimal.Decimal `json:"exempt_sale"`      // ventaExenta
	TaxableSale    decimal.Decimal `json:"taxable_sale"`     // ventaGravada
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

type Summary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	TotalTaxable    decimal.Decimal `json:"total_taxable"`
	TotalExempt     decimal.Decimal `json:"total_exempt"`
	TotalNonSubject decimal.Decimal `json:"total_non_subject"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	Tax             decimal.Decimal `json:"tax"`
	RetainedTax     decimal.Decimal `json:"retained_tax"` // ivaRete1
	Total           decimal.Decimal `json:"total"`
}

type Extras struct {
	TotalInWords     string           `json:"total_in_words,omitempty"`
	PaymentCondition PaymentCondition `json:"payment_condition"`
	AuthoritySeal    string           `json:"authority_seal,omitempty"` // selloRecibido
}

type Metadata struct {
	SourceFile          string         `json:"source_file"`
	DetectedFormat      Format         `json:"detected_format"`
	DetectionConfidence float64        `json:"detection_confidence"`
	ProcessingWarnings  []string       `json:"processing_warnings"`
	RawData             map[string]any `json:"raw_data,omitempty"`
}

// Invoice is the canonical purchase invoice every input format is mapped to.
type Invoice struct {
	// Identity
	DocumentNumber string       `json:"document_number"`          // codigoGeneracion or equivalent
	ControlNumber  string       `json:"control_number,omitempty"` // numeroControl
	DocumentType   DocumentType `json:"document_type"`

	// Dates
	IssueDate    time.Time `json:"issue_date"`
	EmissionTime string    `json:"emission_time,omitempty"`

	Currency   string `json:"currency"`
	DTEVersion int    `json:"dte_version,omitempty"`

	// Parties
	Supplier Party  `json:"supplier"`
	Receiver *Party `json:"receiver,omitempty"`

	Items   []LineItem `json:"items"`
	Summary Summary    `json:"summary"`
	Extras  Extras     `json:"extras"`

	Metadata Metadata `json:"metadata"`
}

// ItemsTotal sums the line item totals.
func (inv *Invoice) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// AddWarning appends a processing warning.
func (inv *Invoice) AddWarning(format string, args ...any) {
	inv.Metadata.ProcessingWarnings = append(inv.Metadata.ProcessingWarnings, fmt.Sprintf(format, args...))
}

// ExpectedTotal derives the total from the subtotal, tax and retained IVA.
func (inv *Invoice) ExpectedTotal() decimal.Decimal {
	s := inv.Summary
	return s.Subtotal.Add(s.Tax).Sub(s.RetainedTax)
}

// SoftInvariantWarnings reports arithmetic disagreements between the summary
// and the line items. They never prevent construction.
func (inv *Invoice) SoftInvariantWarnings(tolerance decimal.Decimal) []string {
	var warnings []string
	s := inv.Summary

	if s.Subtotal.IsPositive() {
		expected := inv.ExpectedTotal()
		if s.Total.Sub(expected).Abs().GreaterThan(tolerance) {
			warnings = append(warnings, fmt.Sprintf("total %s differs from subtotal+tax %s", s.Total.StringFixed(2), expected.StringFixed(2)))
		}
	}

	if len(inv.Items) > 0 {
		expected := inv.ItemsTotal().Sub(s.TotalDiscount)
		if s.Subtotal.Sub(expected).Abs().GreaterThan(tolerance) {
			warnings = append(warnings, fmt.Sprintf("subtotal %s differs from sum of items %s", s.Subtotal.StringFixed(2), expected.StringFixed(2)))
		}
	}

	return warnings
}

// DropRawData releases the original document once it is no longer needed.
func (inv *Invoice) DropRawData() {
	inv.Metadata.RawData = nil
}
