package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dteintake/internal/logger"
	"dteintake/pkg/models"
)

// Field names used in validation issues.
const (
	FieldDocumentNumber = "document_number"
	FieldIssueDate      = "issue_date"
	FieldTotal          = "total"
	FieldSupplierName   = "supplier.name"
	FieldControlNumber  = "control_number"
	FieldSupplierTaxID  = "supplier.tax_id"
	FieldItems          = "items"
	FieldSubtotal       = "subtotal"
	FieldTax            = "tax"
	FieldSalesBreakdown = "sales_breakdown"
	FieldConfidence     = "detection_confidence"
	FieldDuplicate      = "duplicate"
)

// ValidatorConfig holds the tolerances and rates used by PurchaseValidator
type ValidatorConfig struct {
	VATRate         decimal.Decimal // IVA, 13% in El Salvador
	AmountTolerance decimal.Decimal // absolute, for total and subtotal checks
	TaxTolerance    decimal.Decimal // absolute, for the tax check
	MaxAgeYears     int

	// FacturaIncludesVAT treats consumer invoices (factura) as carrying the
	// IVA inside the subtotal and taxable amount. Off by default.
	FacturaIncludesVAT bool
}

// DefaultValidatorConfig returns the Salvadoran defaults
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		VATRate:         decimal.NewFromFloat(0.13),
		AmountTolerance: decimal.NewFromFloat(0.01),
		TaxTolerance:    decimal.NewFromFloat(0.05),
		MaxAgeYears:     2,
	}
}

// PurchaseValidator checks required fields, arithmetic consistency, date
// plausibility and duplicates. It keeps no state between calls; the list of
// previously accepted invoices is passed in by the caller.
type PurchaseValidator struct {
	cfg ValidatorConfig
	now func() time.Time
	log zerolog.Logger
}

// NewPurchaseValidator creates a new purchase validator
func NewPurchaseValidator(cfg ValidatorConfig) *PurchaseValidator {
	return &PurchaseValidator{
		cfg: cfg,
		now: time.Now,
		log: logger.WithComponent("purchase-validator"),
	}
}

// WithClock replaces the clock used by the date plausibility checks.
func (pv *PurchaseValidator) WithClock(now func() time.Time) *PurchaseValidator {
	pv.now = now
	return pv
}

// Config returns the active configuration.
func (pv *PurchaseValidator) Config() ValidatorConfig {
	return pv.cfg
}

// Validate runs every check against inv. existing holds the invoices already
// accepted in this batch, in acceptance order.
func (pv *PurchaseValidator) Validate(inv *models.Invoice, existing []*models.Invoice) *models.ValidationResult {
	var issues []models.ValidationIssue

	issues = append(issues, pv.checkRequired(inv)...)
	issues = append(issues, pv.checkRecommended(inv)...)
	issues = append(issues, pv.checkConsistency(inv)...)
	issues = append(issues, pv.checkDate(inv)...)
	if dup := pv.checkDuplicate(inv, existing); dup != nil {
		issues = append(issues, *dup)
	}

	result := models.NewValidationResult(issues)

	event := pv.log.Debug()
	if !result.IsValid {
		event = pv.log.Info()
	}
	event.
		Str("file", inv.Metadata.SourceFile).
		Str("document_number", inv.DocumentNumber).
		Bool("valid", result.IsValid).
		Int("errors", result.ErrorCount).
		Int("warnings", result.WarningCount).
		Msg("Invoice validated")

	return result
}

// checkRequired reports ERRORs for fields an invoice cannot be booked without
// and for values the canonical model forbids.
func (pv *PurchaseValidator) checkRequired(inv *models.Invoice) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if strings.TrimSpace(inv.DocumentNumber) == "" {
		issues = append(issues, errorIssue(FieldDocumentNumber, "document number is required"))
	}
	if inv.IssueDate.IsZero() {
		issues = append(issues, errorIssue(FieldIssueDate, "issue date is required"))
	}
	if !inv.Summary.Total.IsPositive() {
		issue := errorIssue(FieldTotal, "total is required and must be greater than zero")
		issue.Actual = inv.Summary.Total.StringFixed(2)
		issues = append(issues, issue)
	}
	if strings.TrimSpace(inv.Supplier.Name) == "" {
		issues = append(issues, errorIssue(FieldSupplierName, "supplier name is required"))
	}

	for i, item := range inv.Items {
		if !item.Quantity.IsPositive() {
			issue := errorIssue(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than zero")
			issue.Actual = item.Quantity.String()
			issues = append(issues, issue)
		}
		for _, a := range []namedAmount{{"unit_price", item.UnitPrice}, {"total", item.Total}} {
			if a.amount.IsNegative() {
				issues = append(issues, errorIssue(fmt.Sprintf("items[%d].%s", i, a.name), "amount must not be negative"))
			}
		}
	}

	s := inv.Summary
	for _, a := range []namedAmount{
		{FieldSubtotal, s.Subtotal},
		{FieldTax, s.Tax},
		{"total_taxable", s.TotalTaxable},
		{"total_exempt", s.TotalExempt},
		{"total_non_subject", s.TotalNonSubject},
	} {
		if a.amount.IsNegative() {
			issues = append(issues, errorIssue("summary."+a.name, "amount must not be negative"))
		}
	}

	if c := inv.Metadata.DetectionConfidence; c < 0 || c > 1 {
		issues = append(issues, errorIssue(FieldConfidence, fmt.Sprintf("confidence %.4f outside [0,1]", c)))
	}

	return issues
}

// checkRecommended reports WARNINGs for fields that are expected on a fiscal
// document but do not prevent acceptance.
func (pv *PurchaseValidator) checkRecommended(inv *models.Invoice) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if strings.TrimSpace(inv.ControlNumber) == "" {
		issues = append(issues, warningIssue(FieldControlNumber, "control number is missing"))
	}
	if strings.TrimSpace(inv.Supplier.TaxID) == "" {
		issues = append(issues, warningIssue(FieldSupplierTaxID, "supplier NIT is missing"))
	}
	if len(inv.Items) == 0 {
		issues = append(issues, warningIssue(FieldItems, "invoice has no line items"))
	}
	if inv.Summary.Subtotal.IsZero() {
		issues = append(issues, warningIssue(FieldSubtotal, "subtotal is missing or zero"))
	}
	if inv.Summary.Tax.IsZero() {
		issues = append(issues, warningIssue(FieldTax, "tax is missing or zero"))
	}

	return issues
}

// checkConsistency compares the summary amounts with each other and with the
// line items. Each check is independent and never produces an ERROR.
func (pv *PurchaseValidator) checkConsistency(inv *models.Invoice) []models.ValidationIssue {
	var issues []models.ValidationIssue
	s := inv.Summary

	// total = subtotal + tax - retained IVA
	if s.Subtotal.IsPositive() && s.Total.IsPositive() {
		expected := inv.ExpectedTotal()
		if pv.vatIncluded(inv) {
			expected = s.Subtotal.Sub(s.RetainedTax)
		}
		if diff := s.Total.Sub(expected).Abs(); diff.GreaterThan(pv.cfg.AmountTolerance) {
			issues = append(issues, mismatch(models.LevelWarning, FieldTotal,
				"total does not match subtotal plus tax", expected, s.Total))
			pv.log.Warn().
				Str("file", inv.Metadata.SourceFile).
				Str("expected", expected.StringFixed(2)).
				Str("actual", s.Total.StringFixed(2)).
				Msg("Total calculation discrepancy detected")
		}
	}

	// subtotal = sum of items - global discount
	if len(inv.Items) > 0 && s.Subtotal.IsPositive() {
		expected := inv.ItemsTotal().Sub(s.TotalDiscount)
		if diff := s.Subtotal.Sub(expected).Abs(); diff.GreaterThan(pv.cfg.AmountTolerance) {
			issues = append(issues, mismatch(models.LevelWarning, FieldSubtotal,
				"subtotal does not match the sum of line items", expected, s.Subtotal))
		}
	}

	// tax = VAT rate x taxable sales
	if s.TotalTaxable.IsPositive() {
		expected := s.TotalTaxable.Mul(pv.cfg.VATRate)
		if pv.vatIncluded(inv) {
			net := s.TotalTaxable.Div(decimal.NewFromInt(1).Add(pv.cfg.VATRate))
			expected = s.TotalTaxable.Sub(net)
		}
		expected = expected.Round(2)
		if diff := s.Tax.Sub(expected).Abs(); diff.GreaterThan(pv.cfg.TaxTolerance) {
			issues = append(issues, mismatch(models.LevelWarning, FieldTax,
				fmt.Sprintf("tax does not match %s%% of taxable sales", pv.cfg.VATRate.Shift(2).String()), expected, s.Tax))
		}
	}

	// taxable + exempt + non-subject - discount = subtotal
	breakdown := s.TotalTaxable.Add(s.TotalExempt).Add(s.TotalNonSubject)
	if breakdown.IsPositive() && s.Subtotal.IsPositive() {
		expected := breakdown.Sub(s.TotalDiscount)
		if diff := s.Subtotal.Sub(expected).Abs(); diff.GreaterThan(pv.cfg.AmountTolerance) {
			issues = append(issues, mismatch(models.LevelInfo, FieldSalesBreakdown,
				"taxable, exempt and non-subject sales do not add up to the subtotal", expected, s.Subtotal))
		}
	}

	return issues
}

// checkDate flags issue dates in the future or older than MaxAgeYears.
func (pv *PurchaseValidator) vatIncluded(inv *models.Invoice) bool {
	return pv.cfg.FacturaIncludesVAT && inv.DocumentType == models.DocumentTypeFactura
}

func (pv *PurchaseValidator) checkDate(inv *models.Invoice) []models.ValidationIssue {
	if inv.IssueDate.IsZero() {
		return nil
	}

	now := pv.now()
	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	oldest := now.AddDate(-pv.cfg.MaxAgeYears, 0, 0)
	date := inv.IssueDate.Format("2006-01-02")

	switch {
	case !inv.IssueDate.Before(endOfToday):
		issue := warningIssue(FieldIssueDate, "issue date is in the future")
		issue.Actual = date
		return []models.ValidationIssue{issue}
	case inv.IssueDate.Before(oldest):
		issue := warningIssue(FieldIssueDate, fmt.Sprintf("issue date is older than %d years", pv.cfg.MaxAgeYears))
		issue.Actual = date
		return []models.ValidationIssue{issue}
	}
	return nil
}

// checkDuplicate looks for inv among the accepted invoices. A matching
// control number from the same supplier NIT is an ERROR; failing that, a
// matching document number is a WARNING. At most one issue is returned.
func (pv *PurchaseValidator) checkDuplicate(inv *models.Invoice, existing []*models.Invoice) *models.ValidationIssue {
	control := normalizeID(inv.ControlNumber)
	nit := normalizeTaxID(inv.Supplier.TaxID)

	if control != "" && nit != "" {
		for _, other := range existing {
			if normalizeID(other.ControlNumber) == control && normalizeTaxID(other.Supplier.TaxID) == nit {
				issue := errorIssue(FieldDuplicate, "invoice with the same control number and supplier NIT was already accepted")
				issue.Actual = inv.ControlNumber
				issue.DuplicateOf = other.Metadata.SourceFile
				pv.log.Warn().
					Str("file", inv.Metadata.SourceFile).
					Str("duplicate_of", other.Metadata.SourceFile).
					Str("control_number", inv.ControlNumber).
					Msg("Duplicate invoice detected")
				return &issue
			}
		}
	}

	number := normalizeID(inv.DocumentNumber)
	if number == "" {
		return nil
	}
	for _, other := range existing {
		if normalizeID(other.DocumentNumber) == number {
			issue := warningIssue(FieldDuplicate, "invoice with the same document number was already accepted")
			issue.Actual = inv.DocumentNumber
			issue.DuplicateOf = other.Metadata.SourceFile
			return &issue
		}
	}
	return nil
}

func normalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeTaxID drops the dashes and spaces NITs are often printed with.
func normalizeTaxID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type namedAmount struct {
	name   string
	amount decimal.Decimal
}

func errorIssue(field, message string) models.ValidationIssue {
	return models.ValidationIssue{Level: models.LevelError, Field: field, Message: message}
}

func warningIssue(field, message string) models.ValidationIssue {
	return models.ValidationIssue{Level: models.LevelWarning, Field: field, Message: message}
}

func mismatch(level models.IssueLevel, field, message string, expected, actual decimal.Decimal) models.ValidationIssue {
	return models.ValidationIssue{
		Level:    level,
		Field:    field,
		Message:  message,
		Expected: expected.StringFixed(2),
		Actual:   actual.StringFixed(2),
	}
}
