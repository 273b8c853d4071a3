// Package report writes batch results to an XLSX workbook for review.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"dteintake/internal/logger"
	"dteintake/internal/pipeline"
	"dteintake/pkg/models"
)

// Sheet names.
const (
	SheetAccepted = "Accepted"
	SheetRejected = "Rejected"
	SheetFormats  = "Formats"
)

// AcceptedRow is one accepted invoice in the report.
type AcceptedRow struct {
	SourceFile     string
	DocumentNumber string
	ControlNumber  string
	DocumentType   string
	IssueDate      string
	Supplier       string
	SupplierTaxID  string
	Subtotal       float64
	Tax            float64
	Total          float64
	Currency       string
	Format         string
	Confidence     float64
	Warnings       string
}

var acceptedHeaders = []string{
	"Source File", "Document Number", "Control Number", "Document Type", "Issue Date",
	"Supplier", "Supplier NIT", "Subtotal", "Tax", "Total", "Currency",
	"Format", "Confidence", "Warnings",
}

// WriteWorkbook writes the accepted invoices, the rejections and the format
// counts of result to an XLSX file at path.
func WriteWorkbook(result *pipeline.BatchResult, path string) error {
	const op = "WriteWorkbook"

	log := logger.WithComponent("report")

	f, err := Workbook(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%s: failed to save %s: %w", op, path, err)
	}

	log.Info().
		Str("path", path).
		Str("batch_id", result.BatchID).
		Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).
		Msg("Wrote batch report")
	return nil
}

// Workbook builds the report in memory.
func Workbook(result *pipeline.BatchResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetAccepted); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetRejected, SheetFormats} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	if err := writeAccepted(f, acceptedRows(result), header, amount); err != nil {
		return nil, err
	}
	if err := writeRejected(f, result.Rejected, header); err != nil {
		return nil, err
	}
	if err := writeFormats(f, result.FormatCounts, header); err != nil {
		return nil, err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "DTE intake batch " + result.BatchID,
		Description: fmt.Sprintf("%d accepted, %d rejected", len(result.Accepted), len(result.Rejected)),
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// acceptedRows prefers the per-file results, which carry validation
// warnings, and falls back to the bare accepted list.
func acceptedRows(result *pipeline.BatchResult) []AcceptedRow {
	var rows []AcceptedRow
	if len(result.Results) > 0 {
		for _, r := range result.Results {
			if !r.Accepted || r.Invoice == nil {
				continue
			}
			var warnings []models.ValidationIssue
			if r.Validation != nil {
				warnings = r.Validation.Warnings()
			}
			rows = append(rows, toRow(r.Invoice, warnings))
		}
		return rows
	}
	for _, inv := range result.Accepted {
		rows = append(rows, toRow(inv, nil))
	}
	return rows
}

func toRow(inv *models.Invoice, warnings []models.ValidationIssue) AcceptedRow {
	row := AcceptedRow{
		SourceFile:     inv.Metadata.SourceFile,
		DocumentNumber: inv.DocumentNumber,
		ControlNumber:  inv.ControlNumber,
		DocumentType:   string(inv.DocumentType),
		Supplier:       inv.Supplier.Name,
		SupplierTaxID:  inv.Supplier.TaxID,
		Subtotal:       inv.Summary.Subtotal.InexactFloat64(),
		Tax:            inv.Summary.Tax.InexactFloat64(),
		Total:          inv.Summary.Total.InexactFloat64(),
		Currency:       inv.Currency,
		Format:         string(inv.Metadata.DetectedFormat),
		Confidence:     inv.Metadata.DetectionConfidence,
	}
	if !inv.IssueDate.IsZero() {
		row.IssueDate = inv.IssueDate.Format("2006-01-02")
	}

	notes := make([]string, 0, len(warnings)+len(inv.Metadata.ProcessingWarnings))
	for _, w := range warnings {
		notes = append(notes, w.Field+": "+w.Message)
	}
	notes = append(notes, inv.Metadata.ProcessingWarnings...)
	row.Warnings = strings.Join(notes, "; ")
	return row
}

func (r AcceptedRow) values() []any {
	return []any{
		r.SourceFile,     // A
		r.DocumentNumber, // B
		r.ControlNumber,  // C
		r.DocumentType,   // D
		r.IssueDate,      // E
		r.Supplier,       // F
		r.SupplierTaxID,  // G
		r.Subtotal,       // H
		r.Tax,            // I
		r.Total,          // J
		r.Currency,       // K
		r.Format,         // L
		r.Confidence,     // M
		r.Warnings,       // N
	}
}

func writeAccepted(f *excelize.File, rows []AcceptedRow, header, amount int) error {
	if err := writeHeader(f, SheetAccepted, acceptedHeaders, header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row.values()
		if err := f.SetSheetRow(SheetAccepted, cell, &values); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("J%d", len(rows)+1)
		if err := f.SetCellStyle(SheetAccepted, "H2", last, amount); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetAccepted, "A", "A", 32)
	_ = f.SetColWidth(SheetAccepted, "B", "C", 40)
	_ = f.SetColWidth(SheetAccepted, "F", "F", 36)
	_ = f.SetColWidth(SheetAccepted, "N", "N", 60)
	return nil
}

func writeRejected(f *excelize.File, rejected []pipeline.Rejection, header int) error {
	if err := writeHeader(f, SheetRejected, []string{"Source File", "Reason"}, header); err != nil {
		return err
	}
	for i, r := range rejected {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetRejected, cell, &[]any{r.SourceFile, r.Reason}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetRejected, "A", "A", 32)
	_ = f.SetColWidth(SheetRejected, "B", "B", 80)
	return nil
}

// writeFormats lists the counts sorted by format name.
func writeFormats(f *excelize.File, counts map[models.Format]int, header int) error {
	if err := writeHeader(f, SheetFormats, []string{"Format", "Files"}, header); err != nil {
		return err
	}
	formats := make([]string, 0, len(counts))
	for format := range counts {
		formats = append(formats, string(format))
	}
	sort.Strings(formats)

	for i, format := range formats {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetFormats, cell, &[]any{format, counts[models.Format(format)]}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetFormats, "A", "A", 18)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
