package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dteintake/internal/pipeline"
	"dteintake/pkg/models"
)

func sampleResult() *pipeline.BatchResult {
	inv := &models.Invoice{
		DocumentNumber: "5C2B6F3A-8D1E-4A7B-9C0D-1E2F3A4B5C6D",
		ControlNumber:  "DTE-03-M001P001-000000000000123",
		DocumentType:   models.DocumentTypeCreditoFiscal,
		IssueDate:      time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC),
		Currency:       "USD",
		Supplier:       models.Party{Name: "DISTRIBUIDORA CENTROAMERICANA, S.A. DE C.V.", TaxID: "06141234567890"},
		Summary: models.Summary{
			Subtotal: decimal.NewFromFloat(35),
			Tax:      decimal.NewFromFloat(4.55),
			Total:    decimal.NewFromFloat(39.55),
		},
		Metadata: models.Metadata{
			SourceFile:          "in/ccf.json",
			DetectedFormat:      models.FormatDTEStandard,
			DetectionConfidence: 1,
		},
	}
	validation := models.NewValidationResult([]models.ValidationIssue{
		{Level: models.LevelWarning, Field: "items", Message: "invoice has no line items"},
	})

	return &pipeline.BatchResult{
		BatchID:  "b-1",
		Accepted: []*models.Invoice{inv},
		Rejected: []pipeline.Rejection{{SourceFile: "in/bad.json", Reason: "total: total is required"}},
		FormatCounts: map[models.Format]int{
			models.FormatUnknown:     1,
			models.FormatDTEStandard: 1,
		},
		Results: []pipeline.FileResult{
			{Source: "in/ccf.json", Invoice: inv, Validation: validation, Accepted: true},
			{Source: "in/bad.json", Err: errors.New("total: total is required")},
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.xlsx")
	require.NoError(t, WriteWorkbook(sampleResult(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetAccepted, SheetRejected, SheetFormats}, f.GetSheetList())

	accepted, err := f.GetRows(SheetAccepted, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	assert.Equal(t, acceptedHeaders, accepted[0])
	row := accepted[1]
	assert.Equal(t, "in/ccf.json", row[0])
	assert.Equal(t, "DTE-03-M001P001-000000000000123", row[2])
	assert.Equal(t, string(models.DocumentTypeCreditoFiscal), row[3])
	assert.Equal(t, "2026-09-15", row[4])
	assert.Equal(t, "39.55", row[9])
	assert.Equal(t, "DTE_STANDARD", row[11])
	assert.Equal(t, "items: invoice has no line items", row[13])

	rejected, err := f.GetRows(SheetRejected)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Source File", "Reason"},
		{"in/bad.json", "total: total is required"},
	}, rejected)

	formats, err := f.GetRows(SheetFormats)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Format", "Files"},
		{"DTE_STANDARD", "1"},
		{"UNKNOWN", "1"},
	}, formats)
}

func TestAcceptedRowsWithoutResults(t *testing.T) {
	result := sampleResult()
	result.Results = nil
	result.Accepted[0].Metadata.ProcessingWarnings = []string{"quantity missing"}

	rows := acceptedRows(result)
	require.Len(t, rows, 1)
	assert.Equal(t, "quantity missing", rows[0].Warnings)
	assert.Equal(t, 35.0, rows[0].Subtotal)
}

func TestWriteWorkbookBadPath(t *testing.T) {
	err := WriteWorkbook(sampleResult(), filepath.Join(t.TempDir(), "missing", "batch.xlsx"))
	assert.Error(t, err)
}
