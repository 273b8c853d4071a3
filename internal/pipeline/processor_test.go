package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dteintake/internal/detect"
	"dteintake/internal/invoice"
	"dteintake/internal/mapper"
	"dteintake/internal/pdfextract"
	"dteintake/pkg/models"
)

const pdfText = `COMPROBANTE DE CREDITO FISCAL
Código de Generación: 5C2B6F3A-8D1E-4A7B-9C0D-1E2F3A4B5C6D
Número de Control: DTE-03-M001P001-000000000000123
Fecha de Emisión: 15/09/2026
Nombre o razón social: DISTRIBUIDORA CENTROAMERICANA, S.A. DE C.V.
NIT: 0614-123456-789-0
Sub-Total: $35.00
IVA 13%: $4.55
Total a Pagar: $39.55
`

// textExtractor feeds fixed text through the real field patterns.
type textExtractor struct {
	text string
}

func (e textExtractor) Extract(path string) (*pdfextract.Result, error) {
	return pdfextract.NewExtractor().ExtractText(e.text, path)
}

type ProcessorSuite struct {
	suite.Suite
	dte     Document
	generic Document
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.dte = LoadFile("testdata/dte_ccf.json", nil)
	s.Require().NoError(s.dte.Err)
	s.generic = LoadFile("testdata/generic_flat.json", nil)
	s.Require().NoError(s.generic.Err)
}

func (s *ProcessorSuite) processor(opts ...Option) *Processor {
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	v := invoice.NewPurchaseValidator(invoice.DefaultValidatorConfig()).
		WithClock(func() time.Time { return now })
	return NewProcessor(detect.NewDefaultDetector(), mapper.NewDefaultRegistry(), v, opts...)
}

func (s *ProcessorSuite) TestMixedBatch() {
	docs := []Document{
		s.dte,
		s.generic,
		{Source: "broken.json", Err: errors.New("unexpected end of JSON input")},
		{Source: "empty.json", Data: map[string]any{}},
	}

	result, err := s.processor().ProcessBatch(context.Background(), docs, nil)
	s.Require().NoError(err)

	s.NotEmpty(result.BatchID)
	s.Require().Len(result.Accepted, 2)
	s.Equal("testdata/dte_ccf.json", result.Accepted[0].Metadata.SourceFile)
	s.Equal(models.FormatDTEStandard, result.Accepted[0].Metadata.DetectedFormat)
	s.Equal("testdata/generic_flat.json", result.Accepted[1].Metadata.SourceFile)
	s.Equal(models.FormatGenericFlat, result.Accepted[1].Metadata.DetectedFormat)

	s.Require().Len(result.Rejected, 2)
	s.Equal(Rejection{SourceFile: "broken.json", Reason: "unexpected end of JSON input"}, result.Rejected[0])
	s.Equal("empty.json", result.Rejected[1].SourceFile)
	s.Contains(result.Rejected[1].Reason, "document number")

	s.Equal(map[models.Format]int{
		models.FormatDTEStandard: 1,
		models.FormatGenericFlat: 1,
		models.FormatUnknown:     2,
	}, result.FormatCounts)

	s.Require().Len(result.Results, 4)
	s.ErrorIs(result.Results[3].Err, mapper.ErrMissingIdentity)
	s.Equal(mapper.NameGeneric, result.Results[3].Mapper)
}

func (s *ProcessorSuite) TestDuplicatesFollowInputOrder() {
	docs := make([]Document, 0, 8)
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json", "e.json", "f.json", "g.json", "h.json"} {
		docs = append(docs, Document{Source: name, Data: s.dte.Data})
	}

	for run := 0; run < 5; run++ {
		result, err := s.processor(WithWorkers(8)).ProcessBatch(context.Background(), docs, nil)
		s.Require().NoError(err)

		s.Require().Len(result.Accepted, 1)
		s.Equal("a.json", result.Accepted[0].Metadata.SourceFile)
		s.Require().Len(result.Rejected, 7)
		for i, r := range result.Results[1:] {
			s.Equal(docs[i+1].Source, r.Source)
			dup := r.Validation.Errors()
			s.Require().Len(dup, 1)
			s.Equal(invoice.FieldDuplicate, dup[0].Field)
			s.Equal("a.json", dup[0].DuplicateOf)
		}
	}
}

func (s *ProcessorSuite) TestPDFDuplicateOfJSON() {
	pdf := LoadFile("scan.pdf", textExtractor{text: pdfText})
	s.Require().NoError(pdf.Err)

	result, err := s.processor().ProcessBatch(context.Background(), []Document{s.dte, pdf}, nil)
	s.Require().NoError(err)

	s.Require().Len(result.Rejected, 1)
	s.Equal("scan.pdf", result.Rejected[0].SourceFile)
	s.Contains(result.Rejected[0].Reason, "duplicate")
	s.Equal(1, result.FormatCounts[models.FormatPDFExtracted])

	pdfResult := result.Results[1]
	s.Equal(mapper.NamePDFExtracted, pdfResult.Mapper)
	s.Equal("testdata/dte_ccf.json", pdfResult.Validation.Errors()[0].DuplicateOf)
}

func (s *ProcessorSuite) TestProgressFiresInOrderAndSurvivesPanics() {
	var seen []string
	progress := func(done, total int, r FileResult) {
		s.Equal(3, total)
		s.Equal(len(seen)+1, done)
		seen = append(seen, r.Source)
		if done == 1 {
			panic("progress bar crashed")
		}
	}

	docs := []Document{s.dte, s.generic, {Source: "x.json", Err: errors.New("boom")}}
	result, err := s.processor(WithWorkers(2)).ProcessBatch(context.Background(), docs, progress)
	s.Require().NoError(err)

	s.Equal([]string{"testdata/dte_ccf.json", "testdata/generic_flat.json", "x.json"}, seen)
	s.Len(result.Accepted, 2)
	s.Len(result.Rejected, 1)
}

func (s *ProcessorSuite) TestDropRawData() {
	kept, err := s.processor().ProcessBatch(context.Background(), []Document{s.dte}, nil)
	s.Require().NoError(err)
	s.NotNil(kept.Accepted[0].Metadata.RawData)

	dropped, err := s.processor(WithDropRawData(true)).ProcessBatch(context.Background(), []Document{s.dte}, nil)
	s.Require().NoError(err)
	s.Nil(dropped.Accepted[0].Metadata.RawData)
}

func (s *ProcessorSuite) TestCancelledBatchReturnsPartialResult() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.processor().ProcessBatch(ctx, []Document{s.dte, s.generic}, nil)
	s.ErrorIs(err, context.Canceled)
	s.Require().NotNil(result)
	s.Empty(result.Results)
	s.Empty(result.Accepted)
}

func (s *ProcessorSuite) TestNonObjectDocument() {
	result, err := s.processor().ProcessBatch(context.Background(),
		[]Document{{Source: "list.json", Data: []any{"a", "b"}}}, nil)
	s.Require().NoError(err)

	s.Require().Len(result.Rejected, 1)
	s.ErrorIs(result.Results[0].Err, mapper.ErrInvalidDocument)
	s.Equal(models.FormatUnknown, result.Results[0].Detection.Format)
}

func TestFileResultReason(t *testing.T) {
	assert.Equal(t, "", FileResult{Accepted: true}.Reason())
	assert.Equal(t, "boom", FileResult{Err: errors.New("boom")}.Reason())

	vr := models.NewValidationResult([]models.ValidationIssue{
		{Level: models.LevelError, Field: "total", Message: "total is required"},
	})
	assert.Equal(t, "total: total is required", FileResult{Validation: vr}.Reason())
}

func TestNewProcessorIgnoresNonPositiveWorkers(t *testing.T) {
	p := NewProcessor(nil, nil, nil, WithWorkers(0))
	require.NotNil(t, p)
	assert.Equal(t, DefaultWorkers, p.workers)
}
