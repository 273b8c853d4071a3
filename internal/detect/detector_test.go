package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dteintake/pkg/models"
)

func loadFixture(t *testing.T, name string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestDetect_NonObjectInputIsUnknown(t *testing.T) {
	d := NewDefaultDetector()

	for name, input := range map[string]any{
		"nil":       nil,
		"empty map": map[string]any{},
		"array":     []any{1, 2},
		"string":    "factura",
		"number":    42.0,
	} {
		t.Run(name, func(t *testing.T) {
			res := d.Detect(input)
			assert.Equal(t, models.FormatUnknown, res.Format)
			assert.Equal(t, 0.0, res.Confidence)
			assert.Equal(t, models.ConfidenceNone, res.Level)
		})
	}
}

func TestDetect_DTEStandard(t *testing.T) {
	d := NewDefaultDetector()
	res := d.Detect(loadFixture(t, "dte_ccf.json"))

	assert.Equal(t, models.FormatDTEStandard, res.Format)
	assert.Equal(t, models.ConfidenceHigh, res.Level)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.Equal(t, "cuerpoDocumento", res.ItemsKey)
	assert.Equal(t, "resumen.totalPagar", res.TotalKey)
	assert.Len(t, res.Scores, 4)
}

func TestDetect_DTEWithWrongTypesDropsToMedium(t *testing.T) {
	doc := loadFixture(t, "dte_ccf.json")
	doc["identificacion"].(map[string]any)["version"] = "3"
	delete(doc, "selloRecibido")

	res := NewDefaultDetector().Detect(doc)
	assert.Equal(t, models.FormatDTEStandard, res.Format)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, models.ConfidenceMedium, res.Level)
}

func TestDetect_GenericFlat(t *testing.T) {
	doc := map[string]any{
		"Numero_Factura": "F-1",
		"fecha":          "2026-09-01",
		"proveedor":      "Ferreteria",
		"total":          "10.00",
		"items":          []any{map[string]any{"descripcion": "x"}},
	}

	res := NewDefaultDetector().Detect(doc)
	assert.Equal(t, models.FormatGenericFlat, res.Format)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "items", res.ItemsKey)
	assert.Equal(t, "total", res.TotalKey)
}

func TestDetect_PDFMarker(t *testing.T) {
	doc := map[string]any{
		models.PDFMarkerKey:         true,
		models.PDFKeyGenerationCode: "5C2B6F3A-8D1E-4A7B-9C0D-1E2F3A4B5C6D",
		models.PDFKeySupplierName:   "Proveedor",
		models.PDFKeyTotal:          "39.55",
	}

	res := NewDefaultDetector().Detect(doc)
	assert.Equal(t, models.FormatPDFExtracted, res.Format)
	assert.Equal(t, models.ConfidenceHigh, res.Level)
	assert.Equal(t, models.PDFKeyTotal, res.TotalKey)
}

func TestDetect_LowScoreForcesUnknown(t *testing.T) {
	res := NewDefaultDetector().Detect(map[string]any{"foo": 1, "bar": "baz"})

	assert.Equal(t, models.FormatUnknown, res.Format)
	assert.Equal(t, models.ConfidenceNone, res.Level)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 0.3, res.Scores[models.FormatPDFExtracted])
	assert.Empty(t, res.ItemsKey)
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDefaultDetector()
	doc := loadFixture(t, "dte_ccf.json")

	first := d.Detect(doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.Detect(doc))
	}
}

func TestDetect_TieGoesToFirstRegistered(t *testing.T) {
	synonyms := map[string][]string{"number": {"numero"}, "total": {"total"}}
	a := HeuristicFingerprint{Format: "A", Synonyms: synonyms}
	b := HeuristicFingerprint{Format: "B", Synonyms: synonyms}
	doc := map[string]any{"numero": "1", "total": 3}

	res := NewDetector(a, b).Detect(doc)
	assert.Equal(t, models.Format("A"), res.Format)
	assert.Equal(t, res.Scores["A"], res.Scores["B"])

	res = NewDetector(b, a).Detect(doc)
	assert.Equal(t, models.Format("B"), res.Format)
}

func TestDetect_StructuralWeights(t *testing.T) {
	fp := StructuralFingerprint{
		Format:       "CUSTOM",
		RequiredKeys: []string{"a", "b"},
		NestedChecks: map[string][]string{"n": {"x", "y"}},
		OptionalKeys: []string{"o"},
		TypeChecks:   []TypeCheck{{Path: "a", Kind: KindNumber}},
	}
	doc := map[string]any{"a": 1.0, "n": map[string]any{"x": "1"}}

	res := NewDetector(fp).Detect(doc)
	// 0.4*0.5 + 0.3*0.5 + 0.1*0 + 0.2*1
	assert.InDelta(t, 0.55, res.Scores["CUSTOM"], 1e-9)
	assert.Equal(t, models.ConfidenceLow, res.Level)
}

func TestDetect_NoNestedChecksCountsAsSatisfied(t *testing.T) {
	fp := StructuralFingerprint{Format: "FLAT", RequiredKeys: []string{"a"}}

	res := NewDetector(fp).Detect(map[string]any{"a": 1.0})
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, models.ConfidenceMedium, res.Level)
}

func TestDetect_HeuristicFraction(t *testing.T) {
	res := NewDetector(GenericFlatFingerprint()).Detect(map[string]any{"vendor": "x", "amount": 1.0})

	assert.InDelta(t, 0.5, res.Scores[models.FormatGenericFlat], 1e-9)
	assert.Equal(t, models.FormatGenericFlat, res.Format)
	assert.Equal(t, "amount", res.TotalKey)
}

func TestRegister_ReplacesInPlace(t *testing.T) {
	d := NewDefaultDetector()
	before := d.Formats()

	replacement := DTEVariantFingerprint()
	replacement.RequiredKeys = []string{"numeroControl"}
	d.Register(replacement)

	assert.Equal(t, before, d.Formats())

	d.Register(HeuristicFingerprint{Format: "EXTRA", Synonyms: map[string][]string{"x": {"x"}}})
	assert.Equal(t, models.Format("EXTRA"), d.Formats()[len(before)])
}

func TestDetect_ConcurrentWithRegistration(t *testing.T) {
	d := NewDefaultDetector()
	doc := loadFixture(t, "dte_ccf.json")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, models.FormatDTEStandard, d.Detect(doc).Format)
		}()
	}
	d.Register(HeuristicFingerprint{Format: "LATE", Synonyms: map[string][]string{"x": {"x"}}})
	wg.Wait()
}
