package profile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dteintake/internal/invoice"
	"dteintake/internal/mapper"
	"dteintake/pkg/models"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, "sv-default", p.Name)
	assert.Equal(t, []models.Format{
		models.FormatDTEStandard,
		models.FormatDTEVariant,
		models.FormatPDFExtracted,
		models.FormatGenericFlat,
	}, p.Detector().Formats())

	reg, err := p.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"DTE_STANDARD=dte_standard", "PDF_EXTRACTED=pdf_extracted"}, reg.Bindings())

	m, err := reg.GetMapper(models.FormatDTEVariant)
	require.NoError(t, err)
	assert.Equal(t, mapper.NameGeneric, m.Name())

	base := invoice.DefaultValidatorConfig()
	assert.Equal(t, base, p.ValidatorConfig(base))
}

func TestLoad(t *testing.T) {
	p, err := Load("testdata/guatemala.yaml")
	require.NoError(t, err)

	assert.Equal(t, "gt-fel", p.Name)

	t.Run("detector uses profile fingerprints in order", func(t *testing.T) {
		d := p.Detector()
		assert.Equal(t, []models.Format{models.FormatDTEStandard, models.FormatGenericFlat}, d.Formats())

		res := d.Detect(map[string]any{
			"Numero":     "A-1",
			"gran_total": 10.5,
			"proveedor":  "Ferreteria",
			"detalle":    []any{},
		})
		assert.Equal(t, models.FormatGenericFlat, res.Format)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, "detalle", res.ItemsKey)
		assert.Equal(t, "gran_total", res.TotalKey)
	})

	t.Run("registry honours bindings and policy", func(t *testing.T) {
		reg, err := p.Registry()
		require.NoError(t, err)
		assert.Equal(t, []string{"DTE_STANDARD=dte_standard"}, reg.Bindings())

		m, err := reg.GetMapper(models.FormatPDFExtracted)
		require.NoError(t, err)
		require.Equal(t, mapper.NameGeneric, m.Name())

		_, err = m.Map(map[string]any{"total": 10}, "sin-numero.json")
		assert.ErrorIs(t, err, mapper.ErrMissingIdentity)
	})

	t.Run("validation overrides keep unset fields", func(t *testing.T) {
		cfg := p.ValidatorConfig(invoice.DefaultValidatorConfig())
		assert.True(t, cfg.VATRate.Equal(decimal.NewFromFloat(0.12)))
		assert.True(t, cfg.TaxTolerance.Equal(decimal.NewFromFloat(0.02)))
		assert.True(t, cfg.AmountTolerance.Equal(decimal.NewFromFloat(0.01)))
		assert.Equal(t, 2, cfg.MaxAgeYears)
		assert.True(t, cfg.FacturaIncludesVAT)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidProfile)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty document", ""},
		{"not an object", "- a\n- b\n"},
		{"unknown top-level key", "colour: blue\n"},
		{"unknown fingerprint kind", "fingerprints:\n  - format: GENERIC_FLAT\n    kind: magic\n"},
		{"structural without required keys", "fingerprints:\n  - format: DTE_STANDARD\n    kind: structural\n"},
		{"heuristic without synonyms", "fingerprints:\n  - format: GENERIC_FLAT\n    kind: heuristic\n"},
		{"reserved fingerprint format", "fingerprints:\n  - format: UNKNOWN\n    kind: structural\n    required_keys: [Invoice]\n"},
		{"lowercase fingerprint format", "fingerprints:\n  - format: xml_ubl\n    kind: structural\n    required_keys: [Invoice]\n"},
		{"bad type check kind", "fingerprints:\n  - format: DTE_STANDARD\n    kind: structural\n    required_keys: [a]\n    type_checks:\n      - path: a\n        kind: date\n"},
		{"unknown mapper", "mappers:\n  bindings:\n    DTE_STANDARD: ubl\n"},
		{"unknown bound format", "mappers:\n  bindings:\n    UNKNOWN: generic\n"},
		{"binding for undeclared format", "mappers:\n  bindings:\n    FEL_GUATEMALA: dte_standard\n"},
		{"non-boolean vat flag", "validation:\n  factura_includes_vat: sometimes\n"},
		{"unknown fallback", "mappers:\n  fallback: ocr\n"},
		{"unknown identity policy", "mappers:\n  identity_policy: anything\n"},
		{"vat rate out of range", "validation:\n  vat_rate: 1.5\n"},
		{"negative tolerance", "validation:\n  amount_tolerance: -0.01\n"},
		{"malformed yaml", "fingerprints: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestParseMinimal(t *testing.T) {
	p, err := Parse([]byte("name: only-name\n"))
	require.NoError(t, err)

	assert.Equal(t, "only-name", p.Name)
	assert.Len(t, p.Detector().Formats(), 4)
}

func TestParseDeclaresNewVariant(t *testing.T) {
	doc := `
fingerprints:
  - format: FEL_GUATEMALA
    kind: structural
    required_keys: [DatosEmision, DatosGenerales, Items, Totales]
    items_key: Items
    total_keys: [Totales.GranTotal]
mappers:
  bindings:
    FEL_GUATEMALA: generic
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)

	d := p.Detector()
	assert.Equal(t, []models.Format{"FEL_GUATEMALA"}, d.Formats())

	res := d.Detect(map[string]any{
		"DatosEmision":   map[string]any{},
		"DatosGenerales": map[string]any{},
		"Items":          []any{},
		"Totales":        map[string]any{"GranTotal": 112},
	})
	assert.Equal(t, models.Format("FEL_GUATEMALA"), res.Format)
	assert.Equal(t, "Items", res.ItemsKey)
	assert.Equal(t, "Totales.GranTotal", res.TotalKey)

	reg, err := p.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"FEL_GUATEMALA=generic"}, reg.Bindings())
}
