package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"dot decimal", "39.55", "39.55", true},
		{"comma decimal", "39,55", "39.55", true},
		{"english thousands", "1,234.56", "1234.56", true},
		{"european thousands", "1.234,56", "1234.56", true},
		{"currency symbol", "$ 1,234.50", "1234.50", true},
		{"us dollar prefix", "US$39.55", "39.55", true},
		{"comma thousands only", "1,234", "1234.00", true},
		{"dot thousands only", "1.234.567", "1234567.00", true},
		{"json number", json.Number("4.55"), "4.55", true},
		{"float", 35.0, "35.00", true},
		{"int", 7, "7.00", true},
		{"garbage", "abc", "0.00", false},
		{"empty", "  ", "0.00", false},
		{"nil", nil, "0.00", false},
		{"object", map[string]any{}, "0.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecimal(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	for _, input := range []string{"2026-09-15", "15/09/2026", "15-09-2026", "15.09.2026", "2026/09/15"} {
		got, ok := ParseDate(input)
		require.True(t, ok, input)
		assert.True(t, want.Equal(got), input)
	}

	got, ok := ParseDate("2026-09-15T10:24:31Z")
	require.True(t, ok)
	assert.Equal(t, 10, got.Hour())

	for _, input := range []any{"not a date", "", nil, 20260915, time.Time{}} {
		_, ok := ParseDate(input)
		assert.False(t, ok, "%v", input)
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"resumen": map[string]any{"totalPagar": 39.55, "nulo": nil},
		"flat":    "x",
	}

	v, ok := Lookup(doc, "resumen.totalPagar")
	require.True(t, ok)
	assert.Equal(t, 39.55, v)

	_, ok = Lookup(doc, "resumen.missing")
	assert.False(t, ok)
	_, ok = Lookup(doc, "flat.deeper")
	assert.False(t, ok)
	_, ok = Lookup(doc, "resumen.nulo")
	assert.False(t, ok)
	_, ok = Lookup(nil, "resumen")
	assert.False(t, ok)

	assert.Equal(t, "default", LookupOr(doc, "nope", "default"))
	assert.Equal(t, "39.55", LookupString(doc, "resumen.totalPagar"))
	assert.Equal(t, "", LookupString(doc, "resumen"))
}

func TestFirstOfSkipsBlankStrings(t *testing.T) {
	doc := map[string]any{"numero": " ", "folio": "F-9"}

	v, key, ok := FirstOf(doc, "numero", "folio")
	require.True(t, ok)
	assert.Equal(t, "folio", key)
	assert.Equal(t, "F-9", v)
}

func TestFirstDecimalSkipsUnparseableValues(t *testing.T) {
	doc := map[string]any{"total": "N/A", "monto_total": "$1,234.50"}

	v, key, ok := FirstDecimal(doc, "total", "monto_total")
	require.True(t, ok)
	assert.Equal(t, "monto_total", key)
	assert.Equal(t, "1234.50", v.StringFixed(2))

	_, _, ok = FirstDecimal(doc, "total", "grand_total")
	assert.False(t, ok)
}

func TestJoinPresent(t *testing.T) {
	assert.Equal(t, "San Salvador, Calle 1", JoinPresent("San Salvador", "", "  Calle 1 "))
	assert.Equal(t, "", JoinPresent("", " "))
}

func TestGuardConvertsPanicToMappingError(t *testing.T) {
	run := func() (err error) {
		defer guard("a.json", "test", map[string]any{"document_number": "X-1"}, &err)
		panic("boom")
	}

	err := run()
	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "X-1", mappingErr.Partial["document_number"])
	assert.Equal(t, "a.json", mappingErr.Source)
}

func TestWrapMappingErrorDoesNotDoubleWrap(t *testing.T) {
	inner := NewMappingError("a.json", "generic", ErrMissingIdentity, nil)

	assert.Same(t, inner, WrapMappingError("b.json", "dte", inner, nil))
	assert.Nil(t, WrapMappingError("b.json", "dte", nil, nil))
}
