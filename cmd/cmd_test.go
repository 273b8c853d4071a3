package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dteintake/internal/pdfextract"
	"dteintake/internal/pipeline"
	"dteintake/internal/profile"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd.PersistentFlags())
		for _, c := range rootCmd.Commands() {
			resetFlags(c.Flags())
		}
	})
	err := rootCmd.Execute()
	return stdout.String(), err
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestProcessCommand(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "batch.xlsx")

	out, err := run(t, "process", "../internal/pipeline/testdata", "--drop-raw", "--report", reportPath)
	require.NoError(t, err)

	var result struct {
		BatchID      string               `json:"batch_id"`
		Accepted     []json.RawMessage    `json:"accepted"`
		Rejected     []pipeline.Rejection `json:"rejected"`
		FormatCounts map[string]int       `json:"format_counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.BatchID)
	assert.Len(t, result.Accepted, 2)
	assert.Empty(t, result.Rejected)
	assert.Equal(t, map[string]int{"DTE_STANDARD": 1, "GENERIC_FLAT": 1}, result.FormatCounts)
	assert.NotContains(t, out, "raw_data")

	f, err := excelize.OpenFile(reportPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Accepted")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDetectCommand(t *testing.T) {
	out, err := run(t, "detect", "../internal/pipeline/testdata/dte_ccf.json")
	require.NoError(t, err)

	var got DetectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "DTE_STANDARD", string(got.Detection.Format))
	assert.Equal(t, "HIGH", string(got.Detection.Level))
	assert.Equal(t, "dte_standard", got.Mapper)
}

func TestDetectCommandWithBadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mappers:\n  fallback: ocr\n"), 0o644))

	_, err := run(t, "detect", "../internal/pipeline/testdata/dte_ccf.json", "--profile", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrInvalidProfile)
}

func TestHandleProcessingError(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		err  error
		want string
	}{
		{context.Canceled, "processing was canceled"},
		{fmt.Errorf("wrap: %w", pdfextract.ErrNoTextLayer), "no usable text layer"},
		{pdfextract.ErrTotalNotFound, "no total amount"},
		{pipeline.ErrUnsupportedFile, "only .json and .pdf"},
		{os.ErrNotExist, "file not found"},
	}
	for _, tt := range tests {
		assert.Contains(t, handleProcessingError(tt.err, log).Error(), tt.want)
	}
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := printProgress(&buf)

	progress(1, 2, pipeline.FileResult{Source: "a.json", Accepted: true})
	progress(2, 2, pipeline.FileResult{Source: "b.json", Err: os.ErrNotExist})

	assert.Contains(t, buf.String(), "[1/2] a.json - accepted")
	assert.Contains(t, buf.String(), "[2/2] b.json - rejected")
}
