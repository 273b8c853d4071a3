package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dteintake/internal/logger"
)

var pdfCmd = &cobra.Command{
	Use:   "pdf [pdf-file]",
	Short: "Extract invoice fields from the text layer of a DTE printout",
	Long: `Read the text layer of a PDF invoice and extract the control number,
generation code, issue date, supplier and amounts with ordered patterns.

Scanned PDFs without a text layer are rejected; OCR is not performed.
The minimum text length is set with PDF_MIN_TEXT_LENGTH (default: 50).`,
	Example: `  # Print the extracted fields
  dteintake pdf factura.pdf

  # Save them to a file
  dteintake pdf factura.pdf -o factura-fields.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPDF,
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runPDF(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("pdf")

	outputPath, _ := cmd.Flags().GetString("output")
	pdfPath := args[0]

	if err := validatePDFFile(pdfPath, log); err != nil {
		return err
	}

	result, err := newExtractor().Extract(pdfPath)
	if err != nil {
		return handleProcessingError(err, log)
	}

	log.Info().
		Str("file", pdfPath).
		Int("pages", result.PageCount).
		Int("fields", len(result.Fields)).
		Dur("duration", result.ProcessingDuration).
		Msg("PDF extraction completed")

	return writeJSON(result, outputPath, cmd.OutOrStdout(), log)
}

// validatePDFFile checks the file before handing it to the PDF reader
func validatePDFFile(pdfPath string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Cannot access PDF file")
		return handleProcessingError(err, log)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	return nil
}
