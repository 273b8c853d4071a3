package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dteintake/internal/invoice"
	"dteintake/internal/logger"
	"dteintake/internal/pipeline"
	"dteintake/internal/report"
	"dteintake/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [paths...]",
	Short: "Detect, map and validate a batch of invoice files",
	Long: `Process JSON and PDF invoices from files and folders as one batch.

Every file is classified, mapped to the canonical invoice and validated
against the invoices accepted before it, so duplicates inside the batch are
caught in input order. The batch result (accepted invoices, rejections with
a reason, and per-format counts) is written as JSON.

Optional environment variables:
  PROFILE_FILE - Jurisdiction profile YAML
  BATCH_WORKERS - Number of parallel workers (default: 4)
  PDF_MIN_TEXT_LENGTH - Minimum text layer length for PDFs (default: 50)
  AMOUNT_TOLERANCE, TAX_TOLERANCE, VAT_RATE, MAX_INVOICE_AGE_YEARS`,
	Example: `  # Process a folder and print the batch result
  dteintake process ./compras

  # Write the result and an XLSX review workbook
  dteintake process ./compras -o batch.json --report batch.xlsx

  # Use a different jurisdiction profile and drop raw documents
  dteintake process ./compras --profile gt.yaml --drop-raw`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Int("workers", 0, "Parallel workers (default: BATCH_WORKERS)")
	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().String("report", "", "Write an XLSX report to this path")
	processCmd.Flags().Bool("drop-raw", false, "Omit the raw source documents from the output")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	// Get flags
	workers, _ := cmd.Flags().GetInt("workers")
	outputPath, _ := cmd.Flags().GetString("output")
	reportPath, _ := cmd.Flags().GetString("report")
	dropRaw, _ := cmd.Flags().GetBool("drop-raw")
	if workers <= 0 {
		workers = appConfig.BatchWorkers
	}

	log.Info().
		Strs("paths", args).
		Int("workers", workers).
		Str("output", outputPath).
		Str("report", reportPath).
		Bool("drop_raw", dropRaw).
		Msg("Starting batch processing")

	prof, err := loadProfile(cmd, log)
	if err != nil {
		return err
	}
	registry, err := prof.Registry()
	if err != nil {
		return handleProcessingError(err, log)
	}
	validator := invoice.NewPurchaseValidator(prof.ValidatorConfig(appConfig.GetValidatorConfig()))

	docs, err := pipeline.LoadPaths(args, newExtractor())
	if err != nil {
		return handleProcessingError(err, log)
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No .json or .pdf files found.")
		return nil
	}

	ctx, cancel := createContext(log)
	defer cancel()

	processor := pipeline.NewProcessor(prof.Detector(), registry, validator,
		pipeline.WithWorkers(workers),
		pipeline.WithDropRawData(dropRaw),
	)

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Processing %d files with %d workers...\n", len(docs), workers)
	result, runErr := processor.ProcessBatch(ctx, docs, printProgress(stderr))
	if runErr != nil && result == nil {
		return handleProcessingError(runErr, log)
	}

	printSummary(stderr, result)

	if err := writeJSON(result, outputPath, cmd.OutOrStdout(), log); err != nil {
		return err
	}

	if reportPath != "" {
		if err := report.WriteWorkbook(result, reportPath); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Report: %s\n", reportPath)
	}

	log.Info().
		Str("batch_id", result.BatchID).
		Int("total", len(docs)).
		Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).
		Msg("Batch processing completed")

	if runErr != nil {
		return handleProcessingError(runErr, log)
	}
	return nil
}

// printProgress reports each file as it is accepted or rejected.
func printProgress(w io.Writer) pipeline.Progress {
	return func(done, total int, r pipeline.FileResult) {
		status := "accepted"
		switch {
		case !r.Accepted:
			status = "rejected"
		case r.Validation != nil && r.Validation.WarningCount > 0:
			status = fmt.Sprintf("accepted, %d warnings", r.Validation.WarningCount)
		}

		fmt.Fprintf(w, "[%d/%d] %s - %s (%s)", done, total, r.Source, status, r.Detection.Format)
		if !r.Accepted {
			fmt.Fprintf(w, ": %s", r.Reason())
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, result *pipeline.BatchResult) {
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Batch:    %s\n", result.BatchID)
	fmt.Fprintf(w, "Accepted: %d\n", len(result.Accepted))
	fmt.Fprintf(w, "Rejected: %d\n", len(result.Rejected))
	formats := make([]string, 0, len(result.FormatCounts))
	for format := range result.FormatCounts {
		formats = append(formats, string(format))
	}
	sort.Strings(formats)
	for _, format := range formats {
		fmt.Fprintf(w, "  %-14s %d\n", format, result.FormatCounts[models.Format(format)])
	}
	fmt.Fprintln(w, strings.Repeat("=", 50))
}
