package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dteintake/internal/mapper"
	"dteintake/internal/pdfextract"
	"dteintake/internal/pipeline"
	"dteintake/internal/profile"
)

// loadProfile resolves --profile, then PROFILE_FILE, then the built-in
// profile.
func loadProfile(cmd *cobra.Command, log zerolog.Logger) (*profile.Profile, error) {
	path, _ := cmd.Flags().GetString("profile")
	if path == "" {
		path = appConfig.ProfileFile
	}
	if path == "" {
		log.Debug().Msg("Using built-in profile")
		return profile.Default(), nil
	}

	p, err := profile.Load(path)
	if err != nil {
		log.Error().Err(err).Str("profile", path).Msg("Failed to load profile")
		return nil, handleProcessingError(err, log)
	}
	log.Info().Str("profile", p.Name).Str("path", path).Msg("Loaded profile")
	return p, nil
}

func newExtractor() *pdfextract.Extractor {
	return pdfextract.NewExtractor(pdfextract.WithMinTextLength(appConfig.PDFMinTextLength))
}

// createContext cancels on SIGINT or SIGTERM. The batch stops between files
// and still reports what it finished.
func createContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, stopping after the current file")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleProcessingError provides user-friendly error messages
func handleProcessingError(err error, log zerolog.Logger) error {
	log.Debug().Err(err).Msg("Translating error")

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, profile.ErrInvalidProfile):
		return fmt.Errorf("invalid jurisdiction profile. Check it against profile.example.yaml: %w", err)
	case errors.Is(err, pdfextract.ErrNoTextLayer):
		return fmt.Errorf("the PDF has no usable text layer. Scanned invoices are not supported: %w", err)
	case errors.Is(err, pdfextract.ErrTotalNotFound):
		return fmt.Errorf("no total amount was found in the PDF text: %w", err)
	case errors.Is(err, pdfextract.ErrUnreadablePDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity: %w", err)
	case errors.Is(err, pipeline.ErrUnsupportedFile):
		return fmt.Errorf("only .json and .pdf files are supported: %w", err)
	case errors.Is(err, mapper.ErrMapperNotFound):
		return fmt.Errorf("no mapper handles this format. Add a binding or a fallback to the profile: %w", err)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("file not found: %w", err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("permission denied: %w", err)
	default:
		return err
	}
}

// writeJSON writes v as indented JSON to outputPath, or to w when no path is
// given.
func writeJSON(v any, outputPath string, w io.Writer, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal output to JSON")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	jsonData = append(jsonData, '\n')

	if outputPath == "" {
		if _, err := w.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(jsonData)).
		Msg("Output written to file")
	return nil
}
