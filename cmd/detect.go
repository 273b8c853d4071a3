package cmd

import (
	"github.com/spf13/cobra"

	"dteintake/internal/logger"
	"dteintake/internal/pipeline"
	"dteintake/pkg/models"
)

var detectCmd = &cobra.Command{
	Use:   "detect [json-file]",
	Short: "Classify the format of a JSON invoice",
	Long: `Score a JSON document against every fingerprint of the active profile
and print the detected format, the confidence and the per-format scores,
together with the mapper that would convert it.`,
	Example: `  # Detect the format of an exported DTE
  dteintake detect dte.json

  # Detect with a custom profile
  dteintake detect export.json --profile gt.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

// DetectOutput is the JSON printed by the detect command.
type DetectOutput struct {
	File      string                 `json:"file"`
	Detection models.DetectionResult `json:"detection"`
	Mapper    string                 `json:"mapper,omitempty"`
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("detect")
	path := args[0]

	prof, err := loadProfile(cmd, log)
	if err != nil {
		return err
	}

	doc := pipeline.LoadFile(path, nil)
	if doc.Err != nil {
		return handleProcessingError(doc.Err, log)
	}

	output := DetectOutput{
		File:      path,
		Detection: prof.Detector().Detect(doc.Data),
	}

	registry, err := prof.Registry()
	if err != nil {
		return handleProcessingError(err, log)
	}
	if m, err := registry.GetMapper(output.Detection.Format); err == nil {
		output.Mapper = m.Name()
	}

	log.Info().
		Str("file", path).
		Str("format", string(output.Detection.Format)).
		Float64("confidence", output.Detection.Confidence).
		Msg("Detection completed")

	return writeJSON(output, "", cmd.OutOrStdout(), log)
}
