package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dteintake/internal/config"
	"dteintake/internal/logger"
)

var version = "1.0.0"

// appConfig is set by Execute; commands fall back to config.Default.
var appConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "dteintake",
	Short: "Classify, normalize and validate electronic purchase invoices",
	Long: `dteintake ingests purchase invoices in heterogeneous formats: official
DTE JSON from the Ministerio de Hacienda, flattened exports from accounting
software, generic invoice-like JSON and the text layer of DTE printouts.

Every document is classified by format, mapped to one canonical invoice and
validated before it is trusted downstream. Formats, mapper bindings and
tolerances can be swapped per jurisdiction with a YAML profile.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			return logger.SetLevel("debug")
		}
		return nil
	},
}

// Execute runs the CLI with cfg and exits non-zero on failure.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if cfg != nil {
		appConfig = cfg
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("profile", "", "Jurisdiction profile YAML (default: PROFILE_FILE or built-in)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}
