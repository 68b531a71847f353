package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"receipts/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Receipts CLI - Extract structured data from receipt images",
	Long: `Receipts CLI turns OCR output from receipt photos into structured,
validated records: store, line items, totals, date and payment method.

Recognition runs against Google Cloud Vision or Document AI; every later
stage is deterministic, so the same image always produces the same result.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Receipts CLI executed")

		fmt.Println("Welcome to Receipts CLI!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
