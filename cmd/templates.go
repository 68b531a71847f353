package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"receipts/internal/config"
	"receipts/internal/logger"
	"receipts/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the registered merchant templates",
	Long: `Show every merchant template the parser can match against: the built-in
templates plus any loaded from the file named by RECEIPT_TEMPLATES_FILE.

For each template the anchors used for detection are listed with their
weights. Receipts that match no template fall back to generic extraction.`,
	Example: `  # List all registered templates
  receipts templates`,
	Args: cobra.NoArgs,
	RunE: runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("templates")

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	fmt.Printf("Registered templates (%d):\n\n", registry.Len())
	for _, id := range registry.IDs() {
		t, _ := registry.Get(id)

		anchors := make([]string, 0, len(t.Anchors))
		for _, a := range t.Anchors {
			anchors = append(anchors, fmt.Sprintf("%q (weight %g)", a.Token, a.Weight))
		}

		fmt.Printf("  %s - %s\n", t.ID, t.Name)
		if len(anchors) > 0 {
			fmt.Printf("    anchors: %s\n", strings.Join(anchors, ", "))
		}
	}
	fmt.Printf("\n  %s - %s (fallback, no anchors)\n", template.GenericID, template.Generic.Name)

	return nil
}
