package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/codelet/pkg/facade"
)

var toolsProvider string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool definitions a provider sees",
	Long: `Print, as JSON, the flat tool definitions presented to the given model
provider (claude, gemini, openai, zai).`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsProvider, "provider", string(facade.Claude), "model provider")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	provider, err := facade.ParseProvider(toolsProvider)
	if err != nil {
		return err
	}
	registry, err := facade.NewRegistry()
	if err != nil {
		return fmt.Errorf("build facade registry: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(registry.DefinitionsForProvider(provider))
}
