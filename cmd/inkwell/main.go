package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/inkwell/internal/cli"
	"github.com/cloo-solutions/inkwell/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkwell",
		Short: "Inkwell CLI - AI-assisted manuscript editing",
		Long: `Inkwell CLI manages manuscripts, requests edit suggestions and applies them as new versions.

Environment variables:
  INKWELL_API_TOKEN   API token for authentication (if the server requires one)
  INKWELL_API_URL     API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ManuscriptCmd())
	rootCmd.AddCommand(client.EditCmd())
	rootCmd.AddCommand(client.StyleCmd())
	rootCmd.AddCommand(client.DiffCmd())
	rootCmd.AddCommand(client.ChunkCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
