package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/inkwell/internal/cli"
	"github.com/cloo-solutions/inkwell/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkwelld",
		Short: "Inkwell daemon and admin CLI",
		Long:  "Inkwell daemon for running the API server, importing manuscripts and re-indexing versions",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ImportCmd())
	rootCmd.AddCommand(admin.ReindexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
