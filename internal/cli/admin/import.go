package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/inkwell/internal/service"
)

// ImportCmd creates a manuscript from a local text or markdown file.
func ImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a manuscript from a text or markdown file",
		Long:  "Read a file and create a manuscript with the file content as version v0. The version is queued for indexing.",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	cmd.Flags().String("title", "", "Manuscript title (defaults to the file name)")
	cmd.Flags().String("author", "", "Manuscript author")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().Bool("index-now", false, "Index the new version synchronously instead of leaving it to the worker")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = titleFromPath(path)
	}
	author, _ := cmd.Flags().GetString("author")
	outputFormat, _ := cmd.Flags().GetString("output")
	indexNow, _ := cmd.Flags().GetBool("index-now")

	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	m, v, err := a.versions.CreateManuscript(ctx, service.CreateManuscriptInput{
		Title:   title,
		Author:  author,
		Content: string(content),
	})
	if err != nil {
		return fmt.Errorf("failed to create manuscript: %w", err)
	}

	if indexNow {
		if err := a.indexing.IndexVersion(ctx, v.ID); err != nil {
			return fmt.Errorf("manuscript %s created but indexing failed: %w", m.ID, err)
		}
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":                 m.ID,
			"title":              m.Title,
			"author":             m.Author,
			"current_version_id": v.ID,
			"tag":                v.Tag,
			"created_at":         m.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Manuscript created: %s (%s)\n", m.Title, m.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  version: %s (%s)\n", v.Tag, v.ID)
	return nil
}

// titleFromPath turns "chapters/the_long-road.md" into "the long road".
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
}
