package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ReindexCmd chunks and embeds a version synchronously.
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <version_id>",
		Short: "Rebuild the chunk set of a version",
		Long:  "Chunk and embed a version immediately, replacing its stored chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

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

			if err := a.indexing.IndexVersion(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to reindex version %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Version %s reindexed\n", args[0])
			return nil
		},
	}
}
