package client

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

// DiffCmd previews the changes between two local files without a server.
func DiffCmd() *cobra.Command {
	var contextChars int

	cmd := &cobra.Command{
		Use:   "diff <before-file> <after-file>",
		Short: "Preview character-level changes between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			after, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			return runLocalDiff(cmd.OutOrStdout(), string(before), string(after), contextChars, outputJSON(cmd))
		},
	}

	cmd.Flags().IntVarP(&contextChars, "context", "c", service.DefaultPreviewContextChars, "Characters of context around the changes")

	return cmd
}

func runLocalDiff(w io.Writer, before, after string, contextChars int, asJSON bool) error {
	preview := service.PreviewDiff(domain.NormalizeLineEndings(before), domain.NormalizeLineEndings(after), contextChars)
	if asJSON {
		return printJSON(w, preview)
	}
	if !preview.HasChanges {
		fmt.Fprintln(w, "No changes.")
		return nil
	}

	fmt.Fprintf(w, "%d operations, window [%d, %d)\n", len(preview.Operations), preview.WindowStart, preview.WindowEnd)
	for _, op := range preview.Operations {
		switch op.Kind {
		case domain.DiffOpDelete:
			fmt.Fprintf(w, "  - [%d:%d]\n", op.Start, op.End)
		default:
			fmt.Fprintf(w, "  %s [%d:%d] %q\n", op.Kind, op.Start, op.End, truncate(op.Text, 50))
		}
	}
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, preview.PreviewText)
	return nil
}

// ChunkCmd shows how a local file would be split for retrieval.
func ChunkCmd() *cobra.Command {
	var maxTokens, overlap int
	var tokenizer string

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a local file into retrieval chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			chunker := service.NewChunker(service.ChunkConfig{
				MaxTokensPerChunk: maxTokens,
				OverlapTokens:     overlap,
			}, service.NewTokenCounter(tokenizer))
			return runLocalChunk(cmd.OutOrStdout(), chunker, string(data), outputJSON(cmd))
		},
	}

	defaults := service.DefaultChunkConfig()
	cmd.Flags().IntVar(&maxTokens, "max-tokens", defaults.MaxTokensPerChunk, "Maximum tokens per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", defaults.OverlapTokens, "Tokens of overlap between chunks (capped to what fits)")
	cmd.Flags().StringVar(&tokenizer, "tokenizer", "estimate", "Token counter (estimate|tiktoken)")

	return cmd
}

func runLocalChunk(w io.Writer, chunker *service.Chunker, text string, asJSON bool) error {
	chunks := chunker.Chunk(text)
	if asJSON {
		return printJSON(w, chunks)
	}
	if len(chunks) == 0 {
		fmt.Fprintln(w, "No chunks (text is empty).")
		return nil
	}
	for i, c := range chunks {
		chapter := ""
		if c.Chapter != nil {
			chapter = fmt.Sprintf(" chapter %d", *c.Chapter)
		}
		fmt.Fprintf(w, "#%d [%d:%d]%s  %s\n", i, c.StartChar, c.EndChar, chapter, truncate(c.Text, 60))
	}
	return nil
}
