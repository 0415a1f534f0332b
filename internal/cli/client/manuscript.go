package client

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// CreateManuscriptRequest is the body of POST /manuscripts.
type CreateManuscriptRequest struct {
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Content string `json:"content"`
}

// ManuscriptCmd creates the manuscript parent command.
func ManuscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "manuscript",
		Aliases: []string{"ms"},
		Short:   "Manage manuscripts and their versions",
	}

	cmd.AddCommand(manuscriptCreateCmd())
	cmd.AddCommand(manuscriptGetCmd())
	cmd.AddCommand(manuscriptListCmd())
	cmd.AddCommand(manuscriptDeleteCmd())
	cmd.AddCommand(manuscriptVersionsCmd())
	cmd.AddCommand(manuscriptRevertCmd())
	cmd.AddCommand(manuscriptChunksCmd())
	cmd.AddCommand(manuscriptReindexCmd())
	cmd.AddCommand(manuscriptDownloadCmd())

	return cmd
}

func manuscriptCreateCmd() *cobra.Command {
	var file, title, author string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Upload a manuscript as its initial version",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req := CreateManuscriptRequest{Title: title, Author: author, Content: string(content)}
			return runManuscriptCreate(cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the manuscript text file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Manuscript title")
	cmd.Flags().StringVarP(&author, "author", "a", "", "Manuscript author")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runManuscriptCreate(w io.Writer, api *APIClient, req CreateManuscriptRequest, asJSON bool) error {
	var m Manuscript
	if err := api.PostInto("/manuscripts", req, &m); err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	if asJSON {
		return printJSON(w, m)
	}
	fmt.Fprintf(w, "Created manuscript %s\n", m.ID)
	fmt.Fprintf(w, "Current version: %s\n", m.CurrentVersionID)
	return nil
}

func manuscriptGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <manuscript_id>",
		Short: "Show a manuscript and its current version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runManuscriptGet(cmd.OutOrStdout(), api, args[0], outputJSON(cmd))
		},
	}
}

func runManuscriptGet(w io.Writer, api *APIClient, id string, asJSON bool) error {
	var m Manuscript
	if err := api.GetInto("/manuscripts/"+url.PathEscape(id), &m); err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	if asJSON {
		return printJSON(w, m)
	}

	fmt.Fprintf(w, "Title: %s\n", m.Title)
	if m.Author != "" {
		fmt.Fprintf(w, "Author: %s\n", m.Author)
	}
	fmt.Fprintf(w, "ID: %s\n", m.ID)
	fmt.Fprintf(w, "Updated: %s\n", m.UpdatedAt)
	if v := m.CurrentVersion; v != nil {
		fmt.Fprintf(w, "Current version: %s (%s, %d chars)\n", v.ID, v.Tag, v.Length)
		fmt.Fprintln(w, separator)
		fmt.Fprintln(w, v.Content)
	}
	return nil
}

func manuscriptListCmd() *cobra.Command {
	var cursor string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manuscripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runManuscriptList(cmd.OutOrStdout(), api, cursor, limit, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")

	return cmd
}

func runManuscriptList(w io.Writer, api *APIClient, cursor string, limit int, asJSON bool) error {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/manuscripts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list ManuscriptList
	if err := api.GetInto(path, &list); err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if asJSON {
		return printJSON(w, list)
	}

	if len(list.Items) == 0 {
		fmt.Fprintln(w, "No manuscripts found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d manuscripts:\n\n", len(list.Items))
	for i, m := range list.Items {
		fmt.Fprintf(w, "%d. %s\n", i+1, m.Title)
		if m.Author != "" {
			fmt.Fprintf(w, "   Author: %s\n", m.Author)
		}
		fmt.Fprintf(w, "   Updated: %s\n", m.UpdatedAt)
		fmt.Fprintf(w, "   ID: %s\n", m.ID)
	}

	if list.HasMore && list.Cursor != "" {
		fmt.Fprintf(w, "\n%s\n", separator)
		fmt.Fprintf(w, "More results available. Use --cursor %s\n", list.Cursor)
	}
	return nil
}

func manuscriptDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <manuscript_id>",
		Short: "Delete a manuscript with all versions and edit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/manuscripts/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted manuscript %s\n", args[0])
			return nil
		},
	}
}

func manuscriptVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <manuscript_id>",
		Short: "List the versions of a manuscript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runManuscriptVersions(cmd.OutOrStdout(), api, args[0], outputJSON(cmd))
		},
	}
}

func runManuscriptVersions(w io.Writer, api *APIClient, id string, asJSON bool) error {
	var versions []Version
	if err := api.GetInto("/manuscripts/"+url.PathEscape(id)+"/versions", &versions); err != nil {
		return fmt.Errorf("versions failed: %w", err)
	}
	if asJSON {
		return printJSON(w, versions)
	}
	for _, v := range versions {
		fmt.Fprintf(w, "%s  %-24s %8d chars  %s\n", v.ID, v.Tag, v.Length, v.CreatedAt)
	}
	return nil
}

func manuscriptRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <manuscript_id> <version_id>",
		Short: "Make an earlier version current",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runManuscriptRevert(cmd.OutOrStdout(), api, args[0], args[1], outputJSON(cmd))
		},
	}
}

func runManuscriptRevert(w io.Writer, api *APIClient, manuscriptID, versionID string, asJSON bool) error {
	var t Transition
	body := map[string]string{"version_id": versionID}
	if err := api.PostInto("/manuscripts/"+url.PathEscape(manuscriptID)+"/revert", body, &t); err != nil {
		return fmt.Errorf("revert failed: %w", err)
	}
	if asJSON {
		return printJSON(w, t)
	}
	printTransition(w, t)
	return nil
}

func printTransition(w io.Writer, t Transition) {
	if t.FromVersion != nil && t.ToVersion != nil && t.FromVersion.ID == t.ToVersion.ID {
		fmt.Fprintf(w, "Version %s is already current\n", t.ToVersion.ID)
		return
	}
	if t.FromVersion != nil {
		fmt.Fprintf(w, "From: %s (%s)\n", t.FromVersion.ID, t.FromVersion.Tag)
	}
	if t.ToVersion != nil {
		fmt.Fprintf(w, "To:   %s (%s)\n", t.ToVersion.ID, t.ToVersion.Tag)
	}
}

func manuscriptChunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <manuscript_id> <version_id>",
		Short: "List the indexed chunks of a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runManuscriptChunks(cmd.OutOrStdout(), api, args[0], args[1], outputJSON(cmd))
		},
	}
}

func runManuscriptChunks(w io.Writer, api *APIClient, manuscriptID, versionID string, asJSON bool) error {
	var chunks []Chunk
	path := fmt.Sprintf("/manuscripts/%s/versions/%s/chunks", url.PathEscape(manuscriptID), url.PathEscape(versionID))
	if err := api.GetInto(path, &chunks); err != nil {
		return fmt.Errorf("chunks failed: %w", err)
	}
	if asJSON {
		return printJSON(w, chunks)
	}
	if len(chunks) == 0 {
		fmt.Fprintln(w, "No chunks indexed for this version.")
		return nil
	}
	for _, c := range chunks {
		chapter := "-"
		if c.Chapter != nil {
			chapter = strconv.Itoa(*c.Chapter)
		}
		embedded := ""
		if c.Embedded {
			embedded = " *"
		}
		fmt.Fprintf(w, "#%d [%d:%d] ch %s%s  %s\n", c.ChunkIndex, c.StartChar, c.EndChar, chapter, embedded, truncate(c.Text, 60))
	}
	return nil
}

func manuscriptReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <manuscript_id> <version_id>",
		Short: "Queue a version for re-chunking and embedding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/manuscripts/%s/versions/%s/reindex", url.PathEscape(args[0]), url.PathEscape(args[1]))
			var job map[string]string
			if err := api.PostInto(path, nil, &job); err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued index job %s (%s)\n", job["job_id"], job["status"])
			return nil
		},
	}
}

func manuscriptDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <manuscript_id> <version_id>",
		Short: "Print a presigned URL for a version snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/manuscripts/%s/versions/%s/download", url.PathEscape(args[0]), url.PathEscape(args[1]))
			var out map[string]string
			if err := api.GetInto(path, &out); err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out["url"])
			return nil
		},
	}
}
