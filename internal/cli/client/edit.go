package client

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// SuggestRequest is the body of POST /edits/suggest.
type SuggestRequest struct {
	ManuscriptID string            `json:"manuscript_id"`
	Instruction  string            `json:"instruction"`
	TargetRange  map[string]int    `json:"target_range"`
	K            int               `json:"k,omitempty"`
	NumOptions   int               `json:"num_options,omitempty"`
	StylePrefs   map[string]string `json:"style_prefs,omitempty"`
}

// ApplyRequest is the body of POST /edits/apply.
type ApplyRequest struct {
	EditSessionID string `json:"edit_session_id"`
	OptionID      string `json:"option_id"`
	ManuscriptID  string `json:"manuscript_id,omitempty"`
}

// EditCmd creates the edit parent command.
func EditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Request and apply AI edit suggestions",
	}

	cmd.AddCommand(editSuggestCmd())
	cmd.AddCommand(editApplyCmd())
	cmd.AddCommand(editSessionCmd())

	return cmd
}

func editSuggestCmd() *cobra.Command {
	var req SuggestRequest
	var start, end int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate edit options for a character range",
		Long: `Generate edit options for the range [start, end) of the current version.

Offsets count characters (Unicode code points), not bytes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.TargetRange = map[string]int{"start": start, "end": end}
			return runEditSuggest(cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&req.ManuscriptID, "manuscript", "m", "", "Manuscript ID")
	cmd.Flags().StringVarP(&req.Instruction, "instruction", "i", "", "Editing instruction")
	cmd.Flags().IntVar(&start, "start", 0, "Start offset (inclusive)")
	cmd.Flags().IntVar(&end, "end", 0, "End offset (exclusive)")
	cmd.Flags().IntVarP(&req.K, "k", "k", 0, "Number of context chunks to retrieve (0 = server default)")
	cmd.Flags().IntVar(&req.NumOptions, "num-options", 0, "Number of options to generate (0 = server default)")
	cmd.Flags().StringToStringVar(&req.StylePrefs, "style", nil, "Style preference overrides as key=value")
	_ = cmd.MarkFlagRequired("manuscript")
	_ = cmd.MarkFlagRequired("instruction")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runEditSuggest(w io.Writer, api *APIClient, req SuggestRequest, asJSON bool) error {
	var session EditSession
	if err := api.PostInto("/edits/suggest", req, &session); err != nil {
		return fmt.Errorf("suggest failed: %w", err)
	}
	if asJSON {
		return printJSON(w, session)
	}
	printSession(w, session)
	return nil
}

func printSession(w io.Writer, s EditSession) {
	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "Base version: %s\n", s.BaseVersionID)
	fmt.Fprintf(w, "Range: [%d, %d)\n", s.TargetRange["start"], s.TargetRange["end"])
	if s.ContextUsed != nil {
		fmt.Fprintf(w, "Context chunks: %d\n", *s.ContextUsed)
	}

	for _, opt := range s.Options {
		fmt.Fprintf(w, "\n%s\n", separator)
		fmt.Fprintf(w, "%d. %s [%s]\n", opt.Position+1, opt.Label, opt.Severity)
		fmt.Fprintf(w, "   ID: %s\n", opt.ID)
		fmt.Fprintf(w, "   %s\n", strings.ReplaceAll(opt.After, "\n", "\n   "))
	}

	if s.Applied != nil {
		fmt.Fprintf(w, "\nApplied option %s at %s (version %s)\n", s.Applied.OptionID, s.Applied.AppliedAt, s.Applied.ToVersionID)
	}
}

func editApplyCmd() *cobra.Command {
	var manuscriptID string

	cmd := &cobra.Command{
		Use:   "apply <session_id> <option_id>",
		Short: "Apply a chosen option, creating a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req := ApplyRequest{EditSessionID: args[0], OptionID: args[1], ManuscriptID: manuscriptID}
			return runEditApply(cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&manuscriptID, "manuscript", "m", "", "Manuscript ID (checked against the session)")

	return cmd
}

func runEditApply(w io.Writer, api *APIClient, req ApplyRequest, asJSON bool) error {
	var t Transition
	if err := api.PostInto("/edits/apply", req, &t); err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	if asJSON {
		return printJSON(w, t)
	}
	printTransition(w, t)
	return nil
}

func editSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <session_id>",
		Short: "Show an edit session with its options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			var session EditSession
			if err := api.GetInto("/edits/sessions/"+url.PathEscape(args[0]), &session); err != nil {
				return fmt.Errorf("session failed: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), session)
			}
			printSession(cmd.OutOrStdout(), session)
			return nil
		},
	}
}
