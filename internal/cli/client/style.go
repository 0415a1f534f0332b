package client

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// StyleCmd creates the style parent command.
func StyleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "style",
		Short: "Manage per-manuscript style preferences",
	}

	cmd.AddCommand(styleGetCmd())
	cmd.AddCommand(styleSetCmd())
	cmd.AddCommand(styleImportCmd())

	return cmd
}

func styleGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <manuscript_id>",
		Short: "Show stored style preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runStyleGet(cmd.OutOrStdout(), api, args[0], outputJSON(cmd))
		},
	}
}

func runStyleGet(w io.Writer, api *APIClient, manuscriptID string, asJSON bool) error {
	var out struct {
		Prefs map[string]string `json:"prefs"`
	}
	if err := api.GetInto(stylePath(manuscriptID), &out); err != nil {
		return fmt.Errorf("get style failed: %w", err)
	}
	if asJSON {
		return printJSON(w, out.Prefs)
	}
	printPrefs(w, out.Prefs)
	return nil
}

func styleSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <manuscript_id> key=value...",
		Short: "Replace style preferences",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := parsePrefs(args[1:])
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runStyleSet(cmd.OutOrStdout(), api, args[0], prefs)
		},
	}
}

func styleImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <manuscript_id> <file.yaml>",
		Short: "Replace style preferences from a YAML mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			prefs, err := parsePrefsYAML(data)
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runStyleSet(cmd.OutOrStdout(), api, args[0], prefs)
		},
	}
}

func runStyleSet(w io.Writer, api *APIClient, manuscriptID string, prefs map[string]string) error {
	body := map[string]interface{}{"prefs": prefs}
	if _, err := api.Put(stylePath(manuscriptID), body); err != nil {
		return fmt.Errorf("set style failed: %w", err)
	}
	fmt.Fprintf(w, "Stored %d style preferences\n", len(prefs))
	return nil
}

func stylePath(manuscriptID string) string {
	return "/manuscripts/" + url.PathEscape(manuscriptID) + "/style-prefs"
}

func parsePrefs(pairs []string) (map[string]string, error) {
	prefs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid preference %q, expected key=value", p)
		}
		prefs[key] = value
	}
	return prefs, nil
}

// parsePrefsYAML accepts a flat mapping; scalar values are kept as written.
func parsePrefsYAML(data []byte) (map[string]string, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse style file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("style file has no preferences")
	}

	prefs := make(map[string]string, len(raw))
	for key, node := range raw {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("preference %q must be a scalar value", key)
		}
		prefs[key] = node.Value
	}
	return prefs, nil
}

func printPrefs(w io.Writer, prefs map[string]string) {
	if len(prefs) == 0 {
		fmt.Fprintln(w, "No style preferences stored.")
		return
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, prefs[k])
	}
}
