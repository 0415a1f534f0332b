package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "inkwell", Short: "root"}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	AddHelpJSONFlag(root)

	ms := &cobra.Command{Use: "manuscript", Aliases: []string{"ms"}, Short: "Manage manuscripts"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create one",
		RunE:  func(cmd *cobra.Command, args []string) error { return nil },
	}
	create.Flags().String("title", "", "Manuscript title")
	create.Flags().String("author", "", "Manuscript author")
	_ = create.MarkFlagRequired("title")

	hidden := &cobra.Command{Use: "secret", Hidden: true, Run: func(*cobra.Command, []string) {}}

	ms.AddCommand(create)
	root.AddCommand(ms, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "inkwell", schema.Name)
	assert.False(t, schema.Runnable)
	require.Len(t, schema.Subcommands, 1)

	ms := schema.Subcommands[0]
	assert.Equal(t, []string{"ms"}, ms.Aliases)
	require.Len(t, ms.Subcommands, 1)

	create := ms.Subcommands[0]
	assert.True(t, create.Runnable)

	byName := map[string]FlagSchema{}
	for _, f := range create.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["title"].Required)
	assert.False(t, byName["author"].Required)
	assert.Equal(t, "string", byName["title"].Type)

	var inherited []string
	for _, f := range create.InheritedFlags {
		inherited = append(inherited, f.Name)
	}
	assert.Equal(t, []string{"output"}, inherited)
}

func TestFindTargetCommand(t *testing.T) {
	root := testTree()

	assert.Equal(t, "create", findTargetCommand(root, []string{"ms", "create"}).Name())
	assert.Equal(t, "manuscript", findTargetCommand(root, []string{"manuscript", "--title"}).Name())
	assert.Equal(t, "inkwell", findTargetCommand(root, nil).Name())
}
