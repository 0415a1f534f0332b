package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"novel.txt", "novel"},
		{"drafts/the_long-road.md", "the long road"},
		{"/abs/path/Chapter One.markdown", "Chapter One"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, titleFromPath(tt.path))
		})
	}
}

func TestCommands_Wiring(t *testing.T) {
	serve := ServeCmd()
	assert.NotNil(t, serve.Flags().Lookup("no-migrate"))
	assert.NotNil(t, serve.Flags().Lookup("no-worker"))

	imp := ImportCmd()
	assert.Error(t, imp.Args(imp, []string{}))
	assert.NoError(t, imp.Args(imp, []string{"book.txt"}))
	assert.NotNil(t, imp.Flags().Lookup("title"))

	re := ReindexCmd()
	assert.Error(t, re.Args(re, []string{"a", "b"}))
}
