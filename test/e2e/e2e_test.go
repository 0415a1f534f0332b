//go:build e2e

package e2e

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/service"
)

const sampleText = "Chapter 1\n\nThe cat sat on the mat. It was a grey afternoon and the rain would not stop.\n\n" +
	"Chapter 2\n\nBy morning the cat had gone. Nobody in the village could say where."

type version struct {
	ID      string `json:"id"`
	Tag     string `json:"tag"`
	Content string `json:"content"`
	Length  int    `json:"length"`
}

type manuscript struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	CurrentVersionID string   `json:"current_version_id"`
	CurrentVersion   *version `json:"current_version"`
}

type transition struct {
	FromVersion *version `json:"from_version"`
	ToVersion   *version `json:"to_version"`
}

type editSession struct {
	ID            string `json:"id"`
	BaseVersionID string `json:"base_version_id"`
	Options       []struct {
		ID       string `json:"id"`
		Label    string `json:"label"`
		Severity string `json:"severity"`
		Before   string `json:"before"`
		After    string `json:"after"`
	} `json:"options"`
	Applied *struct {
		OptionID    string `json:"option_id"`
		ToVersionID string `json:"to_version_id"`
	} `json:"applied"`
}

func createManuscript(t *testing.T, env *E2ETestEnv, title, content string) manuscript {
	t.Helper()
	var m manuscript
	env.Decode(http.MethodPost, "/manuscripts", map[string]string{"title": title, "content": content}, &m)
	require.NotEmpty(t, m.ID)
	return m
}

// TestE2E_Auth checks the static bearer token guard
func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health needs no token", func(t *testing.T) {
		resp, err := http.Get(env.ServerURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		_, err := env.GetWithToken("/manuscripts", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("wrong token returns 401", func(t *testing.T) {
		_, err := env.GetWithToken("/manuscripts", "not-the-token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

// TestE2E_ManuscriptLifecycle covers create, index, snapshot, style prefs and delete
func TestE2E_ManuscriptLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	m := createManuscript(t, env, "The Grey Afternoon", strings.ReplaceAll(sampleText, "\n", "\r\n"))

	t.Run("content is normalized and v0 is current", func(t *testing.T) {
		var got manuscript
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID, nil, &got)
		require.NotNil(t, got.CurrentVersion)
		assert.Equal(t, "v0", got.CurrentVersion.Tag)
		assert.Equal(t, sampleText, got.CurrentVersion.Content)
		assert.Equal(t, len([]rune(sampleText)), got.CurrentVersion.Length)
	})

	t.Run("list includes the manuscript", func(t *testing.T) {
		var list struct {
			Items []manuscript `json:"items"`
		}
		env.Decode(http.MethodGet, "/manuscripts?limit=10", nil, &list)
		require.Len(t, list.Items, 1)
		assert.Equal(t, m.ID, list.Items[0].ID)
	})

	t.Run("index job chunks and embeds the version", func(t *testing.T) {
		env.RunIndexJobs()

		var chunks []struct {
			StartChar int    `json:"start_char"`
			EndChar   int    `json:"end_char"`
			Chapter   *int   `json:"chapter"`
			Text      string `json:"text"`
			Embedded  bool   `json:"embedded"`
		}
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID+"/versions/"+m.CurrentVersionID+"/chunks", nil, &chunks)
		require.NotEmpty(t, chunks)
		assert.Equal(t, 0, chunks[0].StartChar)
		assert.Equal(t, len([]rune(sampleText)), chunks[len(chunks)-1].EndChar)
		for _, c := range chunks {
			assert.True(t, c.Embedded)
			assert.NotEmpty(t, strings.TrimSpace(c.Text))
		}
	})

	t.Run("snapshot download matches the version", func(t *testing.T) {
		var out struct {
			URL string `json:"url"`
		}
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID+"/versions/"+m.CurrentVersionID+"/download", nil, &out)
		require.NotEmpty(t, out.URL)

		data, err := env.DownloadFile(out.URL)
		require.NoError(t, err)
		assert.Equal(t, sampleText, string(data))
	})

	t.Run("style prefs round trip", func(t *testing.T) {
		_, err := env.Put("/manuscripts/"+m.ID+"/style-prefs", map[string]interface{}{
			"prefs": map[string]string{"tone": "wry", "tense": "past"},
		})
		require.NoError(t, err)

		var out struct {
			Prefs map[string]string `json:"prefs"`
		}
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID+"/style-prefs", nil, &out)
		assert.Equal(t, map[string]string{"tone": "wry", "tense": "past"}, out.Prefs)
	})

	t.Run("delete removes the manuscript", func(t *testing.T) {
		resp, err := env.Delete("/manuscripts/" + m.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)

		resp, err = env.Get("/manuscripts/" + m.ID)
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})
}

// TestE2E_SuggestApplyRevert walks the version state machine through the API
func TestE2E_SuggestApplyRevert(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	m := createManuscript(t, env, "Cats", sampleText)
	env.RunIndexJobs()

	start := strings.Index(sampleText, "The cat sat on the mat.")
	end := start + len("The cat sat on the mat.")

	env.Generator.Script(
		service.GeneratedOption{Label: "Tighter", Severity: "light", After: "The cat sat."},
		service.GeneratedOption{Severity: "bold", After: ""},
		service.GeneratedOption{Label: "Vivid", Severity: "medium", After: "The tabby sprawled across the mat."},
	)

	var session editSession
	env.Decode(http.MethodPost, "/edits/suggest", map[string]interface{}{
		"manuscript_id": m.ID,
		"instruction":   "make it tighter",
		"target_range":  map[string]int{"start": start, "end": end},
		"style_prefs":   map[string]string{"tone": "dry"},
	}, &session)

	t.Run("empty rewrites are dropped", func(t *testing.T) {
		require.Len(t, session.Options, 2)
		assert.Equal(t, "Tighter", session.Options[0].Label)
		assert.Equal(t, "Vivid", session.Options[1].Label)
		assert.Equal(t, "The cat sat on the mat.", session.Options[0].Before)
		assert.Equal(t, m.CurrentVersionID, session.BaseVersionID)
	})

	t.Run("prompt carries instruction, target and style", func(t *testing.T) {
		req := env.Generator.LastRequest()
		assert.Contains(t, req.UserPrompt, "make it tighter")
		assert.Contains(t, req.UserPrompt, "The cat sat on the mat.")
		assert.Contains(t, req.UserPrompt, "dry")
	})

	var applied transition
	t.Run("apply creates v1", func(t *testing.T) {
		env.Decode(http.MethodPost, "/edits/apply", map[string]string{
			"edit_session_id": session.ID,
			"option_id":       session.Options[0].ID,
		}, &applied)

		assert.Equal(t, "v0", applied.FromVersion.Tag)
		assert.Equal(t, "v1", applied.ToVersion.Tag)

		var got manuscript
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID, nil, &got)
		want := strings.Replace(sampleText, "The cat sat on the mat.", "The cat sat.", 1)
		assert.Equal(t, want, got.CurrentVersion.Content)
	})

	t.Run("second apply conflicts", func(t *testing.T) {
		resp, err := env.Post("/edits/apply", map[string]string{
			"edit_session_id": session.ID,
			"option_id":       session.Options[1].ID,
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, resp.Status)
	})

	t.Run("session reports the applied option", func(t *testing.T) {
		var got editSession
		env.Decode(http.MethodGet, "/edits/sessions/"+session.ID, nil, &got)
		require.NotNil(t, got.Applied)
		assert.Equal(t, session.Options[0].ID, got.Applied.OptionID)
		assert.Equal(t, applied.ToVersion.ID, got.Applied.ToVersionID)
	})

	t.Run("revert restores v0 without deleting v1", func(t *testing.T) {
		var rev transition
		env.Decode(http.MethodPost, "/manuscripts/"+m.ID+"/revert", map[string]string{"version_id": m.CurrentVersionID}, &rev)
		assert.Equal(t, "v1", rev.FromVersion.Tag)
		assert.Equal(t, "v0", rev.ToVersion.Tag)

		var versions []version
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID+"/versions", nil, &versions)
		assert.Len(t, versions, 2)

		var got manuscript
		env.Decode(http.MethodGet, "/manuscripts/"+m.ID, nil, &got)
		assert.Equal(t, sampleText, got.CurrentVersion.Content)
	})

	t.Run("session from an older version is stale", func(t *testing.T) {
		var stale editSession
		env.Decode(http.MethodPost, "/edits/suggest", map[string]interface{}{
			"manuscript_id": m.ID,
			"instruction":   "again",
			"target_range":  map[string]int{"start": start, "end": end},
		}, &stale)

		var moved transition
		env.Decode(http.MethodPost, "/manuscripts/"+m.ID+"/revert", map[string]string{"version_id": applied.ToVersion.ID}, &moved)

		resp, err := env.Post("/edits/apply", map[string]string{
			"edit_session_id": stale.ID,
			"option_id":       stale.Options[0].ID,
		})
		require.Error(t, err)
		assert.Equal(t, "CONFLICT", resp.Code)
	})

	t.Run("out of range target is rejected", func(t *testing.T) {
		resp, err := env.Post("/edits/suggest", map[string]interface{}{
			"manuscript_id": m.ID,
			"instruction":   "x",
			"target_range":  map[string]int{"start": 0, "end": 100000},
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})
}

// TestE2E_CLIWorkflow drives the server through the inkwell binary
func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	workDir := t.TempDir()
	bookPath := filepath.Join(workDir, "book.txt")
	require.NoError(t, os.WriteFile(bookPath, []byte(sampleText), 0644))

	output, err := env.RunInkwell(workDir, "manuscript", "create", "--file", bookPath, "--title", "CLI Book", "--output")
	require.NoError(t, err, "create failed: %s", output)
	assert.Contains(t, output, `"title": "CLI Book"`)

	output, err = env.RunInkwell(workDir, "manuscript", "list")
	require.NoError(t, err, "list failed: %s", output)
	assert.Contains(t, output, "CLI Book")

	output, err = env.RunInkwell(workDir, "chunk", bookPath, "--max-tokens", "40", "--overlap", "5")
	require.NoError(t, err, "chunk failed: %s", output)
	assert.Contains(t, output, "#0 [0:")
}
