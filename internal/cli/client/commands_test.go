package client

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/inkwell/internal/service"
)

func TestRunManuscriptCreate(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusCreated, `{"data":{"id":"m1","title":"Dune","current_version_id":"v1"}}`)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	err := runManuscriptCreate(&out, api, CreateManuscriptRequest{Title: "Dune", Content: "Sand."}, false)
	require.NoError(t, err)

	req := (*reqs)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/manuscripts", req.Path)
	assert.Equal(t, "Sand.", req.Body["content"])
	assert.Contains(t, out.String(), "Created manuscript m1")
	assert.Contains(t, out.String(), "Current version: v1")
}

func TestRunManuscriptList_Pagination(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"data":{"items":[{"id":"m1","title":"Dune"}],"cursor":"abc","has_more":true}}`)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runManuscriptList(&out, api, "prev", 5, false))

	assert.Equal(t, "cursor=prev&limit=5", (*reqs)[0].Query)
	assert.Contains(t, out.String(), "1. Dune")
	assert.Contains(t, out.String(), "Use --cursor abc")
}

func TestRunManuscriptList_Empty(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"data":{"items":[],"has_more":false}}`)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runManuscriptList(&out, api, "", 0, false))
	assert.Contains(t, out.String(), "No manuscripts found.")
}

func TestRunManuscriptGet_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, `{"error":"manuscript not found","code":"NOT_FOUND"}`)
	api := NewAPIClientWithConfig("", srv.URL)

	err := runManuscriptGet(&bytes.Buffer{}, api, "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manuscript not found")
}

func TestRunManuscriptRevert(t *testing.T) {
	payload := `{"data":{"manuscript_id":"m1","from_version":{"id":"v3","tag":"edit-2"},"to_version":{"id":"v1","tag":"initial"}}}`
	srv, reqs := newTestServer(t, http.StatusOK, payload)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runManuscriptRevert(&out, api, "m1", "v1", false))

	assert.Equal(t, "/manuscripts/m1/revert", (*reqs)[0].Path)
	assert.Equal(t, "v1", (*reqs)[0].Body["version_id"])
	assert.Contains(t, out.String(), "From: v3 (edit-2)")
	assert.Contains(t, out.String(), "To:   v1 (initial)")
}

func TestRunManuscriptRevert_AlreadyCurrent(t *testing.T) {
	payload := `{"data":{"manuscript_id":"m1","from_version":{"id":"v1"},"to_version":{"id":"v1"}}}`
	srv, _ := newTestServer(t, http.StatusOK, payload)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runManuscriptRevert(&out, api, "m1", "v1", false))
	assert.Contains(t, out.String(), "already current")
}

func TestRunManuscriptChunks(t *testing.T) {
	payload := `{"data":[{"id":"c1","chunk_index":0,"chapter":1,"start_char":0,"end_char":12,"text":"Chapter 1\nIt","embedded":true}]}`
	srv, reqs := newTestServer(t, http.StatusOK, payload)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runManuscriptChunks(&out, api, "m1", "v1", false))
	assert.Equal(t, "/manuscripts/m1/versions/v1/chunks", (*reqs)[0].Path)
	assert.Contains(t, out.String(), "#0 [0:12] ch 1 *")
}

func TestRunEditSuggest(t *testing.T) {
	payload := `{"data":{"id":"s1","base_version_id":"v1","target_range":{"start":4,"end":9},"context_used":2,
		"options":[{"id":"o1","label":"Tighter","severity":"light","after":"quick","position":0}]}}`
	srv, reqs := newTestServer(t, http.StatusCreated, payload)
	api := NewAPIClientWithConfig("", srv.URL)

	req := SuggestRequest{
		ManuscriptID: "m1",
		Instruction:  "tighten",
		TargetRange:  map[string]int{"start": 4, "end": 9},
		StylePrefs:   map[string]string{"tone": "dry"},
	}
	var out bytes.Buffer
	require.NoError(t, runEditSuggest(&out, api, req, false))

	body := (*reqs)[0].Body
	assert.Equal(t, "/edits/suggest", (*reqs)[0].Path)
	assert.Equal(t, map[string]interface{}{"start": float64(4), "end": float64(9)}, body["target_range"])
	assert.NotContains(t, body, "k")
	assert.Contains(t, out.String(), "Range: [4, 9)")
	assert.Contains(t, out.String(), "1. Tighter [light]")
	assert.Contains(t, out.String(), "Context chunks: 2")
}

func TestRunEditApply_Stale(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict, `{"error":"edit session was created against a version that is no longer current","code":"CONFLICT"}`)
	api := NewAPIClientWithConfig("", srv.URL)

	err := runEditApply(&bytes.Buffer{}, api, ApplyRequest{EditSessionID: "s1", OptionID: "o1"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer current")
}

func TestParsePrefs(t *testing.T) {
	prefs, err := parsePrefs([]string{"tone=dry", "pov=first person", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tone": "dry", "pov": "first person", "empty": ""}, prefs)

	_, err = parsePrefs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parsePrefs([]string{"=x"})
	assert.Error(t, err)
}

func TestParsePrefsYAML(t *testing.T) {
	prefs, err := parsePrefsYAML([]byte("tone: dry\nmax_sentence_words: 25\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tone": "dry", "max_sentence_words": "25"}, prefs)

	_, err = parsePrefsYAML([]byte("tone:\n  - a\n  - b\n"))
	assert.Error(t, err)

	_, err = parsePrefsYAML([]byte(""))
	assert.Error(t, err)
}

func TestRunStyleSetAndGet(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"data":{"prefs":{"tone":"dry","pov":"first"}}}`)
	api := NewAPIClientWithConfig("", srv.URL)

	var out bytes.Buffer
	require.NoError(t, runStyleSet(&out, api, "m1", map[string]string{"tone": "dry"}))
	assert.Equal(t, http.MethodPut, (*reqs)[0].Method)
	assert.Equal(t, "/manuscripts/m1/style-prefs", (*reqs)[0].Path)

	out.Reset()
	require.NoError(t, runStyleGet(&out, api, "m1", false))
	assert.Equal(t, "pov: first\ntone: dry\n", out.String())
}

func TestRunLocalDiff(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runLocalDiff(&out, "The cat sat.", "The dog sat.", 20, false))
	assert.Contains(t, out.String(), "The dog sat.")

	out.Reset()
	require.NoError(t, runLocalDiff(&out, "same\r\n", "same\n", 20, false))
	assert.Equal(t, "No changes.\n", out.String())
}

func TestRunLocalChunk(t *testing.T) {
	chunker := service.NewChunker(service.ChunkConfig{MaxTokensPerChunk: 20, OverlapTokens: 0}, nil)
	text := strings.Repeat("A sentence of moderate length. ", 20)

	var out bytes.Buffer
	require.NoError(t, runLocalChunk(&out, chunker, text, false))
	assert.Greater(t, strings.Count(out.String(), "#"), 1)

	out.Reset()
	require.NoError(t, runLocalChunk(&out, chunker, "   ", false))
	assert.Contains(t, out.String(), "No chunks")
}

func TestChunkCmd_OversizedOverlapIsCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("A sentence of moderate length. ", 20)), 0644))

	var out bytes.Buffer
	cmd := ChunkCmd()
	cmd.SetArgs([]string{path, "--max-tokens", "10", "--overlap", "10"})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Execute())
	assert.Greater(t, strings.Count(out.String(), "#"), 1)
}

func TestAuthLoginAndStatus(t *testing.T) {
	useTempConfig(t)
	t.Setenv(envAPIToken, "")
	t.Setenv(envAPIURL, "")

	var out bytes.Buffer
	require.NoError(t, runAuthLogin(&out, strings.NewReader("abcdefghijklmnop\n"), "", "http://srv:1"))
	assert.Contains(t, out.String(), "Successfully logged in")

	source, token, url := GetCredentialSource("", "")
	out.Reset()
	require.NoError(t, printAuthStatus(&out, false, source, token, url))
	assert.Contains(t, out.String(), "Source: global_config")
	assert.Contains(t, out.String(), "abcd...mnop")
	assert.NotContains(t, out.String(), "abcdefghijklmnop")

	err := runAuthLogin(&out, strings.NewReader("\n"), "", "")
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "0123...cdef", maskToken("0123456789abcdef"))
}
