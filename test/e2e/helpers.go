//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/inkwell/internal/api/handlers"
	"github.com/cloo-solutions/inkwell/internal/jobs"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/repository"
	"github.com/cloo-solutions/inkwell/internal/server"
	"github.com/cloo-solutions/inkwell/internal/service"
	"github.com/cloo-solutions/inkwell/internal/storage"
	"github.com/cloo-solutions/inkwell/internal/testutil"
)

const (
	testAPIToken   = "e2e-token-0123456789"
	embeddingDims  = 1536
	testBucketName = "test-snapshots"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	IndexWorker  *jobs.IndexWorker
	Generator    *scriptedGenerator
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          testBucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Generator:  &scriptedGenerator{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// RunIndexJobs drains pending index jobs synchronously.
func (e *E2ETestEnv) RunIndexJobs() {
	for {
		more, err := e.IndexWorker.ProcessJobs(e.Ctx)
		if err != nil {
			e.T.Fatalf("failed to process index jobs: %v", err)
		}
		if !more {
			return
		}
	}
}

// BuildBinaries builds the inkwell and inkwelld binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "inkwell-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"inkwelld", "inkwell"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunInkwell runs the inkwell CLI against the test server
func (e *E2ETestEnv) RunInkwell(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "inkwell"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("INKWELL_API_TOKEN=%s", testAPIToken),
		fmt.Sprintf("INKWELL_API_URL=%s", e.ServerURL),
		// keep the developer's own ~/.config/inkwell out of the run
		fmt.Sprintf("XDG_CONFIG_HOME=%s", workDir),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs an authenticated GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, testAPIToken)
}

// Post performs an authenticated POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, testAPIToken)
}

// Put performs an authenticated PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body, testAPIToken)
}

// Delete performs an authenticated DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, testAPIToken)
}

// GetWithToken performs a GET request with an explicit token
func (e *E2ETestEnv) GetWithToken(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, token)
}

// Decode performs an authenticated request and decodes its data into out.
func (e *E2ETestEnv) Decode(method, path string, body, out interface{}) {
	e.T.Helper()
	resp, err := e.doRequest(method, path, body, testAPIToken)
	if err != nil {
		e.T.Fatalf("%s %s: %v", method, path, err)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		e.T.Fatalf("%s %s: failed to decode response: %v", method, path, err)
	}
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return &apiResp, nil
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, apiResp.Code, apiResp.Error)
	}

	return &apiResp, nil
}

// DownloadFile downloads a file from a presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	log := logger.NewNop()

	manuscriptRepo := repository.NewManuscriptRepository(e.Pool)
	versionRepo := repository.NewVersionRepository(e.Pool)
	editRepo := repository.NewEditRepository(e.Pool)
	chunkRepo := repository.NewChunkRepository(e.Pool)
	indexJobRepo := repository.NewIndexJobRepository(e.Pool)
	stylePrefRepo := repository.NewStylePrefRepository(e.Pool)
	txRunner := repository.NewTxRunner(e.Pool)

	embedder := hashEmbedder{}
	chunking := service.ChunkConfig{MaxTokensPerChunk: 60, OverlapTokens: 10}
	counter := service.EstimateTokenCounter{}
	diff := service.NewDiffEngine(service.DefaultDiffTimeout)

	versions := service.NewVersionService(txRunner, editRepo, e.S3Client, log)
	manuscripts := service.NewManuscriptService(service.ManuscriptDeps{
		Manuscripts: manuscriptRepo,
		Versions:    versionRepo,
		Chunks:      chunkRepo,
		IndexJobs:   indexJobRepo,
		StylePrefs:  stylePrefRepo,
		Snapshots:   e.S3Client,
	})
	suggestions := service.NewSuggestionService(service.SuggestionDeps{
		Manuscripts: manuscriptRepo,
		Versions:    versionRepo,
		Edits:       editRepo,
		StylePrefs:  stylePrefRepo,
		Retriever:   service.NewRetrievalService(embedder, chunkRepo),
		Generator:   e.Generator,
		TxRunner:    txRunner,
		Diff:        diff,
		Logger:      log,
	}, service.DefaultSuggestionConfig())
	indexing := service.NewIndexingService(versionRepo, txRunner, embedder,
		service.NewChunker(chunking, counter),
		service.IndexingConfig{BatchSize: 8, Concurrency: 2, Retry: service.DefaultRetryConfig()},
		log,
	)
	e.IndexWorker = jobs.NewIndexWorker(indexJobRepo, indexing, log)

	router := server.NewRouter(server.RouterConfig{
		APIToken:          testAPIToken,
		Logger:            log,
		ManuscriptHandler: handlers.NewManuscriptHandler(manuscripts, versions),
		EditHandler:       handlers.NewEditHandler(suggestions, versions),
		PreviewHandler:    handlers.NewPreviewHandler(diff, counter, chunking),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder maps each word to a fixed dimension so texts sharing words
// land close together.
type hashEmbedder struct{}

func (h hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(strings.Trim(w, ".,;:!?\"'")))
		vec[f.Sum32()%embeddingDims]++
	}
	// pgvector rejects zero vectors for cosine distance
	vec[0] += 0.01
	return vec, nil
}

func (h hashEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedGenerator returns the configured options and records prompts.
type scriptedGenerator struct {
	mu       sync.Mutex
	options  []service.GeneratedOption
	requests []service.GenerationRequest
}

func (g *scriptedGenerator) Script(opts ...service.GeneratedOption) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.options = opts
}

func (g *scriptedGenerator) LastRequest() service.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return service.GenerationRequest{}
	}
	return g.requests[len(g.requests)-1]
}

func (g *scriptedGenerator) Generate(ctx context.Context, req service.GenerationRequest) ([]service.GeneratedOption, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	out := make([]service.GeneratedOption, len(g.options))
	copy(out, g.options)
	return out, nil
}
