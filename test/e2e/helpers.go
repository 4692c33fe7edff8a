//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/carepath-labs/skillverify/internal/api/handlers"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/server"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/testutil"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	testAPIKey = "e2e-api-key"

	// Small dimension keeps the deterministic embedder cheap.
	testDimension = 8
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv starts a pgvector container, runs migrations and boots the
// full API server in-process with a deterministic embedder and verdict
// model so tests need no external provider.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(ctx, t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

func startServer(ctx context.Context, t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	index := vectorindex.New(pool, vectorindex.Config{
		Dimension:    testDimension,
		ReadyRetries: 3,
		ReadyDelay:   time.Second,
	})
	if err := index.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize vector index: %v", err)
	}

	corpus, err := service.LoadStaticCorpus()
	if err != nil {
		t.Fatalf("failed to load static corpus: %v", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	repo := repository.NewDocumentRepository(pool)
	embedder := &wordHashEmbedder{dimensions: testDimension}
	pipeline := service.NewEmbeddingPipeline(embedder, index, repo, m)
	docs := service.NewDocumentService(repo, pipeline, m)

	// Word-hash vectors score lower than real embeddings for related text,
	// so the retrieval threshold is relaxed.
	combiner := service.NewRetrievalCombiner(embedder, index, corpus, service.RetrievalConfig{
		TopK:     5,
		MinScore: 0.2,
	}, m)

	enricher := service.NewPerformanceEnricher()
	engine := service.NewVerificationEngine(combiner, &cannedVerdictModel{}, enricher, 30*time.Second, m)

	routerCfg := server.RouterConfig{
		APIKey:          testAPIKey,
		DocumentHandler: handlers.NewDocumentHandler(docs),
		VerifyHandler:   handlers.NewVerifyHandler(engine, combiner),
		StatsHandler:    handlers.NewStatsHandler(docs, index, corpus),
		Registry:        registry,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
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

// wordHashEmbedder maps words onto hashed axes so texts sharing vocabulary
// land near each other. Good enough to drive the retrieval pipeline
// end-to-end without a real provider.
type wordHashEmbedder struct {
	dimensions int
}

func (e *wordHashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) <= 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// cannedVerdictModel returns a fixed well-formed verdict so E2E tests
// exercise the full grading path deterministically.
type cannedVerdictModel struct{}

func (m *cannedVerdictModel) Complete(ctx context.Context, prompt string) (string, error) {
	return `{
		"is_correct": true,
		"score": 88,
		"feedback": "Solid technique with room to refine lathering time.",
		"critical_errors": [],
		"minor_issues": ["Rushed the final rinse"],
		"suggestions": ["Count to twenty while lathering"],
		"confidence": 0.9,
		"assessment_details": {
			"safety_compliance": 90,
			"technical_accuracy": 88,
			"supply_usage": 92,
			"timing": 82,
			"sequence": 90,
			"professionalism": 88
		}
	}`, nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, apiKey string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, apiKey)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, apiKey string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, apiKey)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, apiKey string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, apiKey)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, apiKey string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, apiKey)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, apiKey string) (*APIResponse, error) {
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

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
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

	if len(respBody) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}
