package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carepath-labs/skillverify/internal/api/handlers"
	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerificationService returns a fixed verdict
type stubVerificationService struct {
	result *domain.VerificationResult
}

func (s *stubVerificationService) VerifyStep(ctx context.Context, event *domain.StepPerformanceEvent) *domain.VerificationResult {
	return s.result
}

// stubRetrievalService returns a fixed retrieval result
type stubRetrievalService struct {
	result *service.RetrievalResult
}

func (s *stubRetrievalService) Retrieve(ctx context.Context, query, skillID string, topK int) *service.RetrievalResult {
	return s.result
}

// stubDocumentService serves a single document
type stubDocumentService struct {
	doc *domain.KnowledgeDocument
}

func (s *stubDocumentService) Create(ctx context.Context, input service.CreateDocumentInput) (*domain.KnowledgeDocument, error) {
	return s.doc, nil
}

func (s *stubDocumentService) Get(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, domain.ErrDocumentNotFound
	}
	return s.doc, nil
}

func (s *stubDocumentService) ListBySkill(ctx context.Context, skillID string) ([]*domain.KnowledgeDocument, error) {
	return []*domain.KnowledgeDocument{s.doc}, nil
}

func (s *stubDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	return &service.ListDocumentsOutput{Items: []*domain.KnowledgeDocument{s.doc}}, nil
}

func (s *stubDocumentService) Search(ctx context.Context, query string, limit int) ([]*domain.KnowledgeDocument, error) {
	return []*domain.KnowledgeDocument{s.doc}, nil
}

func (s *stubDocumentService) Update(ctx context.Context, input service.UpdateDocumentInput) (*domain.KnowledgeDocument, error) {
	return s.doc, nil
}

func (s *stubDocumentService) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *stubDocumentService) RefreshEmbeddings(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	return s.doc, nil
}

func (s *stubDocumentService) Stats(ctx context.Context) (*repository.StatusCounts, error) {
	return &repository.StatusCounts{Total: 1}, nil
}

// stubIndexStats reports a fixed vector count
type stubIndexStats struct{}

func (s *stubIndexStats) Stats(ctx context.Context) (*vectorindex.Stats, error) {
	return &vectorindex.Stats{VectorCount: 7, Dimension: 1536}, nil
}

// stubCorpus reports a fixed size
type stubCorpus struct{}

func (s *stubCorpus) Size() int { return 12 }

func testRouter(apiKey string) http.Handler {
	doc := &domain.KnowledgeDocument{
		ID:      "doc-1",
		Title:   "Hand Hygiene Basics",
		Content: "Wash hands with soap.",
		SkillID: "hand-hygiene",
	}
	docSvc := &stubDocumentService{doc: doc}

	return NewRouter(RouterConfig{
		APIKey:          apiKey,
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		VerifyHandler: handlers.NewVerifyHandler(
			&stubVerificationService{result: &domain.VerificationResult{IsCorrect: true, Score: 85, Feedback: "Well done."}},
			&stubRetrievalService{result: &service.RetrievalResult{Items: []domain.RetrievedKnowledgeItem{}}},
		),
		StatsHandler: handlers.NewStatsHandler(docSvc, &stubIndexStats{}, &stubCorpus{}),
		Registry:     prometheus.NewRegistry(),
	})
}

func TestRouter_HealthIsOpen(t *testing.T) {
	router := testRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsIsOpen(t *testing.T) {
	router := testRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	router := testRouter("secret-key")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/documents"},
		{http.MethodGet, "/documents/doc-1"},
		{http.MethodGet, "/documents/skill/hand-hygiene"},
		{http.MethodPost, "/documents/doc-1/embeddings"},
		{http.MethodPost, "/verify/step"},
		{http.MethodGet, "/retrieve?q=soap"},
		{http.MethodGet, "/stats"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_AuthorizedFlow(t *testing.T) {
	router := testRouter("secret-key")

	t.Run("get document", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Hand Hygiene Basics")
	})

	t.Run("verify step", func(t *testing.T) {
		body, _ := json.Marshal(handlers.VerifyStepRequest{
			SkillID:    "hand-hygiene",
			StepID:     "lather-20sec",
			UserAction: "lathered hands",
			Timing:     24,
		})
		req := httptest.NewRequest(http.MethodPost, "/verify/step", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data domain.VerificationResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Data.IsCorrect)
	})

	t.Run("stats", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "static_corpus_documents")
	})
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := testRouter("")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_BodyLimit(t *testing.T) {
	router := testRouter("")

	req := httptest.NewRequest(http.MethodPost, "/verify/step", bytes.NewReader([]byte("{}")))
	req.ContentLength = 10 * 1024 * 1024
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
