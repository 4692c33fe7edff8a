package handlers

import (
	"context"
	"net/http"

	"github.com/carepath-labs/skillverify/internal/api"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
)

type StatsDocumentService interface {
	Stats(ctx context.Context) (*repository.StatusCounts, error)
}

type VectorIndexStats interface {
	Stats(ctx context.Context) (*vectorindex.Stats, error)
}

type StaticCorpusInfo interface {
	Size() int
}

type StatsHandler struct {
	docs   StatsDocumentService
	index  VectorIndexStats
	corpus StaticCorpusInfo
}

func NewStatsHandler(docs StatsDocumentService, index VectorIndexStats, corpus StaticCorpusInfo) *StatsHandler {
	return &StatsHandler{docs: docs, index: index, corpus: corpus}
}

type StatsResponse struct {
	Documents    *repository.StatusCounts `json:"documents"`
	Index        *vectorindex.Stats       `json:"index,omitempty"`
	IndexError   string                   `json:"index_error,omitempty"`
	StaticCorpus int                      `json:"static_corpus_documents"`
}

// Get aggregates document counts, index fullness and the static corpus size.
// An unreachable index degrades to a partial response rather than a 5xx.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	counts, err := h.docs.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &StatsResponse{
		Documents:    counts,
		StaticCorpus: h.corpus.Size(),
	}

	if indexStats, err := h.index.Stats(r.Context()); err != nil {
		resp.IndexError = err.Error()
	} else {
		resp.Index = indexStats
	}

	api.Success(w, http.StatusOK, resp)
}

// Healthz is the liveness probe.
func Healthz(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
