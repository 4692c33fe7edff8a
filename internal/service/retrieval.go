package service

import (
	"context"
	"log"
	"sort"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/telemetry"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
)

const (
	// staticHardcodedSourceType marks vectors that mirror the bundled
	// corpus; they are excluded from dynamic retrieval so the priority
	// policy stays meaningful.
	staticHardcodedSourceType = "static-hardcoded"

	defaultTopK     = 5
	defaultMinScore = 0.7
)

// VectorQuerier is the slice of the vector index retrieval reads from.
type VectorQuerier interface {
	Query(ctx context.Context, embedding []float32, filter vectorindex.QueryFilter, topK int, minScore float64) ([]vectorindex.Match, error)
}

// RetrievalConfig tunes the combiner. MinScore defaults to 0.7, an
// empirical threshold kept configurable for calibration.
type RetrievalConfig struct {
	TopK     int
	MinScore float64
}

// RetrievalResult is the merged, ranked knowledge list.
type RetrievalResult struct {
	Items             []domain.RetrievedKnowledgeItem `json:"items"`
	HasDynamicContent bool                            `json:"has_dynamic_content"`
	HasStaticFallback bool                            `json:"has_static_fallback"`
}

// RetrievalCombiner merges vector-searched dynamic knowledge with the
// bundled static corpus under an explicit priority policy: dynamic items
// always rank ahead of static ones regardless of score.
type RetrievalCombiner struct {
	embedder EmbeddingClient
	index    VectorQuerier
	corpus   *StaticCorpus
	cfg      RetrievalConfig
	metrics  *metrics.Metrics
}

// NewRetrievalCombiner creates a RetrievalCombiner instance.
func NewRetrievalCombiner(embedder EmbeddingClient, index VectorQuerier, corpus *StaticCorpus, cfg RetrievalConfig, m *metrics.Metrics) *RetrievalCombiner {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	return &RetrievalCombiner{
		embedder: embedder,
		index:    index,
		corpus:   corpus,
		cfg:      cfg,
		metrics:  m,
	}
}

// Retrieve returns up to topK ranked knowledge items for the query. It
// never fails: a vector-query error degrades to static-only retrieval.
// Pass topK <= 0 to use the configured default.
func (c *RetrievalCombiner) Retrieve(ctx context.Context, query, skillID string, topK int) *RetrievalResult {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalCombiner.Retrieve", telemetry.SpanAttributes{
		SkillID:   skillID,
		Operation: "retrieve",
	})
	defer span.End()

	if topK <= 0 {
		topK = c.cfg.TopK
	}

	dynamic := c.queryDynamic(ctx, query, skillID, topK)

	items := make([]domain.RetrievedKnowledgeItem, 0, topK)
	items = append(items, dynamic...)

	needed := topK - len(dynamic)
	var static []domain.RetrievedKnowledgeItem
	if needed > 0 {
		static = c.corpus.Rank(query, skillID, needed)
		items = append(items, static...)
	}

	// Priority ascending, score descending within each priority group.
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Priority != items[b].Priority {
			return items[a].Priority < items[b].Priority
		}
		return items[a].Score > items[b].Score
	})

	return &RetrievalResult{
		Items:             items,
		HasDynamicContent: len(dynamic) > 0,
		HasStaticFallback: len(static) > 0,
	}
}

// queryDynamic embeds the query and searches the vector index. Any failure
// is absorbed as zero dynamic results.
func (c *RetrievalCombiner) queryDynamic(ctx context.Context, query, skillID string, topK int) []domain.RetrievedKnowledgeItem {
	embedding, err := c.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		c.degrade(ctx, domain.NewRetrievalError(err))
		return nil
	}

	matches, err := c.index.Query(ctx, embedding, vectorindex.QueryFilter{
		SkillID:           skillID,
		ExcludeSourceType: staticHardcodedSourceType,
	}, topK, c.cfg.MinScore)
	if err != nil {
		c.degrade(ctx, domain.NewRetrievalError(err))
		return nil
	}

	items := make([]domain.RetrievedKnowledgeItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, domain.RetrievedKnowledgeItem{
			Content:     m.Content,
			Score:       m.Score,
			SkillID:     m.SkillID,
			Source:      m.Source,
			Criticality: domain.Criticality(m.Criticality),
			Tags:        m.Tags,
			SourceType:  domain.SourceTypeDynamic,
			Priority:    domain.PriorityDynamic,
		})
	}
	return items
}

func (c *RetrievalCombiner) degrade(ctx context.Context, err error) {
	log.Printf("retrieval degraded to static corpus: %v", err)
	telemetry.CaptureError(ctx, err)
	if c.metrics != nil {
		c.metrics.DegradedRetrievals.Inc()
	}
}
