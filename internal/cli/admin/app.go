package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/carepath-labs/skillverify/internal/database"
	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/openai"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the wired core of the engine, shared by the admin commands.
type app struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	index    *vectorindex.Index
	repo     *repository.DocumentRepository
	corpus   *service.StaticCorpus
	embedder service.EmbeddingClient
	pipeline *service.EmbeddingPipeline
	docs     *service.DocumentService
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

// buildApp wires the persistence and embedding stack. The vector index must
// come up before anything else; failing that is a configuration error and
// the process should not start.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	index := vectorindex.New(pool, vectorindex.Config{
		Dimension:    cfg.EmbeddingDimensions,
		ReadyRetries: cfg.IndexReadyRetries,
		ReadyDelay:   cfg.IndexReadyDelay,
	})
	if err := index.Initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	corpus, err := service.LoadStaticCorpus()
	if err != nil {
		pool.Close()
		return nil, domain.NewConfigurationError("failed to load static corpus", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	repo := repository.NewDocumentRepository(pool)

	var embeddingClient service.EmbeddingClient
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      openaiEmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
	} else {
		log.Println("no OpenAI API key configured: embeddings disabled, retrieval will use the static corpus")
		embeddingClient = &unconfiguredEmbeddingClient{}
	}

	pipeline := service.NewEmbeddingPipeline(embeddingClient, index, repo, m)
	docs := service.NewDocumentService(repo, pipeline, m)

	return &app{
		cfg:      cfg,
		pool:     pool,
		index:    index,
		repo:     repo,
		corpus:   corpus,
		embedder: embeddingClient,
		pipeline: pipeline,
		docs:     docs,
		metrics:  m,
		registry: registry,
	}, nil
}

func openaiEmbeddingModel(name string) goopenai.EmbeddingModel {
	if name == "" {
		return goopenai.AdaEmbeddingV2
	}
	return goopenai.EmbeddingModel(name)
}

func (a *app) close() {
	a.pool.Close()
}

// unconfiguredEmbeddingClient stands in when no provider key is configured.
// Every call fails, which the pipeline records as a failed embedding and the
// retrieval combiner absorbs by degrading to the static corpus.
type unconfiguredEmbeddingClient struct{}

func (c *unconfiguredEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewConfigurationError("no embedding provider configured", nil)
}
