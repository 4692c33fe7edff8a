package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the slice of the vector index the pipeline writes through.
type VectorStore interface {
	Upsert(ctx context.Context, vectors []vectorindex.Vector) error
	DeleteByFilter(ctx context.Context, filter vectorindex.DeleteFilter) (int64, error)
}

// EmbeddingStateRepository records embedding outcomes on documents.
type EmbeddingStateRepository interface {
	UpdateEmbeddingState(ctx context.Context, id string, status domain.EmbeddingStatus, refs []domain.EmbeddingRef) error
}

// IngestRecord is one pre-chunked entry of a bulk corpus load.
type IngestRecord struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	SkillID     string            `json:"skill_id"`
	Source      string            `json:"source"`
	Criticality string            `json:"criticality"`
	Tags        []string          `json:"tags"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Metadata    map[string]string `json:"metadata"`
}

// BatchIngestOptions tunes the throttled bulk load.
type BatchIngestOptions struct {
	BatchSize  int
	ItemDelay  time.Duration
	BatchDelay time.Duration
	Namespace  string
}

// IngestReport summarizes one bulk load.
type IngestReport struct {
	Total     int
	Succeeded int
	Skipped   int
	Batches   int
}

// EmbeddingPipeline owns the embedding lifecycle of documents: chunking,
// embedding, vector upserts and the chunk-to-vector bookkeeping.
type EmbeddingPipeline struct {
	client   EmbeddingClient
	vectors  VectorStore
	repo     EmbeddingStateRepository
	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
	metrics  *metrics.Metrics

	// sleep is replaceable in tests so throttling can be observed without
	// waiting.
	sleep func(ctx context.Context, d time.Duration)
}

// NewEmbeddingPipeline creates an EmbeddingPipeline instance.
func NewEmbeddingPipeline(client EmbeddingClient, vectors VectorStore, repo EmbeddingStateRepository, m *metrics.Metrics) *EmbeddingPipeline {
	return &EmbeddingPipeline{
		client:   client,
		vectors:  vectors,
		repo:     repo,
		uuidGen:  &DefaultUUIDGenerator{},
		chunkCfg: DefaultChunkConfig(),
		metrics:  m,
		sleep:    sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// CreateEmbeddingsForDocument chunks, embeds and upserts a document's
// content, replacing any vectors from an earlier pass. On any failure the
// document is marked failed and the error is returned; the caller's batch
// is expected to survive.
func (p *EmbeddingPipeline) CreateEmbeddingsForDocument(ctx context.Context, doc *domain.KnowledgeDocument) error {
	if err := p.repo.UpdateEmbeddingState(ctx, doc.ID, domain.EmbeddingStatusProcessing, nil); err != nil {
		return err
	}

	refs, err := p.embedDocument(ctx, doc)
	if err != nil {
		if p.metrics != nil {
			p.metrics.EmbeddingFailures.Inc()
		}
		if stateErr := p.repo.UpdateEmbeddingState(ctx, doc.ID, domain.EmbeddingStatusFailed, nil); stateErr != nil {
			log.Printf("failed to mark document %s embedding as failed: %v", doc.ID, stateErr)
		}
		doc.EmbeddingStatus = domain.EmbeddingStatusFailed
		doc.EmbeddingRefs = nil
		return domain.NewEmbeddingError(doc.ID, err)
	}

	if err := p.repo.UpdateEmbeddingState(ctx, doc.ID, domain.EmbeddingStatusCompleted, refs); err != nil {
		return err
	}
	doc.EmbeddingStatus = domain.EmbeddingStatusCompleted
	doc.EmbeddingRefs = refs
	return nil
}

func (p *EmbeddingPipeline) embedDocument(ctx context.Context, doc *domain.KnowledgeDocument) ([]domain.EmbeddingRef, error) {
	chunks := chunkText(doc.Content, p.chunkCfg)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no embeddable content", doc.ID)
	}

	vectors := make([]vectorindex.Vector, 0, len(chunks))
	refs := make([]domain.EmbeddingRef, 0, len(chunks))

	for i, chunk := range chunks {
		embedding, err := p.client.GenerateEmbedding(ctx, buildChunkEmbeddingText(doc.Title, chunk))
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}

		chunkID := p.uuidGen.NewString()
		// Deterministic vector ids make the upsert idempotent per chunk slot.
		vectorID := fmt.Sprintf("%s-%d", doc.ID, i)

		vectors = append(vectors, vectorindex.Vector{
			ID:          vectorID,
			Namespace:   vectorindex.DefaultNamespace,
			DocumentID:  doc.ID,
			ChunkID:     chunkID,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			SkillID:     doc.SkillID,
			Source:      doc.Source,
			SourceType:  string(domain.SourceTypeDynamic),
			Criticality: string(doc.Criticality),
			Tags:        doc.Tags,
			Content:     chunk,
			Embedding:   embedding,
		})
		refs = append(refs, domain.EmbeddingRef{
			ChunkID:    chunkID,
			VectorID:   vectorID,
			ChunkIndex: i,
		})
	}

	// Re-embedding replaces rather than mutates: old vectors go first so a
	// shorter document cannot leave stale trailing chunks behind.
	if _, err := p.vectors.DeleteByFilter(ctx, vectorindex.DeleteFilter{DocumentID: doc.ID}); err != nil {
		return nil, fmt.Errorf("failed to clear previous vectors: %w", err)
	}

	if err := p.vectors.Upsert(ctx, vectors); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	if p.metrics != nil {
		p.metrics.EmbeddingsGenerated.Add(float64(len(vectors)))
	}
	return refs, nil
}

// UpdateEmbeddingsForDocument re-embeds only when title or content changed
// between versions; a metadata-only update is a no-op.
func (p *EmbeddingPipeline) UpdateEmbeddingsForDocument(ctx context.Context, updated, previous *domain.KnowledgeDocument) error {
	if !domain.NeedsReembedding(previous, updated) {
		return nil
	}
	return p.CreateEmbeddingsForDocument(ctx, updated)
}

// DeleteEmbeddingsForDocument removes every vector tagged with the document id.
func (p *EmbeddingPipeline) DeleteEmbeddingsForDocument(ctx context.Context, doc *domain.KnowledgeDocument) error {
	deleted, err := p.vectors.DeleteByFilter(ctx, vectorindex.DeleteFilter{DocumentID: doc.ID})
	if err != nil {
		return fmt.Errorf("failed to delete vectors for document %s: %w", doc.ID, err)
	}
	if deleted > 0 {
		log.Printf("deleted %d vectors for document %s", deleted, doc.ID)
	}
	return nil
}

// BatchIngest streams pre-chunked records into the vector index with
// deliberate throttling: a fixed delay per item and a larger delay between
// batches. The delays are backpressure against provider rate limits and
// must not be removed. Per-record failures are logged and skipped; the
// load aborts only when the surrounding initialization already failed.
func (p *EmbeddingPipeline) BatchIngest(ctx context.Context, records []IngestRecord, opts BatchIngestOptions) (*IngestReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}

	report := &IngestReport{Total: len(records)}

	for start := 0; start < len(records); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		report.Batches++

		vectors := make([]vectorindex.Vector, 0, len(batch))
		for _, rec := range batch {
			if rec.Content == "" || rec.ID == "" {
				log.Printf("skipping ingest record %q: missing id or content", rec.ID)
				report.Skipped++
				continue
			}

			embedding, err := p.client.GenerateEmbedding(ctx, rec.Content)
			if err != nil {
				log.Printf("skipping ingest record %s: embedding failed: %v", rec.ID, err)
				report.Skipped++
				p.sleep(ctx, opts.ItemDelay)
				continue
			}

			vectors = append(vectors, vectorindex.Vector{
				ID:          rec.ID,
				Namespace:   opts.Namespace,
				DocumentID:  rec.ID,
				ChunkID:     rec.ID,
				ChunkIndex:  rec.ChunkIndex,
				TotalChunks: rec.TotalChunks,
				SkillID:     rec.SkillID,
				Source:      rec.Source,
				SourceType:  string(domain.SourceTypeDynamic),
				Criticality: rec.Criticality,
				Tags:        rec.Tags,
				Content:     rec.Content,
				Embedding:   embedding,
			})
			p.sleep(ctx, opts.ItemDelay)
		}

		if len(vectors) > 0 {
			if err := p.vectors.Upsert(ctx, vectors); err != nil {
				log.Printf("skipping batch of %d records: upsert failed: %v", len(vectors), err)
				report.Skipped += len(vectors)
			} else {
				report.Succeeded += len(vectors)
				if p.metrics != nil {
					p.metrics.DocumentsIngested.Add(float64(len(vectors)))
				}
			}
		}

		if end < len(records) {
			p.sleep(ctx, opts.BatchDelay)
		}
	}

	return report, nil
}
