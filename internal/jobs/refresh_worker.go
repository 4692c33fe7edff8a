package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/carepath-labs/skillverify/internal/domain"
)

const (
	// refreshBatchLimit bounds how many documents one pass reconciles.
	refreshBatchLimit = 50
)

// RefreshRepository lists documents whose embeddings need reconciling.
type RefreshRepository interface {
	ListForRefresh(ctx context.Context, limit int) ([]*domain.KnowledgeDocument, error)
}

// DocumentEmbedder re-embeds one document.
type DocumentEmbedder interface {
	CreateEmbeddingsForDocument(ctx context.Context, doc *domain.KnowledgeDocument) error
}

// RefreshWorker reconciles documents left in pending or failed embedding
// state, typically after an embedding-provider outage during create or
// update. Each pass picks up a bounded batch, oldest first.
type RefreshWorker struct {
	repo     RefreshRepository
	embedder DocumentEmbedder
}

// NewRefreshWorker creates a new RefreshWorker instance
func NewRefreshWorker(repo RefreshRepository, embedder DocumentEmbedder) *RefreshWorker {
	return &RefreshWorker{
		repo:     repo,
		embedder: embedder,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RefreshWorker) ProcessJobs(ctx context.Context) error {
	docs, err := w.repo.ListForRefresh(ctx, refreshBatchLimit)
	if err != nil {
		return fmt.Errorf("failed to list documents for refresh: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Reconciling embeddings for %d documents", len(docs))

	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.embedder.CreateEmbeddingsForDocument(ctx, doc); err != nil {
			// The pipeline already marked the document failed; the next
			// pass will pick it up again.
			log.Printf("Embedding refresh failed for document %s: %v", doc.ID, err)
			continue
		}
		log.Printf("Embeddings refreshed for document %s", doc.ID)
	}

	return nil
}
