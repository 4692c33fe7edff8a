package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
)

// SnapshotStore is the object store that holds corpus snapshots.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, data []byte) error
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
}

// snapshotDocument is the portable form of a document in a snapshot. The
// embedding state deliberately stays out: vectors are rebuilt on import.
type snapshotDocument struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	SkillID     string   `json:"skill_id"`
	Category    string   `json:"category"`
	Source      string   `json:"source"`
	Criticality string   `json:"criticality"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

// corpusSnapshot is the on-disk snapshot format.
type corpusSnapshot struct {
	ExportedAt time.Time          `json:"exported_at"`
	Documents  []snapshotDocument `json:"documents"`
}

// SnapshotService exports the document corpus to object storage and imports
// it back, rebuilding embeddings through the normal create path.
type SnapshotService struct {
	docs  *DocumentService
	repo  DocumentRepositoryInterface
	store SnapshotStore
	now   func() time.Time
}

// NewSnapshotService creates a SnapshotService instance.
func NewSnapshotService(docs *DocumentService, repo DocumentRepositoryInterface, store SnapshotStore) *SnapshotService {
	return &SnapshotService{
		docs:  docs,
		repo:  repo,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Export writes all non-archived documents to the store under key and
// returns the number of documents exported.
func (s *SnapshotService) Export(ctx context.Context, key string) (int, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	snapshot := corpusSnapshot{
		ExportedAt: s.now(),
		Documents:  make([]snapshotDocument, 0, len(active)),
	}
	for _, doc := range active {
		snapshot.Documents = append(snapshot.Documents, snapshotDocument{
			Title:       doc.Title,
			Content:     doc.Content,
			SkillID:     doc.SkillID,
			Category:    doc.Category,
			Source:      doc.Source,
			Criticality: string(doc.Criticality),
			Tags:        doc.Tags,
			Status:      string(doc.Status),
		})
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.store.PutSnapshot(ctx, key, data); err != nil {
		return 0, err
	}
	return len(snapshot.Documents), nil
}

// Import reads a snapshot from the store and creates each document through
// the normal create path, so every imported document is validated and
// embedded. Per-document failures are counted, not fatal.
func (s *SnapshotService) Import(ctx context.Context, key string) (created, failed int, err error) {
	data, err := s.store.GetSnapshot(ctx, key)
	if err != nil {
		return 0, 0, err
	}

	var snapshot corpusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, 0, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	for _, entry := range snapshot.Documents {
		if ctx.Err() != nil {
			return created, failed, ctx.Err()
		}
		_, createErr := s.docs.Create(ctx, CreateDocumentInput{
			Title:       entry.Title,
			Content:     entry.Content,
			SkillID:     entry.SkillID,
			Category:    entry.Category,
			Source:      entry.Source,
			Criticality: domain.Criticality(entry.Criticality),
			Tags:        entry.Tags,
			Status:      domain.DocumentStatus(entry.Status),
		})
		if createErr != nil {
			failed++
			continue
		}
		created++
	}
	return created, failed, nil
}
