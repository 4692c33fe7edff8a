//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/pagination"
	"github.com/carepath-labs/skillverify/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(skillID string) *domain.KnowledgeDocument {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.KnowledgeDocument{
		ID:              uuid.NewString(),
		Title:           "Hand Hygiene Basics",
		Content:         "Wash hands with soap and warm water for at least 20 seconds.",
		SkillID:         skillID,
		Category:        "infection-control",
		Source:          "CDC Guidelines",
		Criticality:     domain.CriticalityHigh,
		Tags:            []string{"infection-control", "soap"},
		Status:          domain.DocumentStatusPublished,
		EmbeddingStatus: domain.EmbeddingStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func setupRepo(ctx context.Context, t *testing.T) (*DocumentRepository, func()) {
	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	cleanup := func() {
		pool.Close()
		pc.Terminate(ctx)
	}
	return NewDocumentRepository(pool), cleanup
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	doc := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, doc))

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, doc.Title, retrieved.Title)
	assert.Equal(t, doc.SkillID, retrieved.SkillID)
	assert.Equal(t, doc.Criticality, retrieved.Criticality)
	assert.Equal(t, doc.Tags, retrieved.Tags)
	assert.Equal(t, int64(1), retrieved.Version)
	assert.Empty(t, retrieved.EmbeddingRefs)
}

func TestDocumentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	doc := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, doc))

	doc.Title = "Hand Hygiene Fundamentals"
	doc.Version = 2
	require.NoError(t, repo.Update(ctx, doc))

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hand Hygiene Fundamentals", retrieved.Title)
	assert.Equal(t, int64(2), retrieved.Version)

	t.Run("updating a missing document fails", func(t *testing.T) {
		missing := newTestDocument("hand-hygiene")
		assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrDocumentNotFound)
	})
}

func TestDocumentRepository_UpdateEmbeddingState(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	doc := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, doc))

	refs := []domain.EmbeddingRef{
		{ChunkID: uuid.NewString(), VectorID: doc.ID + "-0", ChunkIndex: 0},
	}
	require.NoError(t, repo.UpdateEmbeddingState(ctx, doc.ID, domain.EmbeddingStatusCompleted, refs))

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingStatusCompleted, retrieved.EmbeddingStatus)
	require.Len(t, retrieved.EmbeddingRefs, 1)
	assert.Equal(t, doc.ID+"-0", retrieved.EmbeddingRefs[0].VectorID)
	// Editorial fields stay put.
	assert.Equal(t, doc.Title, retrieved.Title)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	doc := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, doc))

	require.NoError(t, repo.Delete(ctx, doc.ID))

	_, err := repo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, doc.ID), domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListBySkill(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newTestDocument("hand-hygiene")))
	}
	require.NoError(t, repo.Create(ctx, newTestDocument("vital-signs")))

	docs, err := repo.ListBySkill(ctx, "hand-hygiene")
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDocumentRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		doc := newTestDocument("hand-hygiene")
		doc.UpdatedAt = doc.UpdatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, doc))
	}

	page1, err := repo.ListWithCursor(ctx, ListFilters{SkillID: "hand-hygiene"}, nil, 2)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.NextCursor)

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListWithCursor(ctx, ListFilters{SkillID: "hand-hygiene"}, cursor, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)

	// No overlap between pages.
	seen := map[string]bool{}
	for _, d := range page1.Items {
		seen[d.ID] = true
	}
	for _, d := range page2.Items {
		assert.False(t, seen[d.ID], "document %s appeared on both pages", d.ID)
	}

	cursor2, err := pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListWithCursor(ctx, ListFilters{SkillID: "hand-hygiene"}, cursor2, 2)
	require.NoError(t, err)
	assert.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
}

func TestDocumentRepository_ListWithCursor_Filters(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	published := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, published))

	draft := newTestDocument("hand-hygiene")
	draft.Status = domain.DocumentStatusDraft
	draft.Criticality = domain.CriticalityLow
	require.NoError(t, repo.Create(ctx, draft))

	page, err := repo.ListWithCursor(ctx, ListFilters{Status: "draft", Criticality: "low"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, draft.ID, page.Items[0].ID)
}

func TestDocumentRepository_SearchLexical(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	doc := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, doc))

	other := newTestDocument("vital-signs")
	other.Title = "Measuring Radial Pulse"
	other.Content = "Count the pulse for thirty seconds."
	require.NoError(t, repo.Create(ctx, other))

	t.Run("matches title case-insensitively", func(t *testing.T) {
		docs, err := repo.SearchLexical(ctx, "radial PULSE", 10)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, other.ID, docs[0].ID)
	})

	t.Run("matches content", func(t *testing.T) {
		docs, err := repo.SearchLexical(ctx, "warm water", 10)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, doc.ID, docs[0].ID)
	})

	t.Run("no match yields an empty list", func(t *testing.T) {
		docs, err := repo.SearchLexical(ctx, "tracheostomy", 10)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestDocumentRepository_ListForRefresh(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	pending := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, pending))

	failed := newTestDocument("hand-hygiene")
	failed.EmbeddingStatus = domain.EmbeddingStatusFailed
	require.NoError(t, repo.Create(ctx, failed))

	completed := newTestDocument("hand-hygiene")
	completed.EmbeddingStatus = domain.EmbeddingStatusCompleted
	require.NoError(t, repo.Create(ctx, completed))

	archived := newTestDocument("hand-hygiene")
	archived.Status = domain.DocumentStatusArchived
	require.NoError(t, repo.Create(ctx, archived))

	docs, err := repo.ListForRefresh(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	for _, d := range docs {
		assert.NotEqual(t, completed.ID, d.ID)
		assert.NotEqual(t, archived.ID, d.ID)
	}
}

func TestDocumentRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	active := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, active))

	archived := newTestDocument("hand-hygiene")
	archived.Status = domain.DocumentStatusArchived
	require.NoError(t, repo.Create(ctx, archived))

	docs, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, active.ID, docs[0].ID)
}

func TestDocumentRepository_CountByStatus(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	published := newTestDocument("hand-hygiene")
	require.NoError(t, repo.Create(ctx, published))

	draft := newTestDocument("hand-hygiene")
	draft.Status = domain.DocumentStatusDraft
	draft.EmbeddingStatus = domain.EmbeddingStatusCompleted
	require.NoError(t, repo.Create(ctx, draft))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.ByStatus["published"])
	assert.Equal(t, int64(1), counts.ByStatus["draft"])
	assert.Equal(t, int64(1), counts.ByEmbeddingStatus["pending"])
	assert.Equal(t, int64(1), counts.ByEmbeddingStatus["completed"])
}
