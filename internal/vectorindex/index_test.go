//go:build integration

package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/carepath-labs/skillverify/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Small dimension keeps cosine scores hand-computable.
const testDimension = 3

func setupIndex(ctx context.Context, t *testing.T) (*Index, func()) {
	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")

	idx := New(pool, Config{
		Dimension:    testDimension,
		ReadyRetries: 3,
		ReadyDelay:   time.Second,
	})
	require.NoError(t, idx.Initialize(ctx))

	cleanup := func() {
		pool.Close()
		pc.Terminate(ctx)
	}
	return idx, cleanup
}

func testVector(id, skillID string, embedding []float32) Vector {
	return Vector{
		ID:          id,
		DocumentID:  "doc-" + id,
		ChunkID:     "chunk-" + id,
		ChunkIndex:  0,
		TotalChunks: 1,
		SkillID:     skillID,
		Source:      "CDC Guidelines",
		SourceType:  "dynamic",
		Criticality: "high",
		Tags:        []string{"infection-control"},
		Content:     "Wash hands with soap for at least 20 seconds.",
		Embedding:   embedding,
	}
}

func TestIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	require.NoError(t, idx.Upsert(ctx, []Vector{
		testVector("v1", "hand-hygiene", []float32{1, 0, 0}),
		testVector("v2", "hand-hygiene", []float32{0.8, 0.6, 0}),
		testVector("v3", "hand-hygiene", []float32{0, 1, 0}),
	}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, QueryFilter{SkillID: "hand-hygiene"}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "v1", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
	assert.Equal(t, "v2", matches[1].ID)
	assert.InDelta(t, 0.8, matches[1].Score, 0.001)
	assert.Equal(t, "doc-v1", matches[0].DocumentID)
	assert.Equal(t, []string{"infection-control"}, matches[0].Tags)
}

func TestIndex_Upsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	v := testVector("v1", "hand-hygiene", []float32{1, 0, 0})
	require.NoError(t, idx.Upsert(ctx, []Vector{v}))

	v.Content = "Updated content after re-embedding."
	v.Embedding = []float32{0, 1, 0}
	require.NoError(t, idx.Upsert(ctx, []Vector{v}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.VectorCount)

	matches, err := idx.Query(ctx, []float32{0, 1, 0}, QueryFilter{}, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Updated content after re-embedding.", matches[0].Content)
}

func TestIndex_Upsert_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	err := idx.Upsert(ctx, []Vector{testVector("v1", "hand-hygiene", []float32{1, 0})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestIndex_Query_Filters(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	dynamic := testVector("v1", "hand-hygiene", []float32{1, 0, 0})
	hardcoded := testVector("v2", "hand-hygiene", []float32{1, 0, 0})
	hardcoded.SourceType = "static-hardcoded"
	otherSkill := testVector("v3", "vital-signs", []float32{1, 0, 0})
	quiz := testVector("v4", "hand-hygiene", []float32{1, 0, 0})
	quiz.Namespace = QuizContentNamespace
	require.NoError(t, idx.Upsert(ctx, []Vector{dynamic, hardcoded, otherSkill, quiz}))

	t.Run("skill filter", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, QueryFilter{SkillID: "vital-signs"}, 5, 0.5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v3", matches[0].ID)
	})

	t.Run("source type exclusion", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0},
			QueryFilter{SkillID: "hand-hygiene", ExcludeSourceType: "static-hardcoded"}, 5, 0.5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v1", matches[0].ID)
	})

	t.Run("default namespace excludes quiz content", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, QueryFilter{}, 5, 0.5)
		require.NoError(t, err)
		for _, m := range matches {
			assert.NotEqual(t, "v4", m.ID)
		}
	})

	t.Run("quiz namespace", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, QueryFilter{Namespace: QuizContentNamespace}, 5, 0.5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v4", matches[0].ID)
	})
}

func TestIndex_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	v1 := testVector("v1", "hand-hygiene", []float32{1, 0, 0})
	v2 := testVector("v2", "hand-hygiene", []float32{0, 1, 0})
	v2.DocumentID = v1.DocumentID
	v3 := testVector("v3", "vital-signs", []float32{0, 0, 1})
	require.NoError(t, idx.Upsert(ctx, []Vector{v1, v2, v3}))

	deleted, err := idx.DeleteByFilter(ctx, DeleteFilter{DocumentID: v1.DocumentID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.VectorCount)

	t.Run("empty filter is rejected", func(t *testing.T) {
		_, err := idx.DeleteByFilter(ctx, DeleteFilter{})
		assert.Error(t, err)
	})
}

func TestIndex_Stats(t *testing.T) {
	ctx := context.Background()
	idx, cleanup := setupIndex(ctx, t)
	defer cleanup()

	quiz := testVector("v2", "hand-hygiene", []float32{0, 1, 0})
	quiz.Namespace = QuizContentNamespace
	require.NoError(t, idx.Upsert(ctx, []Vector{
		testVector("v1", "hand-hygiene", []float32{1, 0, 0}),
		quiz,
	}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.VectorCount)
	assert.Equal(t, testDimension, stats.Dimension)
	assert.Equal(t, int64(1), stats.NamespaceCounts["default"])
	assert.Equal(t, int64(1), stats.NamespaceCounts[QuizContentNamespace])
	assert.Greater(t, stats.Fullness, 0.0)
}
