package service

import (
	"context"
	"errors"
	"testing"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetrievalCombiner_Retrieve(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.1, 0.2, 0.3}

	t.Run("dynamic results fill the list when enough match", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(testStaticDocs())
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{TopK: 2, MinScore: 0.7}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, "wash hands").Return(embedding, nil)
		index.On("Query", mock.Anything, embedding, vectorindex.QueryFilter{
			SkillID:           "hand-hygiene",
			ExcludeSourceType: staticHardcodedSourceType,
		}, 2, 0.7).Return([]vectorindex.Match{
			{Content: "fresh guidance one", Score: 0.92, SkillID: "hand-hygiene", Criticality: "high"},
			{Content: "fresh guidance two", Score: 0.81, SkillID: "hand-hygiene", Criticality: "medium"},
		}, nil)

		result := combiner.Retrieve(ctx, "wash hands", "hand-hygiene", 0)

		require.Len(t, result.Items, 2)
		assert.True(t, result.HasDynamicContent)
		assert.False(t, result.HasStaticFallback)
		for _, item := range result.Items {
			assert.Equal(t, domain.SourceTypeDynamic, item.SourceType)
			assert.Equal(t, domain.PriorityDynamic, item.Priority)
		}
		assert.Equal(t, 0.92, result.Items[0].Score)
	})

	t.Run("static corpus tops up a short dynamic list", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(testStaticDocs())
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{TopK: 3, MinScore: 0.7}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
		index.On("Query", mock.Anything, mock.Anything, mock.Anything, 3, 0.7).Return([]vectorindex.Match{
			// A low dynamic score still outranks every static item.
			{Content: "fresh guidance", Score: 0.71, SkillID: "hand-hygiene"},
		}, nil)

		result := combiner.Retrieve(ctx, "lather hands soap", "hand-hygiene", 0)

		require.Len(t, result.Items, 3)
		assert.True(t, result.HasDynamicContent)
		assert.True(t, result.HasStaticFallback)
		assert.Equal(t, domain.SourceTypeDynamic, result.Items[0].SourceType)
		assert.Equal(t, domain.SourceTypeStatic, result.Items[1].SourceType)
		assert.Equal(t, domain.SourceTypeStatic, result.Items[2].SourceType)
		// Static items are score-ordered within their group.
		assert.GreaterOrEqual(t, result.Items[1].Score, result.Items[2].Score)
	})

	t.Run("embedding failure degrades to static only", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(testStaticDocs())
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("api down"))

		result := combiner.Retrieve(ctx, "wash hands soap", "hand-hygiene", 0)

		require.NotEmpty(t, result.Items)
		assert.False(t, result.HasDynamicContent)
		assert.True(t, result.HasStaticFallback)
		for _, item := range result.Items {
			assert.Equal(t, domain.SourceTypeStatic, item.SourceType)
		}
		index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("index failure degrades to static only", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(testStaticDocs())
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
		index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		result := combiner.Retrieve(ctx, "wash hands soap", "hand-hygiene", 0)

		require.NotEmpty(t, result.Items)
		assert.False(t, result.HasDynamicContent)
		assert.True(t, result.HasStaticFallback)
	})

	t.Run("no matches anywhere yields an empty result, not an error", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(nil)
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
		index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]vectorindex.Match{}, nil)

		result := combiner.Retrieve(ctx, "anything", "unknown-skill", 0)

		assert.Empty(t, result.Items)
		assert.False(t, result.HasDynamicContent)
		assert.False(t, result.HasStaticFallback)
	})

	t.Run("explicit topK overrides the configured default", func(t *testing.T) {
		embedder := new(MockEmbeddingClient)
		index := new(MockVectorQuerier)
		corpus := NewStaticCorpus(testStaticDocs())
		combiner := NewRetrievalCombiner(embedder, index, corpus, RetrievalConfig{TopK: 5}, nil)

		embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
		index.On("Query", mock.Anything, mock.Anything, mock.Anything, 1, defaultMinScore).
			Return([]vectorindex.Match{}, nil)

		result := combiner.Retrieve(ctx, "wash hands soap", "hand-hygiene", 1)

		assert.Len(t, result.Items, 1)
		index.AssertExpectations(t)
	})
}

func TestNewRetrievalCombiner_Defaults(t *testing.T) {
	combiner := NewRetrievalCombiner(nil, nil, NewStaticCorpus(nil), RetrievalConfig{}, nil)
	assert.Equal(t, defaultTopK, combiner.cfg.TopK)
	assert.Equal(t, defaultMinScore, combiner.cfg.MinScore)
}
