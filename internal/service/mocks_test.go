package service

import (
	"context"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/vectorindex"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockVectorStore is a mock implementation of VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, vectors []vectorindex.Vector) error {
	args := m.Called(ctx, vectors)
	return args.Error(0)
}

func (m *MockVectorStore) DeleteByFilter(ctx context.Context, filter vectorindex.DeleteFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockVectorQuerier is a mock implementation of VectorQuerier
type MockVectorQuerier struct {
	mock.Mock
}

func (m *MockVectorQuerier) Query(ctx context.Context, embedding []float32, filter vectorindex.QueryFilter, topK int, minScore float64) ([]vectorindex.Match, error) {
	args := m.Called(ctx, embedding, filter, topK, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorindex.Match), args.Error(1)
}

// MockEmbeddingStateRepository is a mock implementation of EmbeddingStateRepository
type MockEmbeddingStateRepository struct {
	mock.Mock
}

func (m *MockEmbeddingStateRepository) UpdateEmbeddingState(ctx context.Context, id string, status domain.EmbeddingStatus, refs []domain.EmbeddingRef) error {
	args := m.Called(ctx, id, status, refs)
	return args.Error(0)
}

// MockUUIDGenerator returns a fixed sequence of ids
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}
