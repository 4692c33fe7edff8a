package service

import (
	"context"
	"log"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/pagination"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
	ListBySkill(ctx context.Context, skillID string) ([]*domain.KnowledgeDocument, error)
	ListWithCursor(ctx context.Context, filters repository.ListFilters, cursor *pagination.Cursor, limit int) (*repository.DocumentPageResult, error)
	Update(ctx context.Context, d *domain.KnowledgeDocument) error
	Delete(ctx context.Context, id string) error
	SearchLexical(ctx context.Context, query string, limit int) ([]*domain.KnowledgeDocument, error)
	ListActive(ctx context.Context) ([]*domain.KnowledgeDocument, error)
	CountByStatus(ctx context.Context) (*repository.StatusCounts, error)
}

// EmbeddingPipelineInterface is the slice of the embedding pipeline the
// document service drives.
type EmbeddingPipelineInterface interface {
	CreateEmbeddingsForDocument(ctx context.Context, doc *domain.KnowledgeDocument) error
	UpdateEmbeddingsForDocument(ctx context.Context, updated, previous *domain.KnowledgeDocument) error
	DeleteEmbeddingsForDocument(ctx context.Context, doc *domain.KnowledgeDocument) error
}

// DocumentService handles business logic for knowledge documents
type DocumentService struct {
	repo    DocumentRepositoryInterface
	embeds  EmbeddingPipelineInterface
	uuidGen UUIDGenerator
	metrics *metrics.Metrics
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(repo DocumentRepositoryInterface, embeds EmbeddingPipelineInterface, m *metrics.Metrics) *DocumentService {
	return &DocumentService{
		repo:    repo,
		embeds:  embeds,
		uuidGen: &DefaultUUIDGenerator{},
		metrics: m,
	}
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(repo DocumentRepositoryInterface, embeds EmbeddingPipelineInterface, m *metrics.Metrics, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		repo:    repo,
		embeds:  embeds,
		uuidGen: uuidGen,
		metrics: m,
	}
}

// CreateDocumentInput represents the input for creating a knowledge document
type CreateDocumentInput struct {
	Title       string
	Content     string
	SkillID     string
	Category    string
	Source      string
	Criticality domain.Criticality
	Tags        []string
	Status      domain.DocumentStatus
}

// UpdateDocumentInput represents the input for updating a knowledge document.
// Nil pointer fields are left unchanged.
type UpdateDocumentInput struct {
	DocumentID  string
	Title       *string
	Content     *string
	Category    *string
	Criticality *domain.Criticality
	Tags        []string
	Status      *domain.DocumentStatus
}

// ListDocumentsInput narrows and paginates a document listing
type ListDocumentsInput struct {
	SkillID     string
	Category    string
	Criticality string
	Status      string
	Cursor      string
	Limit       int
}

// ListDocumentsOutput is one page of documents
type ListDocumentsOutput struct {
	Items   []*domain.KnowledgeDocument
	Cursor  string
	HasMore bool
}

// Create validates and persists a new document, then embeds it before
// returning. The returned document carries the embedding outcome: completed
// on success, failed when embedding could not finish. Embedding failure does
// not fail the create.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Create", telemetry.SpanAttributes{
		SkillID:   input.SkillID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	status := input.Status
	if status == "" {
		status = domain.DocumentStatusDraft
	}
	criticality := input.Criticality
	if criticality == "" {
		criticality = domain.CriticalityMedium
	}

	doc := &domain.KnowledgeDocument{
		ID:              s.uuidGen.NewString(),
		Title:           input.Title,
		Content:         input.Content,
		SkillID:         input.SkillID,
		Category:        input.Category,
		Source:          input.Source,
		Criticality:     criticality,
		Tags:            input.Tags,
		Status:          status,
		EmbeddingStatus: domain.EmbeddingStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DocumentsIngested.Inc()
	}

	if err := s.embeds.CreateEmbeddingsForDocument(ctx, doc); err != nil {
		log.Printf("embedding failed for new document %s: %v", doc.ID, err)
		telemetry.CaptureError(ctx, err)
	}

	return doc, nil
}

// Get returns a document by ID
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	return s.repo.GetByID(ctx, id)
}

// ListBySkill returns all documents attached to one skill
func (s *DocumentService) ListBySkill(ctx context.Context, skillID string) ([]*domain.KnowledgeDocument, error) {
	return s.repo.ListBySkill(ctx, skillID)
}

// List returns a filtered, cursor-paginated page of documents
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	limit := pagination.ClampLimit(input.Limit)

	var cursor *pagination.Cursor
	if input.Cursor != "" {
		decoded, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
		}
		cursor = decoded
	}

	page, err := s.repo.ListWithCursor(ctx, repository.ListFilters{
		SkillID:     input.SkillID,
		Category:    input.Category,
		Criticality: input.Criticality,
		Status:      input.Status,
	}, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Search returns documents whose title or content matches the query text
func (s *DocumentService) Search(ctx context.Context, query string, limit int) ([]*domain.KnowledgeDocument, error) {
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}
	return s.repo.SearchLexical(ctx, query, pagination.ClampLimit(limit))
}

// Update applies the provided fields to an existing document. The version
// counter advances and the document is re-embedded only when the title or
// content changed; metadata-only updates keep the existing vectors.
func (s *DocumentService) Update(ctx context.Context, input UpdateDocumentInput) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Update", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "update",
	})
	defer span.End()

	previous, err := s.repo.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	updated := *previous
	if input.Title != nil {
		updated.Title = *input.Title
	}
	if input.Content != nil {
		updated.Content = *input.Content
	}
	if input.Category != nil {
		updated.Category = *input.Category
	}
	if input.Criticality != nil {
		updated.Criticality = *input.Criticality
	}
	if input.Tags != nil {
		updated.Tags = input.Tags
	}
	if input.Status != nil {
		updated.Status = *input.Status
	}

	reembed := domain.NeedsReembedding(previous, &updated)
	if reembed {
		updated.Version = previous.Version + 1
		updated.EmbeddingStatus = domain.EmbeddingStatusPending
	}

	if err := domain.ValidateDocument(&updated); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if reembed {
		if err := s.embeds.UpdateEmbeddingsForDocument(ctx, &updated, previous); err != nil {
			log.Printf("re-embedding failed for document %s: %v", updated.ID, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	return &updated, nil
}

// Delete removes a document and cascades the delete to its vectors
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.embeds.DeleteEmbeddingsForDocument(ctx, doc); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// RefreshEmbeddings re-embeds one document on explicit request and returns
// it with the resulting embedding status. Unlike Update, the re-embed is
// unconditional.
func (s *DocumentService) RefreshEmbeddings(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.RefreshEmbeddings", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "refresh",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.embeds.CreateEmbeddingsForDocument(ctx, doc); err != nil {
		log.Printf("re-embedding failed for document %s: %v", doc.ID, err)
		telemetry.CaptureError(ctx, err)
	}
	return doc, nil
}

// RefreshAllEmbeddings re-embeds every non-archived document. Per-document
// failures are logged and counted; the pass continues.
func (s *DocumentService) RefreshAllEmbeddings(ctx context.Context) (refreshed, failed int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.RefreshAllEmbeddings", telemetry.SpanAttributes{
		Operation: "refresh",
	})
	defer span.End()

	docs, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if embedErr := s.embeds.CreateEmbeddingsForDocument(ctx, doc); embedErr != nil {
			log.Printf("refresh failed for document %s: %v", doc.ID, embedErr)
			failed++
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// Stats aggregates document counts by status and embedding status
func (s *DocumentService) Stats(ctx context.Context) (*repository.StatusCounts, error) {
	return s.repo.CountByStatus(ctx)
}
