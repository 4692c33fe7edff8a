package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/carepath-labs/skillverify/internal/api"
	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/repository"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Create(ctx context.Context, input service.CreateDocumentInput) (*domain.KnowledgeDocument, error)
	Get(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
	ListBySkill(ctx context.Context, skillID string) ([]*domain.KnowledgeDocument, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.KnowledgeDocument, error)
	Update(ctx context.Context, input service.UpdateDocumentInput) (*domain.KnowledgeDocument, error)
	Delete(ctx context.Context, id string) error
	RefreshEmbeddings(ctx context.Context, id string) (*domain.KnowledgeDocument, error)
	Stats(ctx context.Context) (*repository.StatusCounts, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	SkillID     string   `json:"skill_id"`
	Category    string   `json:"category"`
	Source      string   `json:"source"`
	Criticality string   `json:"criticality"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

type UpdateDocumentRequest struct {
	Title       *string  `json:"title"`
	Content     *string  `json:"content"`
	Category    *string  `json:"category"`
	Criticality *string  `json:"criticality"`
	Tags        []string `json:"tags"`
	Status      *string  `json:"status"`
}

type DocumentResponse struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	SkillID         string   `json:"skill_id"`
	Category        string   `json:"category"`
	Source          string   `json:"source"`
	Criticality     string   `json:"criticality"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	EmbeddingStatus string   `json:"embedding_status"`
	ChunkCount      int      `json:"chunk_count"`
	Version         int64    `json:"version"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func documentToResponse(d *domain.KnowledgeDocument) *DocumentResponse {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &DocumentResponse{
		ID:              d.ID,
		Title:           d.Title,
		Content:         d.Content,
		SkillID:         d.SkillID,
		Category:        d.Category,
		Source:          d.Source,
		Criticality:     string(d.Criticality),
		Tags:            tags,
		Status:          string(d.Status),
		EmbeddingStatus: string(d.EmbeddingStatus),
		ChunkCount:      len(d.EmbeddingRefs),
		Version:         d.Version,
		CreatedAt:       d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func documentsToResponse(docs []*domain.KnowledgeDocument) []*DocumentResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentToResponse(d))
	}
	return out
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.SkillID == "" {
		api.Error(w, http.StatusBadRequest, "skill_id is required")
		return
	}

	doc, err := h.svc.Create(r.Context(), service.CreateDocumentInput{
		Title:       req.Title,
		Content:     req.Content,
		SkillID:     req.SkillID,
		Category:    req.Category,
		Source:      req.Source,
		Criticality: domain.Criticality(req.Criticality),
		Tags:        req.Tags,
		Status:      domain.DocumentStatus(req.Status),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if rawLimit := query.Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		SkillID:     query.Get("skillId"),
		Category:    query.Get("category"),
		Criticality: query.Get("criticality"),
		Status:      query.Get("status"),
		Cursor:      query.Get("cursor"),
		Limit:       limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DocumentListResponse{
		Items:   documentsToResponse(out.Items),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

func (h *DocumentHandler) ListBySkill(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "skillId")
	if skillID == "" {
		api.Error(w, http.StatusBadRequest, "skillId is required")
		return
	}

	docs, err := h.svc.ListBySkill(r.Context(), skillID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DocumentListResponse{Items: documentsToResponse(docs)})
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	docs, err := h.svc.Search(r.Context(), query, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DocumentListResponse{Items: documentsToResponse(docs)})
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateDocumentInput{
		DocumentID: id,
		Title:      req.Title,
		Content:    req.Content,
		Category:   req.Category,
		Tags:       req.Tags,
	}
	if req.Criticality != nil {
		criticality := domain.Criticality(*req.Criticality)
		input.Criticality = &criticality
	}
	if req.Status != nil {
		status := domain.DocumentStatus(*req.Status)
		input.Status = &status
	}

	doc, err := h.svc.Update(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// RefreshEmbeddings triggers an unconditional re-embed of one document and
// reports the resulting embedding status.
func (h *DocumentHandler) RefreshEmbeddings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.RefreshEmbeddings(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}
