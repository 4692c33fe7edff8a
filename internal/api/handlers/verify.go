package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/carepath-labs/skillverify/internal/api"
	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/service"
)

type VerificationService interface {
	VerifyStep(ctx context.Context, event *domain.StepPerformanceEvent) *domain.VerificationResult
}

type RetrievalService interface {
	Retrieve(ctx context.Context, query, skillID string, topK int) *service.RetrievalResult
}

type VerifyHandler struct {
	engine    VerificationService
	retriever RetrievalService
}

func NewVerifyHandler(engine VerificationService, retriever RetrievalService) *VerifyHandler {
	return &VerifyHandler{engine: engine, retriever: retriever}
}

type VerifyStepRequest struct {
	SkillID        string   `json:"skill_id"`
	StepID         string   `json:"step_id"`
	StepName       string   `json:"step_name"`
	UserAction     string   `json:"user_action"`
	Supplies       []string `json:"supplies"`
	RequiredSupply string   `json:"required_supply"`
	DropZone       string   `json:"drop_zone"`
	Timing         float64  `json:"timing"`
	Sequence       int      `json:"sequence"`
}

// VerifyStep grades one step performance. Malformed events are the only
// client-visible failure; everything downstream degrades to a usable verdict.
func (h *VerifyHandler) VerifyStep(w http.ResponseWriter, r *http.Request) {
	var req VerifyStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event := &domain.StepPerformanceEvent{
		SkillID:        req.SkillID,
		StepID:         req.StepID,
		StepName:       req.StepName,
		UserAction:     req.UserAction,
		Supplies:       req.Supplies,
		RequiredSupply: req.RequiredSupply,
		DropZone:       req.DropZone,
		Timing:         req.Timing,
		Sequence:       req.Sequence,
	}

	if err := domain.ValidateEvent(event); err != nil {
		api.HandleError(w, err)
		return
	}

	result := h.engine.VerifyStep(r.Context(), event)
	api.Success(w, http.StatusOK, result)
}

type RetrieveResponse struct {
	Items             []domain.RetrievedKnowledgeItem `json:"items"`
	HasDynamicContent bool                            `json:"has_dynamic_content"`
	HasStaticFallback bool                            `json:"has_static_fallback"`
}

// Retrieve exposes the retrieval combiner directly, mainly for authoring and
// debugging knowledge coverage.
func (h *VerifyHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}
	skillID := r.URL.Query().Get("skillId")

	result := h.retriever.Retrieve(r.Context(), query, skillID, 0)
	api.Success(w, http.StatusOK, &RetrieveResponse{
		Items:             result.Items,
		HasDynamicContent: result.HasDynamicContent,
		HasStaticFallback: result.HasStaticFallback,
	})
}
