package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxTitleChars is the maximum length of a document title.
	MaxTitleChars = 200
	// MaxContentChars is the maximum length of a document body.
	MaxContentChars = 10000
)

// Criticality represents the clinical importance of a knowledge document.
type Criticality string

const (
	CriticalityHigh   Criticality = "high"
	CriticalityMedium Criticality = "medium"
	CriticalityLow    Criticality = "low"
)

// DocumentStatus represents the editorial status of a knowledge document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPublished DocumentStatus = "published"
	DocumentStatusArchived  DocumentStatus = "archived"
)

// EmbeddingStatus tracks the embedding lifecycle of a document,
// independently of its editorial status.
type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusCompleted  EmbeddingStatus = "completed"
	EmbeddingStatusFailed     EmbeddingStatus = "failed"
)

// EmbeddingRef maps one chunk of a document to the vector stored for it.
type EmbeddingRef struct {
	ChunkID    string `json:"chunk_id"`
	VectorID   string `json:"vector_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// KnowledgeDocument is a curated unit of clinical knowledge. Its content is
// chunked and embedded into the vector index; EmbeddingRefs records the
// chunk-to-vector mapping so deletes and re-embeds can cascade.
type KnowledgeDocument struct {
	ID              string
	Title           string
	Content         string
	SkillID         string
	Category        string
	Source          string
	Criticality     Criticality
	Tags            []string
	Status          DocumentStatus
	EmbeddingStatus EmbeddingStatus
	EmbeddingRefs   []EmbeddingRef
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmbeddingChunk is the derived unit of a document that gets embedded. The
// metadata travels with the vector so retrieval can filter without a join.
type EmbeddingChunk struct {
	ID          string
	DocumentID  string
	SkillID     string
	Source      string
	Criticality Criticality
	Tags        []string
	ChunkIndex  int
	TotalChunks int
	Content     string
	Embedding   []float32
}

// NeedsReembedding reports whether an update from prev to next requires the
// vectors to be recreated. Metadata-only updates keep existing vectors.
func NeedsReembedding(prev, next *KnowledgeDocument) bool {
	if prev == nil || next == nil {
		return true
	}
	return prev.Title != next.Title || prev.Content != next.Content
}

// ValidateDocument checks a KnowledgeDocument before it reaches the pipeline.
// Violations are reported with field-level messages.
func ValidateDocument(d *KnowledgeDocument) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}

	var problems []string
	if d.ID == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len([]rune(d.Title)) > MaxTitleChars {
		problems = append(problems, fmt.Sprintf("title exceeds %d characters", MaxTitleChars))
	}
	if strings.TrimSpace(d.Content) == "" {
		problems = append(problems, "content is required")
	}
	if len([]rune(d.Content)) > MaxContentChars {
		problems = append(problems, fmt.Sprintf("content exceeds %d characters", MaxContentChars))
	}
	if d.SkillID == "" {
		problems = append(problems, "skill_id is required")
	}
	if !isValidCriticality(d.Criticality) {
		problems = append(problems, fmt.Sprintf("criticality is invalid: %s", d.Criticality))
	}
	if !isValidDocumentStatus(d.Status) {
		problems = append(problems, fmt.Sprintf("status is invalid: %s", d.Status))
	}
	if !isValidEmbeddingStatus(d.EmbeddingStatus) {
		problems = append(problems, fmt.Sprintf("embedding status is invalid: %s", d.EmbeddingStatus))
	}

	if len(problems) > 0 {
		return NewDomainError(ErrCodeValidation, strings.Join(problems, "; "))
	}
	return nil
}

func isValidCriticality(c Criticality) bool {
	switch c {
	case CriticalityHigh, CriticalityMedium, CriticalityLow:
		return true
	}
	return false
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPublished, DocumentStatusArchived:
		return true
	}
	return false
}

func isValidEmbeddingStatus(s EmbeddingStatus) bool {
	switch s {
	case EmbeddingStatusPending, EmbeddingStatusProcessing,
		EmbeddingStatusCompleted, EmbeddingStatusFailed:
		return true
	}
	return false
}
