package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ListFilters narrows document listings.
type ListFilters struct {
	SkillID     string
	Category    string
	Criticality string
	Status      string
}

// DocumentPageResult is one page of a cursor-paginated listing.
type DocumentPageResult struct {
	Items      []*domain.KnowledgeDocument
	NextCursor string
	HasMore    bool
}

// StatusCounts aggregates document counts for the stats endpoint.
type StatusCounts struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	ByEmbeddingStatus map[string]int64 `json:"by_embedding_status"`
}

// DocumentRepository persists knowledge documents in Postgres.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, title, content, skill_id, category, source, criticality, tags,
	status, embedding_status, embedding_refs, version, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.KnowledgeDocument) error {
	refs, err := marshalRefs(d.EmbeddingRefs)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_documents
			(id, title, content, skill_id, category, source, criticality, tags,
			 status, embedding_status, embedding_refs, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.Title, d.Content, d.SkillID, d.Category, d.Source, d.Criticality,
		tagsOrEmpty(d.Tags), d.Status, d.EmbeddingStatus, refs, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *DocumentRepository) ListBySkill(ctx context.Context, skillID string) ([]*domain.KnowledgeDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents
		 WHERE skill_id = $1 ORDER BY updated_at DESC`, skillID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListWithCursor returns a filtered, cursor-paginated page ordered by
// (updated_at, id) descending.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + documentColumns + ` FROM knowledge_documents WHERE 1=1`
	var args []interface{}

	if filters.SkillID != "" {
		args = append(args, filters.SkillID)
		query += fmt.Sprintf(" AND skill_id = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filters.Criticality != "" {
		args = append(args, filters.Criticality)
		query += fmt.Sprintf(" AND criticality = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp)
		tsArg := len(args)
		args = append(args, cursor.LastID)
		query += fmt.Sprintf(" AND (updated_at, id) < ($%d, $%d)", tsArg, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &DocumentPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.KnowledgeDocument) error {
	refs, err := marshalRefs(d.EmbeddingRefs)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents SET
			title = $1, content = $2, skill_id = $3, category = $4, source = $5,
			criticality = $6, tags = $7, status = $8, embedding_status = $9,
			embedding_refs = $10, version = $11, updated_at = $12
		 WHERE id = $13`,
		d.Title, d.Content, d.SkillID, d.Category, d.Source, d.Criticality,
		tagsOrEmpty(d.Tags), d.Status, d.EmbeddingStatus, refs, d.Version, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateEmbeddingState records the outcome of an embedding pass without
// touching the editorial fields.
func (r *DocumentRepository) UpdateEmbeddingState(ctx context.Context, id string, status domain.EmbeddingStatus, refs []domain.EmbeddingRef) error {
	encoded, err := marshalRefs(refs)
	if err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents SET embedding_status = $1, embedding_refs = $2, updated_at = $3
		 WHERE id = $4`,
		status, encoded, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SearchLexical matches documents whose title or content contains the query
// text, newest first.
func (r *DocumentRepository) SearchLexical(ctx context.Context, query string, limit int) ([]*domain.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents
		 WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		 ORDER BY updated_at DESC LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListForRefresh returns published documents whose embeddings are pending or
// failed, oldest first, for the reconciliation worker.
func (r *DocumentRepository) ListForRefresh(ctx context.Context, limit int) ([]*domain.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents
		 WHERE status IN ($1, $2) AND embedding_status IN ($3, $4)
		 ORDER BY updated_at ASC LIMIT $5`,
		domain.DocumentStatusDraft, domain.DocumentStatusPublished,
		domain.EmbeddingStatusPending, domain.EmbeddingStatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListActive returns all non-archived documents, for the bulk refresh command.
func (r *DocumentRepository) ListActive(ctx context.Context) ([]*domain.KnowledgeDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents
		 WHERE status != $1 ORDER BY updated_at DESC`,
		domain.DocumentStatusArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// CountByStatus aggregates document counts for the stats surface.
func (r *DocumentRepository) CountByStatus(ctx context.Context) (*StatusCounts, error) {
	counts := &StatusCounts{
		ByStatus:          make(map[string]int64),
		ByEmbeddingStatus: make(map[string]int64),
	}

	rows, err := r.db.Query(ctx,
		`SELECT status, embedding_status, COUNT(*)
		 FROM knowledge_documents GROUP BY status, embedding_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, embeddingStatus string
		var count int64
		if err := rows.Scan(&status, &embeddingStatus, &count); err != nil {
			return nil, err
		}
		counts.ByStatus[status] += count
		counts.ByEmbeddingStatus[embeddingStatus] += count
		counts.Total += count
	}
	return counts, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.KnowledgeDocument, error) {
	var d domain.KnowledgeDocument
	var refs []byte
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.SkillID, &d.Category, &d.Source,
		&d.Criticality, &d.Tags, &d.Status, &d.EmbeddingStatus, &refs, &d.Version,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if err := unmarshalRefs(refs, &d.EmbeddingRefs); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.KnowledgeDocument, error) {
	var results []*domain.KnowledgeDocument
	for rows.Next() {
		var d domain.KnowledgeDocument
		var refs []byte
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.SkillID, &d.Category, &d.Source,
			&d.Criticality, &d.Tags, &d.Status, &d.EmbeddingStatus, &refs, &d.Version,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalRefs(refs, &d.EmbeddingRefs); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func marshalRefs(refs []domain.EmbeddingRef) ([]byte, error) {
	if refs == nil {
		refs = []domain.EmbeddingRef{}
	}
	encoded, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding refs: %w", err)
	}
	return encoded, nil
}

func unmarshalRefs(data []byte, out *[]domain.EmbeddingRef) error {
	if len(data) == 0 {
		*out = nil
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode embedding refs: %w", err)
	}
	return nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
