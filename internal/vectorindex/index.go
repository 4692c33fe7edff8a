// Package vectorindex adapts a pgvector-backed Postgres store into the
// namespaced, cosine-metric similarity index the retrieval pipeline expects.
package vectorindex

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	// DefaultNamespace is the per-skill dynamic corpus partition.
	DefaultNamespace = ""
	// QuizContentNamespace partitions the separately bulk-loaded quiz corpus.
	QuizContentNamespace = "quiz-content"

	defaultReadyRetries = 10
	defaultReadyDelay   = 2 * time.Second

	// softCapacity is the vector count treated as "full" for the fullness
	// stat. The index has no hard limit; this is an operator signal.
	softCapacity = 100000
)

// Vector is one embedded chunk with the metadata retrieval filters on.
type Vector struct {
	ID          string
	Namespace   string
	DocumentID  string
	ChunkID     string
	ChunkIndex  int
	TotalChunks int
	SkillID     string
	Source      string
	SourceType  string
	Criticality string
	Tags        []string
	Content     string
	Embedding   []float32
}

// QueryFilter narrows a similarity query. Zero values mean "no constraint".
type QueryFilter struct {
	Namespace         string
	SkillID           string
	Criticality       string
	Tags              []string
	ExcludeSourceType string
}

// DeleteFilter selects vectors for bulk deletion.
type DeleteFilter struct {
	DocumentID string
	SkillID    string
	Namespace  string
}

// Match is a ranked query result.
type Match struct {
	ID          string
	DocumentID  string
	SkillID     string
	Source      string
	SourceType  string
	Criticality string
	Tags        []string
	Content     string
	Score       float64
}

// Stats describes the state of the index.
type Stats struct {
	VectorCount     int64            `json:"vector_count"`
	Dimension       int              `json:"dimension"`
	Fullness        float64          `json:"fullness"`
	NamespaceCounts map[string]int64 `json:"namespace_counts"`
}

// Config for an Index.
type Config struct {
	Dimension    int
	ReadyRetries int
	ReadyDelay   time.Duration
}

// Index is the pgvector-backed implementation of the similarity index.
type Index struct {
	pool         *pgxpool.Pool
	dimension    int
	readyRetries int
	readyDelay   time.Duration
}

// New creates an Index. Call Initialize before any other operation.
func New(pool *pgxpool.Pool, cfg Config) *Index {
	retries := cfg.ReadyRetries
	if retries <= 0 {
		retries = defaultReadyRetries
	}
	delay := cfg.ReadyDelay
	if delay <= 0 {
		delay = defaultReadyDelay
	}
	return &Index{
		pool:         pool,
		dimension:    cfg.Dimension,
		readyRetries: retries,
		readyDelay:   delay,
	}
}

// Dimension returns the configured embedding dimensionality.
func (i *Index) Dimension() int {
	return i.dimension
}

// Initialize ensures the vector store exists with the exact configured
// dimensionality and a cosine distance index, then polls readiness with
// bounded retries. A store that never becomes ready is a fatal
// configuration error.
func (i *Index) Initialize(ctx context.Context) error {
	if i.dimension <= 0 {
		return domain.NewConfigurationError("vector index dimension must be positive", nil)
	}

	_, err := i.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return domain.NewConfigurationError("failed to enable pgvector extension", err)
	}

	_, err = i.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS knowledge_vectors (
			id           TEXT PRIMARY KEY,
			namespace    TEXT NOT NULL DEFAULT '',
			document_id  TEXT NOT NULL,
			chunk_id     TEXT NOT NULL,
			chunk_index  INT NOT NULL,
			total_chunks INT NOT NULL,
			skill_id     TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT '',
			source_type  TEXT NOT NULL DEFAULT 'dynamic',
			criticality  TEXT NOT NULL DEFAULT 'medium',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			content      TEXT NOT NULL,
			embedding    vector(%d) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, i.dimension))
	if err != nil {
		return domain.NewConfigurationError("failed to create vector table", err)
	}

	_, err = i.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS knowledge_vectors_embedding_idx
		ON knowledge_vectors USING hnsw (embedding vector_cosine_ops)`)
	if err != nil {
		return domain.NewConfigurationError("failed to create cosine index", err)
	}

	return i.waitReady(ctx)
}

func (i *Index) waitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= i.readyRetries; attempt++ {
		var one int
		lastErr = i.pool.QueryRow(ctx, `SELECT 1 FROM knowledge_vectors LIMIT 1`).Scan(&one)
		if lastErr == nil || lastErr == pgx.ErrNoRows {
			return nil
		}
		log.Printf("vector index not ready (attempt %d/%d): %v", attempt, i.readyRetries, lastErr)
		select {
		case <-ctx.Done():
			return domain.NewConfigurationError("vector index readiness wait cancelled", ctx.Err())
		case <-time.After(i.readyDelay):
		}
	}
	return domain.NewConfigurationError("vector index never became ready", lastErr)
}

// Upsert writes vectors in one batch, idempotent by vector id. It refuses
// to write a vector whose length differs from the configured dimension.
func (i *Index) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	for _, v := range vectors {
		if len(v.Embedding) != i.dimension {
			return fmt.Errorf("vector %s has dimension %d, index expects %d", v.ID, len(v.Embedding), i.dimension)
		}
	}

	batch := &pgx.Batch{}
	for _, v := range vectors {
		tags := v.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(`
			INSERT INTO knowledge_vectors
				(id, namespace, document_id, chunk_id, chunk_index, total_chunks,
				 skill_id, source, source_type, criticality, tags, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				namespace = EXCLUDED.namespace,
				document_id = EXCLUDED.document_id,
				chunk_id = EXCLUDED.chunk_id,
				chunk_index = EXCLUDED.chunk_index,
				total_chunks = EXCLUDED.total_chunks,
				skill_id = EXCLUDED.skill_id,
				source = EXCLUDED.source,
				source_type = EXCLUDED.source_type,
				criticality = EXCLUDED.criticality,
				tags = EXCLUDED.tags,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding`,
			v.ID, v.Namespace, v.DocumentID, v.ChunkID, v.ChunkIndex, v.TotalChunks,
			v.SkillID, v.Source, v.SourceType, v.Criticality, tags, v.Content,
			pgvector.NewVector(v.Embedding),
		)
	}

	results := i.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range vectors {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}
	return nil
}

// Query returns up to topK matches with cosine similarity >= minScore,
// best first.
func (i *Index) Query(ctx context.Context, embedding []float32, filter QueryFilter, topK int, minScore float64) ([]Match, error) {
	if len(embedding) != i.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d", len(embedding), i.dimension)
	}
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT id, document_id, skill_id, source, source_type, criticality, tags, content,
		       1 - (embedding <=> $1) AS score
		FROM knowledge_vectors
		WHERE namespace = $2`
	args := []interface{}{pgvector.NewVector(embedding), filter.Namespace}

	if filter.SkillID != "" {
		args = append(args, filter.SkillID)
		query += fmt.Sprintf(" AND skill_id = $%d", len(args))
	}
	if filter.Criticality != "" {
		args = append(args, filter.Criticality)
		query += fmt.Sprintf(" AND criticality = $%d", len(args))
	}
	if len(filter.Tags) > 0 {
		args = append(args, filter.Tags)
		query += fmt.Sprintf(" AND tags && $%d", len(args))
	}
	if filter.ExcludeSourceType != "" {
		args = append(args, filter.ExcludeSourceType)
		query += fmt.Sprintf(" AND source_type != $%d", len(args))
	}

	args = append(args, minScore)
	query += fmt.Sprintf(" AND 1 - (embedding <=> $1) >= $%d", len(args))
	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.SkillID, &m.Source, &m.SourceType,
			&m.Criticality, &m.Tags, &m.Content, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByFilter bulk-deletes vectors matching the filter and returns the
// number removed. An empty filter is rejected rather than truncating the
// whole index.
func (i *Index) DeleteByFilter(ctx context.Context, filter DeleteFilter) (int64, error) {
	query := `DELETE FROM knowledge_vectors WHERE 1=1`
	var args []interface{}

	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	if filter.SkillID != "" {
		args = append(args, filter.SkillID)
		query += fmt.Sprintf(" AND skill_id = $%d", len(args))
	}
	if filter.Namespace != "" {
		args = append(args, filter.Namespace)
		query += fmt.Sprintf(" AND namespace = $%d", len(args))
	}

	if len(args) == 0 {
		return 0, fmt.Errorf("delete filter must constrain at least one field")
	}

	tag, err := i.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats reports the vector count, dimensionality, fullness against the soft
// capacity, and per-namespace counts.
func (i *Index) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Dimension:       i.dimension,
		NamespaceCounts: make(map[string]int64),
	}

	rows, err := i.pool.Query(ctx, `SELECT namespace, COUNT(*) FROM knowledge_vectors GROUP BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns string
		var count int64
		if err := rows.Scan(&ns, &count); err != nil {
			return nil, err
		}
		if ns == DefaultNamespace {
			ns = "default"
		}
		stats.NamespaceCounts[ns] = count
		stats.VectorCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.Fullness = float64(stats.VectorCount) / float64(softCapacity)
	if stats.Fullness > 1 {
		stats.Fullness = 1
	}
	return stats, nil
}
