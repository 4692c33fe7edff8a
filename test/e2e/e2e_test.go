//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentPayload struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	SkillID         string   `json:"skill_id"`
	Criticality     string   `json:"criticality"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	EmbeddingStatus string   `json:"embedding_status"`
	ChunkCount      int      `json:"chunk_count"`
	Version         int64    `json:"version"`
}

func createDocument(t *testing.T, env *E2ETestEnv, skillID, title, content string) documentPayload {
	t.Helper()
	resp, err := env.Post("/documents", map[string]interface{}{
		"title":       title,
		"content":     content,
		"skill_id":    skillID,
		"category":    "infection-control",
		"source":      "CDC Guidelines",
		"criticality": "high",
		"tags":        []string{"infection-control"},
		"status":      "published",
	}, testAPIKey)
	require.NoError(t, err)

	var doc documentPayload
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	require.NotEmpty(t, doc.ID)
	return doc
}

func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health endpoint is open", func(t *testing.T) {
		resp, err := env.Get("/health", "")
		require.NoError(t, err)

		var health struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &health))
		assert.Equal(t, "ok", health.Status)
	})

	t.Run("documents require an API key", func(t *testing.T) {
		_, err := env.Get("/documents", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		_, err := env.Get("/documents", "not-the-key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	doc := createDocument(t, env, "hand-hygiene", "Hand Hygiene Basics",
		"Wash hands with soap and warm water for at least 20 seconds, covering all surfaces including between fingers and under nails.")
	assert.Equal(t, "completed", doc.EmbeddingStatus)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, int64(1), doc.Version)

	t.Run("get", func(t *testing.T) {
		resp, err := env.Get("/documents/"+doc.ID, testAPIKey)
		require.NoError(t, err)

		var got documentPayload
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, doc.Title, got.Title)
	})

	t.Run("list by skill", func(t *testing.T) {
		resp, err := env.Get("/documents/skill/hand-hygiene", testAPIKey)
		require.NoError(t, err)

		var list struct {
			Items []documentPayload `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Items, 1)
		assert.Equal(t, doc.ID, list.Items[0].ID)
	})

	t.Run("search", func(t *testing.T) {
		resp, err := env.Get("/documents/search?q=soap", testAPIKey)
		require.NoError(t, err)

		var list struct {
			Items []documentPayload `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Items, 1)
	})

	t.Run("content update bumps version and re-embeds", func(t *testing.T) {
		newContent := "Wash hands with soap and warm water for a full 30 seconds, then dry with a clean paper towel."
		resp, err := env.Put("/documents/"+doc.ID, map[string]interface{}{
			"content": newContent,
		}, testAPIKey)
		require.NoError(t, err)

		var updated documentPayload
		require.NoError(t, json.Unmarshal(resp.Data, &updated))
		assert.Equal(t, newContent, updated.Content)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "completed", updated.EmbeddingStatus)
	})

	t.Run("delete removes document and vectors", func(t *testing.T) {
		_, err := env.Delete("/documents/"+doc.ID, testAPIKey)
		require.NoError(t, err)

		_, err = env.Get("/documents/"+doc.ID, testAPIKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		var count int64
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM knowledge_vectors WHERE document_id = $1", doc.ID).Scan(&count))
		assert.Zero(t, count)
	})
}

func TestE2E_RetrieveAndVerify(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	createDocument(t, env, "hand-hygiene", "Lathering Technique",
		"Lather hands with soap for at least 20 seconds. Scrub palms, backs of hands, between fingers and under nails before rinsing with warm water.")

	t.Run("retrieve surfaces curated content first", func(t *testing.T) {
		resp, err := env.Get("/retrieve?q="+queryEscape("lather hands soap 20 seconds")+"&skillId=hand-hygiene", testAPIKey)
		require.NoError(t, err)

		var result struct {
			Items []struct {
				Content    string `json:"content"`
				SourceType string `json:"source_type"`
				Priority   int    `json:"priority"`
			} `json:"items"`
			HasDynamicContent bool `json:"has_dynamic_content"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.True(t, result.HasDynamicContent)
		require.NotEmpty(t, result.Items)
		assert.Equal(t, "dynamic", result.Items[0].SourceType)
		assert.Equal(t, 1, result.Items[0].Priority)
		assert.Contains(t, result.Items[0].Content, "Lather hands with soap")
	})

	t.Run("verify step grades against retrieved knowledge", func(t *testing.T) {
		resp, err := env.Post("/verify/step", map[string]interface{}{
			"skill_id":        "hand-hygiene",
			"step_id":         "lather-20sec",
			"step_name":       "Lather hands with soap",
			"user_action":     "lathered hands thoroughly with soap",
			"supplies":        []string{"soap", "paper-towel"},
			"required_supply": "soap",
			"timing":          25.0,
			"sequence":        2,
		}, testAPIKey)
		require.NoError(t, err)

		var verdict struct {
			IsCorrect     bool    `json:"is_correct"`
			Score         float64 `json:"score"`
			Feedback      string  `json:"feedback"`
			Confidence    float64 `json:"confidence"`
			KnowledgeUsed bool    `json:"knowledge_used"`
			Category      struct {
				Level string `json:"level"`
			} `json:"performance_category"`
			Timing struct {
				Classification string  `json:"classification"`
				Efficiency     float64 `json:"efficiency"`
			} `json:"timing_analysis"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &verdict))
		assert.True(t, verdict.IsCorrect)
		assert.Equal(t, 88.0, verdict.Score)
		assert.NotEmpty(t, verdict.Feedback)
		assert.Equal(t, 0.9, verdict.Confidence)
		assert.True(t, verdict.KnowledgeUsed)
		assert.Equal(t, "good", verdict.Category.Level)
		assert.Equal(t, "optimal", verdict.Timing.Classification)
	})

	t.Run("malformed event is the only client-visible failure", func(t *testing.T) {
		_, err := env.Post("/verify/step", map[string]interface{}{
			"skill_id":    "hand-hygiene",
			"user_action": "lathered hands",
		}, testAPIKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestE2E_Stats(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	createDocument(t, env, "hand-hygiene", "Hand Hygiene Basics",
		"Wash hands with soap and warm water for at least 20 seconds.")

	resp, err := env.Get("/stats", testAPIKey)
	require.NoError(t, err)

	var stats struct {
		Documents struct {
			Total int64 `json:"total"`
		} `json:"documents"`
		Index struct {
			VectorCount int64 `json:"vector_count"`
		} `json:"index"`
		StaticCorpus int `json:"static_corpus_documents"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(1), stats.Documents.Total)
	assert.Equal(t, int64(1), stats.Index.VectorCount)
	assert.Greater(t, stats.StaticCorpus, 0)
}

func queryEscape(q string) string {
	return strings.ReplaceAll(q, " ", "+")
}
