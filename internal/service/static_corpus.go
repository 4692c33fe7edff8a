package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/carepath-labs/skillverify/internal/domain"
)

//go:embed static_corpus.json
var staticCorpusData []byte

// StaticDocument is one entry of the bundled fallback corpus. The corpus
// ships inside the binary so retrieval stays available when the vector
// index is empty or unreachable.
type StaticDocument struct {
	ID          string             `json:"id"`
	SkillID     string             `json:"skill_id"`
	Category    string             `json:"category"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Source      string             `json:"source"`
	Criticality domain.Criticality `json:"criticality"`
	Tags        []string           `json:"tags"`
}

// StaticCorpus ranks bundled documents by term-frequency relevance.
type StaticCorpus struct {
	docs []StaticDocument
}

// LoadStaticCorpus decodes the bundled corpus. Failure here is a build
// defect, not a runtime condition.
func LoadStaticCorpus() (*StaticCorpus, error) {
	var docs []StaticDocument
	if err := json.Unmarshal(staticCorpusData, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bundled static corpus: %w", err)
	}
	return &StaticCorpus{docs: docs}, nil
}

// NewStaticCorpus builds a corpus from explicit documents (for testing).
func NewStaticCorpus(docs []StaticDocument) *StaticCorpus {
	return &StaticCorpus{docs: docs}
}

// Size returns the number of bundled documents.
func (c *StaticCorpus) Size() int {
	return len(c.docs)
}

type scoredStatic struct {
	doc   StaticDocument
	score float64
}

// Rank scores the corpus against the query and returns the top limit
// documents for the skill. Scoring counts occurrences of query words longer
// than two characters, case-insensitive — an empirical heuristic carried
// over from the original corpus, kept behind this one function so it can be
// recalibrated.
func (c *StaticCorpus) Rank(query, skillID string, limit int) []domain.RetrievedKnowledgeItem {
	if limit <= 0 {
		return nil
	}

	terms := queryTerms(query)

	scored := make([]scoredStatic, 0, len(c.docs))
	for _, doc := range c.docs {
		if skillID != "" && doc.SkillID != skillID {
			continue
		}
		scored = append(scored, scoredStatic{doc: doc, score: termFrequency(doc, terms)})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	items := make([]domain.RetrievedKnowledgeItem, 0, len(scored))
	for _, s := range scored {
		items = append(items, domain.RetrievedKnowledgeItem{
			Content:     s.doc.Content,
			Score:       s.score,
			SkillID:     s.doc.SkillID,
			Source:      s.doc.Source,
			Criticality: s.doc.Criticality,
			Tags:        s.doc.Tags,
			SourceType:  domain.SourceTypeStatic,
			Priority:    domain.PriorityStatic,
		})
	}
	return items
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func termFrequency(doc StaticDocument, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(doc.Title + " " + doc.Content)
	var count int
	for _, term := range terms {
		count += strings.Count(haystack, term)
	}
	return float64(count)
}
