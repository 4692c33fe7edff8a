package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/metrics"
	"github.com/carepath-labs/skillverify/internal/telemetry"
)

const (
	// passingScore is the threshold above which a step counts as correct.
	// The model's own boolean is advisory only.
	passingScore = 70

	fallbackScore      = 75
	fallbackConfidence = 0.3
	fallbackFeedback   = "Your action has been recorded. Automated review was unavailable for this step, so it was scored provisionally; continue with the next step of the skill."
)

// VerdictModel is the generative model behind the engine. One call per
// step, no retry at this layer.
type VerdictModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever produces the grounding knowledge for a step.
type Retriever interface {
	Retrieve(ctx context.Context, query, skillID string, topK int) *RetrievalResult
}

// VerificationEngine grounds a generative-model call with retrieved
// knowledge and scores a learner's step performance. It never raises to
// its caller: every failure path lands on the deterministic fallback
// verdict, with Confidence communicating the degraded trust.
type VerificationEngine struct {
	retriever Retriever
	model     VerdictModel
	enricher  *PerformanceEnricher
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewVerificationEngine creates a VerificationEngine instance.
func NewVerificationEngine(retriever Retriever, model VerdictModel, enricher *PerformanceEnricher, timeout time.Duration, m *metrics.Metrics) *VerificationEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VerificationEngine{
		retriever: retriever,
		model:     model,
		enricher:  enricher,
		timeout:   timeout,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// VerifyStep scores one step performance. The returned result is always
// well-formed; cancellation and timeouts degrade exactly like any other
// failure.
func (e *VerificationEngine) VerifyStep(ctx context.Context, event *domain.StepPerformanceEvent) *domain.VerificationResult {
	ctx, span := telemetry.StartSpan(ctx, "VerificationEngine.VerifyStep", telemetry.SpanAttributes{
		SkillID:   event.SkillID,
		StepID:    event.StepID,
		Operation: "verify",
	})
	defer span.End()

	if e.metrics != nil {
		e.metrics.VerificationsTotal.Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	retrieval := e.retriever.Retrieve(ctx, retrievalQuery(event), event.SkillID, 0)

	result, err := e.scoreStep(ctx, event, retrieval)
	if err != nil {
		// Explicit fallback branch: learner progress is never blocked on
		// an AI or network outage.
		log.Printf("verification fell back for step %s: %v", event.StepID, err)
		telemetry.CaptureError(ctx, err)
		if e.metrics != nil {
			e.metrics.FallbackVerdicts.Inc()
		}
		result = e.fallbackVerdict()
	}

	e.enricher.Enrich(result, event)
	return result
}

// retrievalQuery builds the similarity query from the step context.
func retrievalQuery(event *domain.StepPerformanceEvent) string {
	parts := []string{event.StepName, event.UserAction}
	if event.RequiredSupply != "" {
		parts = append(parts, event.RequiredSupply)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// modelVerdict is the schema the model is instructed to return.
type modelVerdict struct {
	IsCorrect      bool     `json:"is_correct"`
	Score          float64  `json:"score"`
	Feedback       string   `json:"feedback"`
	CriticalErrors []string `json:"critical_errors"`
	MinorIssues    []string `json:"minor_issues"`
	Suggestions    []string `json:"suggestions"`
	Confidence     float64  `json:"confidence"`
	Assessment     struct {
		SafetyCompliance  float64 `json:"safety_compliance"`
		TechnicalAccuracy float64 `json:"technical_accuracy"`
		SupplyUsage       float64 `json:"supply_usage"`
		Timing            float64 `json:"timing"`
		Sequence          float64 `json:"sequence"`
		Professionalism   float64 `json:"professionalism"`
	} `json:"assessment_details"`
}

func (e *VerificationEngine) scoreStep(ctx context.Context, event *domain.StepPerformanceEvent, retrieval *RetrievalResult) (*domain.VerificationResult, error) {
	prompt := buildVerificationPrompt(event, retrieval)

	raw, err := e.model.Complete(ctx, prompt)
	if err != nil {
		return nil, domain.NewModelError("model call failed", err)
	}

	verdict, err := decodeVerdict(raw)
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		IsCorrect:      verdict.Score >= passingScore,
		Score:          domain.ClampScore(verdict.Score),
		Feedback:       verdict.Feedback,
		CriticalErrors: emptyIfNil(verdict.CriticalErrors),
		MinorIssues:    emptyIfNil(verdict.MinorIssues),
		Suggestions:    emptyIfNil(verdict.Suggestions),
		Confidence:     domain.ClampConfidence(verdict.Confidence),
		KnowledgeUsed:  len(retrieval.Items) > 0,
		AssessmentDetails: domain.AssessmentDetails{
			SafetyCompliance:  domain.ClampScore(verdict.Assessment.SafetyCompliance),
			TechnicalAccuracy: domain.ClampScore(verdict.Assessment.TechnicalAccuracy),
			SupplyUsage:       domain.ClampScore(verdict.Assessment.SupplyUsage),
			Timing:            domain.ClampScore(verdict.Assessment.Timing),
			Sequence:          domain.ClampScore(verdict.Assessment.Sequence),
			Professionalism:   domain.ClampScore(verdict.Assessment.Professionalism),
		},
		Timestamp: e.now(),
	}
	return result, nil
}

// decodeVerdict extracts the first well-formed JSON object from the raw
// model response. Surrounding prose is tolerated; a response without a
// decodable object matching the schema is a model error.
func decodeVerdict(raw string) (*modelVerdict, error) {
	for offset := 0; offset < len(raw); {
		start := strings.IndexByte(raw[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		var verdict modelVerdict
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		if err := dec.Decode(&verdict); err == nil {
			if err := validateVerdict(&verdict); err != nil {
				return nil, err
			}
			return &verdict, nil
		}
		offset = start + 1
	}
	return nil, domain.NewModelError("no well-formed JSON object in model response", nil)
}

func validateVerdict(v *modelVerdict) error {
	if v.Feedback == "" {
		return domain.NewModelError("model verdict missing feedback", nil)
	}
	if v.Score < 0 || v.Score > 100 {
		return domain.NewModelError(fmt.Sprintf("model verdict score out of range: %v", v.Score), nil)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return domain.NewModelError(fmt.Sprintf("model verdict confidence out of range: %v", v.Confidence), nil)
	}
	return nil
}

// fallbackVerdict is the deterministic always-available verdict. Confidence
// 0.3 signals degraded trust to downstream consumers.
func (e *VerificationEngine) fallbackVerdict() *domain.VerificationResult {
	return &domain.VerificationResult{
		IsCorrect:      true,
		Score:          fallbackScore,
		Feedback:       fallbackFeedback,
		CriticalErrors: []string{},
		MinorIssues:    []string{},
		Suggestions:    []string{},
		Confidence:     fallbackConfidence,
		KnowledgeUsed:  false,
		AssessmentDetails: domain.AssessmentDetails{
			SafetyCompliance:  fallbackScore,
			TechnicalAccuracy: fallbackScore,
			SupplyUsage:       fallbackScore,
			Timing:            fallbackScore,
			Sequence:          fallbackScore,
			Professionalism:   fallbackScore,
		},
		Timestamp: e.now(),
	}
}

func buildVerificationPrompt(event *domain.StepPerformanceEvent, retrieval *RetrievalResult) string {
	var b strings.Builder

	b.WriteString("Evaluate a nursing assistant student's performance of one step of a clinical skill.\n\n")

	b.WriteString("REFERENCE KNOWLEDGE:\n")
	if len(retrieval.Items) == 0 {
		b.WriteString("(no reference knowledge retrieved; grade on general CNA standards)\n")
	}
	for i, item := range retrieval.Items {
		fmt.Fprintf(&b, "[%d] (relevance %.2f, source: %s)\n%s\n\n", i+1, item.Score, item.Source, item.Content)
	}

	b.WriteString("\nSTEP PERFORMANCE:\n")
	fmt.Fprintf(&b, "Skill: %s\n", event.SkillID)
	fmt.Fprintf(&b, "Step: %s (%s)\n", event.StepName, event.StepID)
	fmt.Fprintf(&b, "Student action: %s\n", event.UserAction)
	if len(event.Supplies) > 0 {
		fmt.Fprintf(&b, "Supplies used: %s\n", strings.Join(event.Supplies, ", "))
	}
	if event.RequiredSupply != "" {
		fmt.Fprintf(&b, "Required supply: %s\n", event.RequiredSupply)
	}
	if event.DropZone != "" {
		fmt.Fprintf(&b, "Placement target: %s\n", event.DropZone)
	}
	fmt.Fprintf(&b, "Time taken: %.1f seconds\n", event.Timing)
	fmt.Fprintf(&b, "Step sequence position: %d\n", event.Sequence)

	b.WriteString(`
Grade six weighted dimensions, each 0-100: safety compliance, technical
accuracy, supply usage, timing, sequence, professionalism.

Scoring rubric: 90-100 excellent, 80-89 good, 70-79 satisfactory,
60-69 needs improvement, below 60 unsatisfactory.

Respond with exactly one JSON object in this shape:
{
  "is_correct": true,
  "score": 85,
  "feedback": "...",
  "critical_errors": [],
  "minor_issues": [],
  "suggestions": [],
  "confidence": 0.9,
  "assessment_details": {
    "safety_compliance": 85,
    "technical_accuracy": 85,
    "supply_usage": 85,
    "timing": 85,
    "sequence": 85,
    "professionalism": 85
  }
}
`)

	return b.String()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
