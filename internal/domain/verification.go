package domain

import "time"

// SourceType distinguishes freshly curated vector-searched knowledge from
// the bundled static fallback corpus.
type SourceType string

const (
	SourceTypeDynamic SourceType = "dynamic"
	SourceTypeStatic  SourceType = "static"
)

// Retrieval priorities. Dynamic content always ranks ahead of static
// content regardless of score.
const (
	PriorityDynamic = 1
	PriorityStatic  = 2
)

// RetrievedKnowledgeItem is one ranked entry of grounding knowledge.
type RetrievedKnowledgeItem struct {
	Content     string      `json:"content"`
	Score       float64     `json:"score"`
	SkillID     string      `json:"skill_id"`
	Source      string      `json:"source"`
	Criticality Criticality `json:"criticality"`
	Tags        []string    `json:"tags"`
	SourceType  SourceType  `json:"source_type"`
	Priority    int         `json:"priority"`
}

// AssessmentDetails carries the six weighted dimension scores the model is
// asked to grade, each in [0,100].
type AssessmentDetails struct {
	SafetyCompliance  float64 `json:"safety_compliance"`
	TechnicalAccuracy float64 `json:"technical_accuracy"`
	SupplyUsage       float64 `json:"supply_usage"`
	Timing            float64 `json:"timing"`
	Sequence          float64 `json:"sequence"`
	Professionalism   float64 `json:"professionalism"`
}

// PerformanceCategory is the presentation band derived from the score.
type PerformanceCategory struct {
	Level   string `json:"level"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// TimingAnalysis classifies the learner's pace against the expected window
// for the step.
type TimingAnalysis struct {
	Classification string  `json:"classification"`
	ExpectedMin    float64 `json:"expected_min"`
	ExpectedMax    float64 `json:"expected_max"`
	Actual         float64 `json:"actual"`
	Efficiency     float64 `json:"efficiency"`
}

// LearningObjective is a follow-up study recommendation attached to a verdict.
type LearningObjective struct {
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// VerificationResult is the verdict on one step performance. Score is in
// [0,100] and Confidence in [0,1]; the fallback verdict reports Confidence
// 0.3 so downstream consumers can see degraded trust.
type VerificationResult struct {
	IsCorrect           bool                `json:"is_correct"`
	Score               float64             `json:"score"`
	Feedback            string              `json:"feedback"`
	CriticalErrors      []string            `json:"critical_errors"`
	MinorIssues         []string            `json:"minor_issues"`
	Suggestions         []string            `json:"suggestions"`
	Confidence          float64             `json:"confidence"`
	KnowledgeUsed       bool                `json:"knowledge_used"`
	AssessmentDetails   AssessmentDetails   `json:"assessment_details"`
	PerformanceCategory PerformanceCategory `json:"performance_category"`
	TimingAnalysis      TimingAnalysis      `json:"timing_analysis"`
	LearningObjectives  []LearningObjective `json:"learning_objectives"`
	Timestamp           time.Time           `json:"timestamp"`
}

// ClampScore forces a value into the [0,100] score range.
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampConfidence forces a value into the [0,1] confidence range.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
