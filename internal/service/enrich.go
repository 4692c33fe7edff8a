package service

import (
	"math"

	"github.com/carepath-labs/skillverify/internal/domain"
)

// timingWindow is the expected duration range for a step, in seconds.
type timingWindow struct {
	min float64
	max float64
}

// defaultTimingWindow applies to any step without a calibrated window.
var defaultTimingWindow = timingWindow{min: 5, max: 60}

// stepTimingWindows holds per-step calibrated windows, keyed by step ID.
var stepTimingWindows = map[string]timingWindow{
	"lather-20sec": {min: 20, max: 30},
}

// PerformanceEnricher adds the presentation-oriented fields to a verdict:
// the performance band, timing analysis and learning objectives. It is
// deterministic and operates purely on the verdict and the event.
type PerformanceEnricher struct{}

// NewPerformanceEnricher creates a PerformanceEnricher instance.
func NewPerformanceEnricher() *PerformanceEnricher {
	return &PerformanceEnricher{}
}

// Enrich fills the derived fields of result in place.
func (e *PerformanceEnricher) Enrich(result *domain.VerificationResult, event *domain.StepPerformanceEvent) {
	result.PerformanceCategory = categorize(result.Score)
	result.TimingAnalysis = analyzeTiming(event.StepID, event.Timing)
	result.LearningObjectives = deriveObjectives(result)
}

func categorize(score float64) domain.PerformanceCategory {
	switch {
	case score >= 90:
		return domain.PerformanceCategory{
			Level:   "excellent",
			Color:   "#22c55e",
			Message: "Outstanding work. You performed this step to a professional standard.",
		}
	case score >= 80:
		return domain.PerformanceCategory{
			Level:   "good",
			Color:   "#84cc16",
			Message: "Good performance. A few refinements will make this step excellent.",
		}
	case score >= 70:
		return domain.PerformanceCategory{
			Level:   "satisfactory",
			Color:   "#eab308",
			Message: "Satisfactory. You met the requirements; keep practicing for consistency.",
		}
	case score >= 60:
		return domain.PerformanceCategory{
			Level:   "needs-improvement",
			Color:   "#f97316",
			Message: "This step needs more practice. Review the technique and try again.",
		}
	default:
		return domain.PerformanceCategory{
			Level:   "unsatisfactory",
			Color:   "#ef4444",
			Message: "This step was not performed correctly. Review the procedure before retrying.",
		}
	}
}

func analyzeTiming(stepID string, actual float64) domain.TimingAnalysis {
	window, ok := stepTimingWindows[stepID]
	if !ok {
		window = defaultTimingWindow
	}

	classification := "appropriate"
	switch {
	case actual < window.min:
		classification = "too-fast"
	case actual > window.max:
		classification = "too-slow"
	}

	midpoint := (window.min + window.max) / 2
	efficiency := 100 - math.Abs(actual-midpoint)/window.max*100
	if efficiency < 0 {
		efficiency = 0
	}
	if efficiency > 100 {
		efficiency = 100
	}

	return domain.TimingAnalysis{
		Classification: classification,
		ExpectedMin:    window.min,
		ExpectedMax:    window.max,
		Actual:         actual,
		Efficiency:     efficiency,
	}
}

func deriveObjectives(result *domain.VerificationResult) []domain.LearningObjective {
	objectives := []domain.LearningObjective{}
	if len(result.CriticalErrors) > 0 {
		objectives = append(objectives, domain.LearningObjective{
			Title:       "Safety Protocol Review",
			Priority:    "high",
			Description: "Review the safety requirements for this step before attempting it again.",
		})
	}
	if len(result.MinorIssues) > 0 {
		objectives = append(objectives, domain.LearningObjective{
			Title:       "Technique Refinement",
			Priority:    "medium",
			Description: "Practice the flagged technique details to build consistency.",
		})
	}
	return objectives
}
