package domain

import "strings"

// StepPerformanceEvent is the transient inbound record of a learner
// performing one step of a simulated clinical skill.
type StepPerformanceEvent struct {
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

// ValidateEvent rejects malformed step events before they reach the
// verification pipeline.
func ValidateEvent(e *StepPerformanceEvent) error {
	if e == nil {
		return NewDomainError(ErrCodeValidation, "event cannot be nil")
	}

	var problems []string
	if e.SkillID == "" {
		problems = append(problems, "skill_id is required")
	}
	if e.StepID == "" {
		problems = append(problems, "step_id is required")
	}
	if strings.TrimSpace(e.UserAction) == "" {
		problems = append(problems, "user_action is required")
	}
	if e.Timing < 0 {
		problems = append(problems, "timing cannot be negative")
	}

	if len(problems) > 0 {
		return NewDomainError(ErrCodeValidation, strings.Join(problems, "; "))
	}
	return nil
}
