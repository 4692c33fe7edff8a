package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() *StepPerformanceEvent {
	return &StepPerformanceEvent{
		SkillID:        "hand-hygiene",
		StepID:         "lather-20sec",
		StepName:       "Lather for 20 seconds",
		UserAction:     "lathered hands with soap",
		Supplies:       []string{"soap", "paper-towel"},
		RequiredSupply: "soap",
		DropZone:       "sink",
		Timing:         24.5,
		Sequence:       2,
	}
}

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *StepPerformanceEvent)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid event",
			mutate:  func(e *StepPerformanceEvent) {},
			wantErr: false,
		},
		{
			name:    "missing skill id",
			mutate:  func(e *StepPerformanceEvent) { e.SkillID = "" },
			wantErr: true,
			errMsg:  "skill_id is required",
		},
		{
			name:    "missing step id",
			mutate:  func(e *StepPerformanceEvent) { e.StepID = "" },
			wantErr: true,
			errMsg:  "step_id is required",
		},
		{
			name:    "blank user action",
			mutate:  func(e *StepPerformanceEvent) { e.UserAction = "  " },
			wantErr: true,
			errMsg:  "user_action is required",
		},
		{
			name:    "negative timing",
			mutate:  func(e *StepPerformanceEvent) { e.Timing = -1 },
			wantErr: true,
			errMsg:  "timing cannot be negative",
		},
		{
			name:    "zero timing is allowed",
			mutate:  func(e *StepPerformanceEvent) { e.Timing = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)

			err := ValidateEvent(event)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEvent_Nil(t *testing.T) {
	err := ValidateEvent(nil)
	require.Error(t, err)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ErrCodeValidation, domainErr.Code)
}
