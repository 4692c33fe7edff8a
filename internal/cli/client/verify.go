package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// VerifyStepRequest represents the step verification API request.
type VerifyStepRequest struct {
	SkillID        string   `json:"skill_id"`
	StepID         string   `json:"step_id"`
	StepName       string   `json:"step_name,omitempty"`
	UserAction     string   `json:"user_action"`
	Supplies       []string `json:"supplies,omitempty"`
	RequiredSupply string   `json:"required_supply,omitempty"`
	DropZone       string   `json:"drop_zone,omitempty"`
	Timing         float64  `json:"timing"`
	Sequence       int      `json:"sequence"`
}

// VerifyCmd creates the verify command.
func VerifyCmd() *cobra.Command {
	var (
		file     string
		skillID  string
		stepID   string
		stepName string
		action   string
		supplies []string
		timing   float64
		sequence int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one step performance",
		Long: `Submit a step performance event for AI-assisted verification and print
the verdict.

Examples:
  # From a JSON event file
  skillverify verify --file event.json

  # From flags
  skillverify verify --skill hand-hygiene --step lather-20sec \
    --action "Lathered hands with soap" --timing 25 --sequence 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var req VerifyStepRequest
			if file != "" || !cmd.Flags().Changed("skill") {
				data, err := readEvent(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("failed to decode event: %w", err)
				}
			} else {
				req = VerifyStepRequest{
					SkillID:    skillID,
					StepID:     stepID,
					StepName:   stepName,
					UserAction: action,
					Supplies:   supplies,
					Timing:     timing,
					Sequence:   sequence,
				}
			}

			resp, err := api.Post("/verify/step", req)
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Event JSON file (reads stdin if no flags are set)")
	cmd.Flags().StringVar(&skillID, "skill", "", "Skill being performed")
	cmd.Flags().StringVar(&stepID, "step", "", "Step identifier")
	cmd.Flags().StringVar(&stepName, "step-name", "", "Human-readable step name")
	cmd.Flags().StringVar(&action, "action", "", "What the learner did")
	cmd.Flags().StringSliceVar(&supplies, "supply", nil, "Supply used (repeatable)")
	cmd.Flags().Float64Var(&timing, "timing", 0, "Seconds the step took")
	cmd.Flags().IntVar(&sequence, "sequence", 0, "Position of the step in the skill")

	return cmd
}

// RetrieveCmd creates the retrieve command for inspecting knowledge coverage.
func RetrieveCmd() *cobra.Command {
	var skillID string

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Show the knowledge the engine would ground a verdict on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("q", args[0])
			if skillID != "" {
				query.Set("skillId", skillID)
			}

			resp, err := api.Get("/retrieve?" + query.Encode())
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().StringVar(&skillID, "skill", "", "Restrict retrieval to one skill")
	return cmd
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/stats")
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}
}

func readEvent(file string) ([]byte, error) {
	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("event is empty")
	}
	return data, nil
}
