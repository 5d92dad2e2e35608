package cases

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

var (
	createPatientID  string
	createTranscript string
	createSummary    string
	createUrgency    string
	createConfidence float64
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a case from a call transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := caseInput(cmd)
		if err != nil {
			return err
		}
		cache, err := caseCache(cmd.Context(), guard.ActionWrite)
		if err != nil {
			return err
		}
		tc, err := cache.Create(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("failed to create case: %w", err)
		}
		pterm.Success.Printf("Created case %s\n", tc.ID)
		return nil
	},
}

func caseInput(cmd *cobra.Command) (sdk.CaseInput, error) {
	patientID, err := uuid.Parse(createPatientID)
	if err != nil {
		return sdk.CaseInput{}, fmt.Errorf("invalid --patient-id %q: %w", createPatientID, err)
	}
	input := sdk.CaseInput{
		PatientID:  patientID,
		Transcript: createTranscript,
		AISummary:  createSummary,
	}
	if createUrgency != "" {
		u := sdk.Urgency(createUrgency)
		if !u.Valid() {
			return sdk.CaseInput{}, fmt.Errorf("invalid --ai-urgency %q (expected routine, semi-urgent or urgent)", createUrgency)
		}
		input.AIUrgency = u
	}
	if cmd.Flags().Changed("ai-confidence") {
		if createConfidence < 0 || createConfidence > 1 {
			return sdk.CaseInput{}, fmt.Errorf("--ai-confidence must be between 0 and 1")
		}
		confidence := createConfidence
		input.AIConfidence = &confidence
	}
	return input, nil
}

func init() {
	createCmd.Flags().StringVar(&createPatientID, "patient-id", "", "Patient UUID")
	createCmd.Flags().StringVar(&createTranscript, "transcript", "", "Call transcript")
	createCmd.Flags().StringVar(&createSummary, "ai-summary", "", "AI-generated summary")
	createCmd.Flags().StringVar(&createUrgency, "ai-urgency", "", "AI urgency: routine, semi-urgent or urgent")
	createCmd.Flags().Float64Var(&createConfidence, "ai-confidence", 0, "AI confidence between 0 and 1")
	_ = createCmd.MarkFlagRequired("patient-id")
	_ = createCmd.MarkFlagRequired("transcript")
}
