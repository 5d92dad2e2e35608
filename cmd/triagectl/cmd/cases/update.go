package cases

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

var updateCmd = &cobra.Command{
	Use:   "update <case-id>",
	Short: "Edit patient details or clinician overrides on a case",
	Long: `Edits a case. Only the flags you pass are compared against the current
case, and only fields whose value actually changes are sent.

Use 'triagectl cases resolve' to close a case.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCaseID(args[0])
		if err != nil {
			return err
		}
		cache, err := caseCache(cmd.Context(), guard.ActionWrite)
		if err != nil {
			return err
		}
		current, err := cache.Refresh(cmd.Context(), id)
		if err != nil {
			return err
		}

		original := sdk.CaseFormFrom(*current)
		edited, err := applyCaseFlags(cmd, original)
		if err != nil {
			return err
		}
		changes, err := sdk.ChangedFields(original, edited)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			pterm.Info.Println("Nothing to update")
			return nil
		}

		updated, err := cache.Update(cmd.Context(), id, changes)
		if err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		pterm.Success.Printf("Updated case %s (%d field(s))\n", updated.ID, len(changes))
		return nil
	},
}

// applyCaseFlags overlays the flags the user set onto form.
func applyCaseFlags(cmd *cobra.Command, form sdk.CaseForm) (sdk.CaseForm, error) {
	flags := cmd.Flags()
	strField := func(name string, dst *string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	for name, dst := range map[string]*string{
		"first-name":      &form.FirstName,
		"last-name":       &form.LastName,
		"dob":             &form.DOB,
		"contact":         &form.ContactInfo,
		"insurance":       &form.InsuranceInfo,
		"language":        &form.LanguagePreference,
		"summary":         &form.OverrideSummary,
		"clinician-notes": &form.ClinicianSummary,
	} {
		if err := strField(name, dst); err != nil {
			return form, err
		}
	}

	if flags.Changed("urgency") {
		raw, err := flags.GetString("urgency")
		if err != nil {
			return form, err
		}
		u := sdk.Urgency(raw)
		if raw != "" && !u.Valid() {
			return form, fmt.Errorf("invalid --urgency %q (expected routine, semi-urgent or urgent)", raw)
		}
		form.OverrideUrgency = u
	}
	if flags.Changed("returning") {
		v, err := flags.GetBool("returning")
		if err != nil {
			return form, err
		}
		form.ReturningPatient = v
	}
	return form, nil
}

func init() {
	addCaseFlags(updateCmd.Flags())
}

func addCaseFlags(f *pflag.FlagSet) {
	f.String("first-name", "", "Patient first name")
	f.String("last-name", "", "Patient last name")
	f.String("dob", "", "Date of birth (YYYY-MM-DD)")
	f.String("contact", "", "Contact information")
	f.String("insurance", "", "Insurance information")
	f.String("language", "", "Language preference")
	f.Bool("returning", false, "Returning patient")
	f.String("urgency", "", "Clinician urgency override (empty clears it)")
	f.String("summary", "", "Clinician summary override")
	f.String("clinician-notes", "", "Clinician notes")
}
