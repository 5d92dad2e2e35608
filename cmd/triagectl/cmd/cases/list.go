package cases

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

var (
	listResolved bool
	listAll      bool
	listFilter   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List triage cases, most urgent first",
	Long: `Lists the case queue. By default only unresolved cases are shown.

--filter takes a boolean expression over the fields id, patientID, firstName,
lastName, patient, urgency, aiUrgency, overridden, status, returning, language,
summary and resolvedBy. For example:

  triagectl cases list --filter 'urgency == "urgent" and returning == true'
  triagectl cases list --all --filter 'patient matches "^Doe"'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := caseCache(cmd.Context(), guard.ActionRead)
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Fetching cases...")
		_, err = cache.FetchAll(cmd.Context())
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}

		var cases []sdk.TriageCase
		switch {
		case listAll:
			cases = cache.Cases()
		case listResolved:
			cases = cache.Resolved()
		default:
			cases = cache.Unresolved()
		}
		cases, err = filterCases(cases, listFilter)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			pterm.Info.Println("No cases found")
			return nil
		}

		sortByUrgency(cases)
		if err := pterm.DefaultTable.WithHasHeader().WithData(caseTable(cases, time.Now())).Render(); err != nil {
			return err
		}
		pterm.Printf("\n%d case(s). * marks a clinician urgency override.\n", len(cases))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listResolved, "resolved", false, "Show resolved cases instead of the open queue")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show open and resolved cases")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "Boolean filter expression over case fields")
	listCmd.MarkFlagsMutuallyExclusive("resolved", "all")
}
