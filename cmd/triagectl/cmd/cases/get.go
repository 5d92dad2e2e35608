package cases

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
)

var getCmd = &cobra.Command{
	Use:   "get <case-id>",
	Short: "Show one case with its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCaseID(args[0])
		if err != nil {
			return err
		}
		cache, err := caseCache(cmd.Context(), guard.ActionRead)
		if err != nil {
			return err
		}
		tc, err := cache.Refresh(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printCase(*tc, time.Now())
	},
}
