package cases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
)

var resolveReason string

var resolveCmd = &cobra.Command{
	Use:   "resolve <case-id>",
	Short: "Resolve a case with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		id, err := parseCaseID(args[0])
		if err != nil {
			return err
		}

		reason := strings.TrimSpace(resolveReason)
		if reason == "" {
			if cfg.NonInteractive {
				return errors.New("--reason is required in non-interactive mode")
			}
			input, err := pterm.DefaultInteractiveTextInput.Show("Resolution reason")
			if err != nil {
				return fmt.Errorf("failed to read reason: %w", err)
			}
			reason = strings.TrimSpace(input)
		}

		cache, err := caseCache(cmd.Context(), guard.ActionWrite)
		if err != nil {
			return err
		}
		tc, err := cache.Resolve(cmd.Context(), id, reason)
		if err != nil {
			return fmt.Errorf("failed to resolve case: %w", err)
		}
		pterm.Success.Printf("Resolved case %s\n", tc.ID)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveReason, "reason", "", "Resolution reason")
}
