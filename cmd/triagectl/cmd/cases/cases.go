package cases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// CasesCmd is the parent command for triage case operations
var CasesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Work the triage case queue",
	Long:  `Commands for listing, inspecting, editing and resolving triage cases.`,
}

func init() {
	CasesCmd.AddCommand(listCmd)
	CasesCmd.AddCommand(getCmd)
	CasesCmd.AddCommand(createCmd)
	CasesCmd.AddCommand(updateCmd)
	CasesCmd.AddCommand(resolveCmd)
}

func caseCache(ctx context.Context, act string) (*sdk.CaseCache, error) {
	cfg := config.MustFromContext(ctx)
	return cfg.ClientProvider.Cases(ctx, act)
}

func parseCaseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid case ID %q: %w", raw, err)
	}
	return id, nil
}
