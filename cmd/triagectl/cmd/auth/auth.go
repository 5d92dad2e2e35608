package auth

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/client"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
)

// AuthCmd is the parent command for auth operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Commands for signing in and out of the triage backend and inspecting the current session.`,
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
}

func provider(ctx context.Context) *client.Provider {
	return config.MustFromContext(ctx).ClientProvider
}
