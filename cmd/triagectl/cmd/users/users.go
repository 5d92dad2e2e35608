package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// UsersCmd is the parent command for user administration
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts (admin only)",
}

func init() {
	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(getCmd)
	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(updateCmd)
}

func userClient(ctx context.Context, act string) (*sdk.UserClient, error) {
	cfg := config.MustFromContext(ctx)
	return cfg.ClientProvider.Users(ctx, act)
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID %q: %w", raw, err)
	}
	return id, nil
}

func lastLogin(u sdk.User) string {
	if u.LastLogin == nil || u.LastLogin.IsZero() {
		return "never"
	}
	return u.LastLogin.Local().Format("2006-01-02 15:04")
}

func userTable(users []sdk.User) [][]string {
	table := [][]string{{"ID", "NAME", "EMAIL", "ROLE", "LAST LOGIN"}}
	for _, u := range users {
		table = append(table, []string{u.ID.String(), u.FullName(), u.Email, u.Role.Label(), lastLogin(u)})
	}
	return table
}
