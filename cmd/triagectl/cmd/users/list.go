package users

import (
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

var listRole string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var role sdk.Role
		if listRole != "" {
			var err error
			if role, err = sdk.ParseRole(listRole); err != nil {
				return err
			}
		}

		client, err := userClient(cmd.Context(), guard.ActionRead)
		if err != nil {
			return err
		}
		users, err := client.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		users = byRole(users, role)
		if len(users) == 0 {
			pterm.Info.Println("No users found")
			return nil
		}
		sort.SliceStable(users, func(i, j int) bool {
			return strings.ToLower(users[i].LastName) < strings.ToLower(users[j].LastName)
		})
		return pterm.DefaultTable.WithHasHeader().WithData(userTable(users)).Render()
	},
}

func byRole(users []sdk.User, role sdk.Role) []sdk.User {
	if role == "" {
		return users
	}
	out := users[:0:0]
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

func init() {
	listCmd.Flags().StringVar(&listRole, "role", "", "Only show users with this role")
}
