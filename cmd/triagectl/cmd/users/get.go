package users

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
)

var getCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show one user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		client, err := userClient(cmd.Context(), guard.ActionRead)
		if err != nil {
			return err
		}
		u, err := client.GetUser(cmd.Context(), id)
		if err != nil {
			return err
		}
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"ID", u.ID.String()},
			{"Name", u.FullName()},
			{"Email", u.Email},
			{"Role", u.Role.Label()},
			{"Last login", lastLogin(*u)},
		}).Render()
	},
}
