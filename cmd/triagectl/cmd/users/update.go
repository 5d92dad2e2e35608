package users

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

var updateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Change a user's name, email or role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		client, err := userClient(cmd.Context(), guard.ActionWrite)
		if err != nil {
			return err
		}
		current, err := client.GetUser(cmd.Context(), id)
		if err != nil {
			return err
		}

		original := sdk.UserFormFrom(*current)
		edited, err := applyUserFlags(cmd.Flags(), original)
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

		u, err := client.UpdateUser(cmd.Context(), id, changes)
		if errors.Is(err, sdk.ErrUserExists) {
			return fmt.Errorf("email %s is already in use", edited.Email)
		}
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		pterm.Success.Printf("Updated %s (%s)\n", u.FullName(), u.Email)
		return nil
	},
}

func applyUserFlags(flags *pflag.FlagSet, form sdk.UserForm) (sdk.UserForm, error) {
	for name, dst := range map[string]*string{
		"first-name": &form.FirstName,
		"last-name":  &form.LastName,
		"email":      &form.Email,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return form, err
		}
		*dst = v
	}
	if flags.Changed("role") {
		raw, err := flags.GetString("role")
		if err != nil {
			return form, err
		}
		role, err := sdk.ParseRole(raw)
		if err != nil {
			return form, err
		}
		form.Role = role
	}
	return form, nil
}

func addUserFlags(f *pflag.FlagSet) {
	f.String("first-name", "", "First name")
	f.String("last-name", "", "Last name")
	f.String("email", "", "Email address")
	f.String("role", "", "Role: physician, staff or admin")
}

func init() {
	addUserFlags(updateCmd.Flags())
}
