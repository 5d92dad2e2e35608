package users

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/guard"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// newPasswordEnv supplies the initial password for non-interactive creation.
const newPasswordEnv = "TRIAGE_NEW_USER_PASSWORD"

var (
	createFirstName string
	createLastName  string
	createEmail     string
	createRole      string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Creates a user account. The initial password is read from
$TRIAGE_NEW_USER_PASSWORD, or prompted for twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		role, err := sdk.ParseRole(createRole)
		if err != nil {
			return err
		}
		password, err := newPassword(cfg.NonInteractive)
		if err != nil {
			return err
		}

		client, err := userClient(cmd.Context(), guard.ActionWrite)
		if err != nil {
			return err
		}
		u, err := client.CreateUser(cmd.Context(), sdk.UserInput{
			FirstName: createFirstName,
			LastName:  createLastName,
			Email:     createEmail,
			Role:      role,
			Password:  password,
		})
		if errors.Is(err, sdk.ErrUserExists) {
			return fmt.Errorf("a user with email %s already exists", createEmail)
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		pterm.Success.Printf("Created %s %s (%s)\n", u.Role.Label(), u.FullName(), u.ID)
		return nil
	},
}

func newPassword(nonInteractive bool) (string, error) {
	if password := os.Getenv(newPasswordEnv); password != "" {
		return password, nil
	}
	if nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", newPasswordEnv)
	}
	prompt := pterm.DefaultInteractiveTextInput.WithMask("*")
	password, err := prompt.Show("Initial password")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := prompt.Show("Confirm password")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}

func init() {
	createCmd.Flags().StringVar(&createFirstName, "first-name", "", "First name")
	createCmd.Flags().StringVar(&createLastName, "last-name", "", "Last name")
	createCmd.Flags().StringVar(&createEmail, "email", "", "Email address")
	createCmd.Flags().StringVar(&createRole, "role", string(sdk.RoleStaff), "Role: physician, staff or admin")
	_ = createCmd.MarkFlagRequired("first-name")
	_ = createCmd.MarkFlagRequired("last-name")
	_ = createCmd.MarkFlagRequired("email")
}
