package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
	"github.com/KBTrotter/ent-triage-system/pkg/sdk"
)

// passwordEnv supplies the password for non-interactive logins.
const passwordEnv = "TRIAGE_PASSWORD"

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the triage backend",
	Long: `Signs in with email and password. The backend answers with a short-lived
access token, kept in memory only, and a refresh cookie, saved to
~/.triage/cookies.json so later commands can resume the session.

The password is read from --password, then $TRIAGE_PASSWORD, then a masked prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		email, password, err := resolveLoginInput(cfg.NonInteractive)
		if err != nil {
			return err
		}

		session, err := cfg.ClientProvider.Session()
		if err != nil {
			return err
		}
		user, err := session.Login(cmd.Context(), email, password)
		if err != nil {
			if errors.Is(err, sdk.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			return fmt.Errorf("login failed: %w", err)
		}

		pterm.Success.Printf("Signed in as %s (%s)\n", user.FullName(), user.Email)
		pterm.Info.Printf("Role: %s\n", user.Role.Label())
		return nil
	},
}

func resolveLoginInput(nonInteractive bool) (string, string, error) {
	email := strings.TrimSpace(loginEmail)
	password := loginPassword
	if password == "" {
		password = os.Getenv(passwordEnv)
	}

	if email == "" {
		if nonInteractive {
			return "", "", errors.New("--email is required in non-interactive mode")
		}
		input, err := pterm.DefaultInteractiveTextInput.Show("Email")
		if err != nil {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(input)
	}
	if password == "" {
		if nonInteractive {
			return "", "", fmt.Errorf("password is required in non-interactive mode (use --password or %s)", passwordEnv)
		}
		input, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = input
	}
	return email, password, nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prefer $"+passwordEnv+" or the prompt)")
}
