package auth

import (
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/client"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		session, err := cfg.ClientProvider.Authenticated(cmd.Context())
		if errors.Is(err, client.ErrNotLoggedIn) {
			pterm.Warning.Printf("Not logged in to %s\n", cfg.ServerURL)
			return nil
		}
		if err != nil {
			return err
		}

		user, _ := session.Identity()
		pterm.DefaultSection.Println("Authentication Status")
		data := pterm.TableData{
			{"Server", cfg.ServerURL},
			{"User", user.FullName()},
			{"Email", user.Email},
			{"Role", user.Role.Label()},
			{"User ID", user.ID.String()},
		}
		if creds := session.Credentials(); creds != nil && !creds.ExpiresAt.IsZero() {
			data = append(data, []string{"Token expires", creds.ExpiresAt.Local().Format(time.RFC1123)})
		}
		return pterm.DefaultTable.WithData(data).Render()
	},
}
