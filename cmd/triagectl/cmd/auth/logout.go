package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the triage backend",
	Long: `Revokes the refresh cookie on the backend and removes the saved session.
The local session is cleared even when the backend cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := provider(cmd.Context())
		session, err := p.Session()
		if err != nil {
			return err
		}

		if err := session.Logout(cmd.Context()); err != nil {
			pterm.Warning.Printf("Backend logout failed: %v\n", err)
		}
		jar, err := p.Jar()
		if err != nil {
			return err
		}
		if err := jar.Delete(); err != nil {
			return err
		}

		pterm.Success.Println("Logged out successfully")
		return nil
	},
}
