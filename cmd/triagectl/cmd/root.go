package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/cmd/auth"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/cmd/cases"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/cmd/users"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/client"
	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/config"
)

var (
	configPath string
	v          = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "triagectl",
	Short: "ENT triage console - case queue and user administration client",
	Long: `triagectl is the command-line client for the ENT triage backend. Use it to
sign in, work the triage case queue and, as an admin, manage user accounts.

Settings come from flags, TRIAGE_* environment variables and ~/.triage/config.yaml,
in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			path, err := config.DefaultConfigPath()
			if err == nil {
				configPath = path
			}
		}
		if err := config.ReadConfigFile(v, configPath); err != nil {
			return err
		}
		settings, err := config.Load(v)
		if err != nil {
			return err
		}

		logger := newLogger(settings.Debug)
		cfg := &config.GlobalConfig{
			Settings:       *settings,
			Logger:         logger,
			ClientProvider: client.NewProvider(settings.ServerURL, settings.Timeout, logger),
		}
		cmd.SetContext(config.InjectConfig(cmd.Context(), cfg))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		cfg, ok := config.FromContext(cmd.Context())
		if !ok {
			return nil
		}
		if err := cfg.ClientProvider.Persist(); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// newLogger routes SDK debug logs through pterm. Without --debug only
// warnings and above reach the terminal.
func newLogger(debug bool) *slog.Logger {
	level := pterm.LogLevelWarn
	if debug {
		level = pterm.LogLevelDebug
	}
	return slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(level)))
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.triage/config.yaml)")
	flags.String(config.KeyServer, config.DefaultServerURL, "Triage API server URL (also set via TRIAGE_SERVER)")
	flags.Bool(config.KeyNonInteractive, false, "Disable interactive prompts (also set via TRIAGE_NON_INTERACTIVE=1)")
	flags.Bool(config.KeyDebug, false, "Log HTTP and session activity (also set via TRIAGE_DEBUG=1)")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "Per-request timeout, including one credential renewal (also set via TRIAGE_TIMEOUT)")
	for _, key := range []string{config.KeyServer, config.KeyNonInteractive, config.KeyDebug, config.KeyTimeout} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(cases.CasesCmd)
	rootCmd.AddCommand(users.UsersCmd)
}
