package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/KBTrotter/ent-triage-system/cmd/triagectl/internal/client"
)

// EnvPrefix prefixes every environment variable read by triagectl.
const EnvPrefix = "TRIAGE"

// Setting keys. Flags, TRIAGE_* variables and the config file share them.
const (
	KeyServer         = "server"
	KeyNonInteractive = "non-interactive"
	KeyDebug          = "debug"
	KeyTimeout        = "timeout"
)

const (
	DefaultServerURL = "http://localhost:8000"
	DefaultTimeout   = 15 * time.Second
)

type contextKey string

const configKey contextKey = "triagectl-config"

// Settings are the resolved user settings. Precedence is flag, then
// environment, then ~/.triage/config.yaml, then the defaults above.
type Settings struct {
	ServerURL      string
	NonInteractive bool
	Debug          bool
	Timeout        time.Duration
}

// GlobalConfig holds shared configuration for all triagectl commands.
// The root command injects it into the cobra command context in its
// PersistentPreRunE hook.
type GlobalConfig struct {
	Settings
	Logger         *slog.Logger
	ClientProvider *client.Provider
}

// NewViper returns a viper instance wired for TRIAGE_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyServer, DefaultServerURL)
	v.SetDefault(KeyNonInteractive, false)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfigPath returns ~/.triage/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".triage", "config.yaml"), nil
}

// ReadConfigFile merges path into v. A missing file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load resolves and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		ServerURL:      strings.TrimRight(strings.TrimSpace(v.GetString(KeyServer)), "/"),
		NonInteractive: v.GetBool(KeyNonInteractive),
		Debug:          v.GetBool(KeyDebug),
		Timeout:        v.GetDuration(KeyTimeout),
	}

	u, err := url.Parse(s.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid server URL %q: expected http(s)://host[:port]", s.ServerURL)
	}
	if s.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %q: must be positive", v.GetString(KeyTimeout))
	}
	return s, nil
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
// Returns (nil, false) if config is not present.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics.
// Only command RunE functions should call it; the root command has injected
// the config by then.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("triagectl: config not found in context - this is a bug in triagectl")
	}
	return cfg
}
