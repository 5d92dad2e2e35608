package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()

	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, s.ServerURL)
	assert.False(t, s.NonInteractive)
	assert.False(t, s.Debug)
	assert.Equal(t, DefaultTimeout, s.Timeout)
}

// TestLoad_WithEnvironmentVariables tests that TRIAGE_ prefixed environment variables work
func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("TRIAGE_SERVER", "https://triage.example.com/")
	t.Setenv("TRIAGE_NON_INTERACTIVE", "1")
	t.Setenv("TRIAGE_DEBUG", "true")
	t.Setenv("TRIAGE_TIMEOUT", "30s")

	s, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "https://triage.example.com", s.ServerURL)
	assert.True(t, s.NonInteractive)
	assert.True(t, s.Debug)
	assert.Equal(t, 30*time.Second, s.Timeout)
}

func TestLoad_WithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server: "http://file:9000"
timeout: "5s"
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://file:9000", s.ServerURL)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.True(t, s.Debug)
}

// TestLoad_EnvironmentVariablePrecedence tests that env vars have precedence over config file
func TestLoad_EnvironmentVariablePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`server: "http://file:9000"`), 0600))
	t.Setenv("TRIAGE_SERVER", "http://env:9000")

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://env:9000", s.ServerURL)
}

func TestReadConfigFile_Missing(t *testing.T) {
	v := NewViper()
	assert.NoError(t, ReadConfigFile(v, filepath.Join(t.TempDir(), "absent.yaml")))
	assert.NoError(t, ReadConfigFile(v, ""))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "no scheme", key: "TRIAGE_SERVER", val: "localhost:8000"},
		{name: "ftp scheme", key: "TRIAGE_SERVER", val: "ftp://files.example.com"},
		{name: "zero timeout", key: "TRIAGE_TIMEOUT", val: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(NewViper())
			assert.Error(t, err)
		})
	}
}

func TestInjectConfig(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	cfg := &GlobalConfig{Settings: Settings{ServerURL: "http://x"}}
	ctx := InjectConfig(context.Background(), cfg)
	assert.Same(t, cfg, MustFromContext(ctx))

	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
