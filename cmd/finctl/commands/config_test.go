package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/finctl/internal/app"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func staticEnv(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"
log_format = "json"

[api]
base_url = "https://finance.example.com/api"
timeout = "10s"

[auth]
storage = "redis"
refresh_timeout = "5s"

[auth.redis]
addr = "redis.internal:6379"
key = "team:credentials"
ttl = "720h"
`)

	cfg, err := loadConfig(path, nil, staticEnv())
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, "https://finance.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, app.CredentialStorageRedis, cfg.Auth.Storage)
	assert.Equal(t, 5*time.Second, cfg.Auth.RefreshTimeout)
	assert.Equal(t, "redis.internal:6379", cfg.Auth.Redis.Addr)
	assert.Equal(t, "team:credentials", cfg.Auth.Redis.Key)
	assert.Equal(t, 720*time.Hour, cfg.Auth.Redis.TTL)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[api]
base_url = "https://file.example.com/api"

[auth]
storage = "memory"
`)

	cfg, err := loadConfig(path, nil, staticEnv(
		"FINCTL_API__BASE_URL=https://env.example.com/api",
		"FINCTL_SERVER__PORT=4200",
		"UNRELATED=1",
	))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, uint16(4200), cfg.Server.Port)
	assert.Equal(t, app.CredentialStorageMemory, cfg.Auth.Storage)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	var cfg *app.Config
	cmd := &cli.Command{
		Name: "finctl",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api--base-url"},
			&cli.StringFlag{Name: "auth--storage"},
			&cli.IntFlag{Name: "server--port", Value: int(app.DefaultConfigServerPort)},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			cfg, err = loadConfig("", cmd, staticEnv(
				"FINCTL_API__BASE_URL=https://env.example.com/api",
				"FINCTL_SERVER__PORT=4200",
			))
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{"finctl", "--api--base-url", "https://flag.example.com/api", "--auth--storage", "memory"})
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, app.CredentialStorageMemory, cfg.Auth.Storage)
	// Unset flags don't override the environment with their defaults
	assert.Equal(t, uint16(4200), cfg.Server.Port)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := loadConfig("", nil, staticEnv("FINCTL_AUTH__STORAGE=vault"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, staticEnv())
	assert.ErrorContains(t, err, "loading config file")
}

func TestExtractAndTransformFlags(t *testing.T) {
	var values map[string]any
	cmd := &cli.Command{
		Name: "finctl",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level"},
			&cli.StringFlag{Name: "api--base-url"},
			&cli.StringFlag{Name: "unset", Value: "default"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			values = extractAndTransformFlags(cmd)
			return nil
		},
	}

	require.NoError(t, cmd.Run(context.Background(), []string{"finctl", "--log-level", "warn", "--api--base-url", "http://x/api"}))

	assert.Equal(t, map[string]any{
		"log_level":    "warn",
		"api.base_url": "http://x/api",
	}, values)
}

func TestConfigShowMasksSecrets(t *testing.T) {
	restore := environ
	environ = staticEnv(
		"FINCTL_AUTH__STORAGE=redis",
		"FINCTL_AUTH__REDIS__PASSWORD=hunter2",
	)
	t.Cleanup(func() { environ = restore })

	var out bytes.Buffer
	root := newRootCommand()
	root.Writer = &out

	require.NoError(t, root.Run(context.Background(), []string{"finctl", "--env-file", "", "config", "show"}))

	assert.NotContains(t, out.String(), "hunter2")

	var shown map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &shown))
	auth := shown["auth"].(map[string]any)
	assert.Equal(t, "redis", auth["storage"])
	assert.Equal(t, "********", auth["redis"].(map[string]any)["password"])
}

func TestLoadConfigIgnoresCredentialVariables(t *testing.T) {
	cfg, err := loadConfig("", nil, staticEnv(
		"FINCTL_AUTH__STORAGE=env",
		"FINCTL_ACCESS_TOKEN=eyJhbGciOi",
		"FINCTL_REFRESH_TOKEN=r1",
	))
	require.NoError(t, err)

	assert.Equal(t, app.CredentialStorageEnv, cfg.Auth.Storage)
	assert.Equal(t, app.DefaultConfigAuthEnvAccessKey, cfg.Auth.EnvAccessKey)
}
