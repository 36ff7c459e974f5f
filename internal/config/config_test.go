// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/groupfs/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Tests that call New are not parallel: New replaces the global logger.

func TestNewWritesDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "groupfs")

	cfg, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir())

	c := cfg.Current()
	assert.Len(t, c.APIKey, 48, "a random api key is generated")
	assert.Equal(t, 7480, c.Port)
	assert.Equal(t, 2000, c.PageSize)
	assert.Equal(t, int64(2), c.MaxConcurrentRuns)
	assert.True(t, c.QuotaAfterScan)
	assert.Empty(t, c.Schedules)

	again, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, c.APIKey, again.Current().APIKey, "existing file is kept")
}

func TestNewReadsFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
host = "0.0.0.0"
port = 9000
apiKey = "from-file"
logLevel = "INFO"
schedules = ["111:0 3 * * *"]
storageLimits = ["111:1000:8"]
`)
	t.Setenv("GROUPFS__LOG_LEVEL", "DEBUG")
	t.Setenv("GROUPFS__API_KEY", "from-env")
	t.Setenv("GROUPFS__SCHEDULES", "222:0,30 * * * *:delete; 333:0 * * * *")
	t.Setenv("GROUPFS__BATCH_DELAY_MS", "250")

	cfg, err := New(path)
	require.NoError(t, err)

	c := cfg.Current()
	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, "from-env", c.APIKey)
	assert.Equal(t, []string{"222:0,30 * * * *:delete", "333:0 * * * *"}, c.Schedules)
	assert.Equal(t, []string{"111:1000:8"}, c.StorageLimits)
	assert.Equal(t, 250, c.BatchDelayMs)
}

func TestNewRequiresAPIAccessControl(t *testing.T) {
	path := writeConfig(t, `apiKey = ""`)
	_, err := New(path)
	require.Error(t, err)

	path = writeConfig(t, `
apiKey = ""
apiAllowedCidrs = ["127.0.0.1"]
`)
	_, err = New(path)
	require.NoError(t, err)
}

func TestReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, `
apiKey = "k"
schedules = ["111:0 3 * * *"]
`)
	cfg, err := New(path)
	require.NoError(t, err)

	var got *domain.Config
	cfg.OnChange(func(c *domain.Config) { got = c })

	require.NoError(t, os.WriteFile(path, []byte(`
apiKey = "k"
logLevel = "WARN"
schedules = ["111:0 4 * * *", "222:0 0 * * *"]
`), 0o600))
	require.NoError(t, cfg.viper.ReadInConfig())
	require.NoError(t, cfg.reload())

	require.NotNil(t, got)
	assert.Same(t, got, cfg.Current())
	assert.Equal(t, []string{"111:0 4 * * *", "222:0 0 * * *"}, got.Schedules)
	assert.Equal(t, "WARN", got.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte(`apiKey = ""`), 0o600))
	require.NoError(t, cfg.viper.ReadInConfig())
	require.Error(t, cfg.reload(), "invalid reload is rejected")
	assert.Same(t, got, cfg.Current())
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"host":                  "GROUPFS__HOST",
		"logLevel":              "GROUPFS__LOG_LEVEL",
		"onebotUrl":             "GROUPFS__ONEBOT_URL",
		"metricsBasicAuthUsers": "GROUPFS__METRICS_BASIC_AUTH_USERS",
	}
	for key, want := range tests {
		assert.Equal(t, want, envName(key), key)
	}
}

func TestGetDefaultConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/config")
	assert.Equal(t, "/config", getDefaultConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "/home/user/.config")
	assert.Equal(t, filepath.Join("/home/user/.config", "groupfs"), getDefaultConfigDir())
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	got, err := resolveConfigPath("/etc/groupfs/custom.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/groupfs/custom.toml", got)

	got, err = resolveConfigPath("/etc/groupfs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/etc/groupfs", "config.toml"), got)
}
