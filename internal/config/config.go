// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/groupfs/internal/domain"
	"github.com/autobrr/groupfs/pkg/debounce"
)

const (
	appName        = "groupfs"
	configFileName = "config.toml"
	envPrefix      = "GROUPFS__"

	// editors emit several events per save
	reloadDelay = 500 * time.Millisecond
)

// AppConfig owns the loaded configuration and the viper instance behind it.
type AppConfig struct {
	Config *domain.Config

	viper     *viper.Viper
	configDir string
	logs      *logOutput
	reloads   *debounce.Debouncer

	mu        sync.RWMutex
	listeners []func(*domain.Config)
}

// New loads configPath, which is either a config file or a directory holding
// config.toml. An empty path uses the default config directory. A commented
// default file is written when none exists.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
		logs:    &logOutput{},
		reloads: debounce.New(reloadDelay),
	}

	c.defaults()
	if err := c.bindEnv(); err != nil {
		return nil, err
	}

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.decode(c.Config); err != nil {
		return nil, err
	}

	if err := c.logs.apply(c.Config); err != nil {
		return nil, err
	}

	if err := c.Config.ValidateAPIAccess(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) decode(out *domain.Config) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToListHook,
	))
	if err := c.viper.Unmarshal(out, hook); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// stringToListHook splits list values given as a single string, as environment
// variables are, on ";". Cron expressions may contain commas.
func stringToListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return []string{}, nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

func (c *AppConfig) defaults() {
	for key, value := range defaultValues() {
		c.viper.SetDefault(key, value)
	}
}

func defaultValues() map[string]any {
	host := "localhost"
	if inDocker() {
		host = "0.0.0.0"
	}

	return map[string]any{
		"host":                  host,
		"port":                  7480,
		"apiKey":                "",
		"apiAllowedCidrs":       []string{},
		"corsAllowedOrigins":    []string{},
		"logLevel":              "INFO",
		"logPath":               "",
		"logMaxSize":            50,
		"logMaxBackups":         3,
		"onebotUrl":             "",
		"onebotAccessToken":     "",
		"onebotTimeoutSeconds":  30,
		"onebotRateLimit":       5.0,
		"onebotRateBurst":       1,
		"onebotRetries":         3,
		"pageSize":              2000,
		"batchSize":             50,
		"itemDelayMs":           200,
		"batchDelayMs":          1000,
		"deleteDelayMs":         500,
		"maxConcurrentRuns":     2,
		"quotaAfterScan":        true,
		"schedules":             []string{},
		"storageLimits":         []string{},
		"notifyChat":            false,
		"notifyEvents":          []string{},
		"checkForUpdates":       true,
		"metricsEnabled":        false,
		"metricsHost":           "127.0.0.1",
		"metricsPort":           9074,
		"metricsBasicAuthUsers": "",
	}
}

// bindEnv maps every key to its GROUPFS__UPPER_SNAKE variable.
func (c *AppConfig) bindEnv() error {
	for key := range defaultValues() {
		if err := c.viper.BindEnv(key, envName(key)); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func envName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func (c *AppConfig) load(configPath string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	c.configDir = filepath.Dir(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config: wrote default config")
	}

	c.viper.SetConfigFile(path)
	c.viper.SetConfigType("toml")
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		dir := getDefaultConfigDir()
		if dir == "" {
			return "", errors.New("unable to determine config directory")
		}
		return filepath.Join(dir, configFileName), nil
	}
	if strings.HasSuffix(configPath, ".toml") {
		return configPath, nil
	}
	return filepath.Join(configPath, configFileName), nil
}

// getDefaultConfigDir prefers XDG_CONFIG_HOME. Docker images set it to /config,
// which is used as is.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, appName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName)
}

func inDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	key, err := generateAPIKey()
	if err != nil {
		return err
	}

	host := "localhost"
	if inDocker() {
		host = "0.0.0.0"
	}

	content := fmt.Sprintf(defaultConfigTemplate, host, key)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ConfigDir is the directory holding the loaded config file.
func (c *AppConfig) ConfigDir() string {
	return c.configDir
}

// Current returns the active configuration.
func (c *AppConfig) Current() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// OnChange registers fn to run with the new configuration after every reload.
func (c *AppConfig) OnChange(fn func(*domain.Config)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Watch reloads the config file when it changes on disk.
func (c *AppConfig) Watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.reloads.Do(func() {
			if err := c.reload(); err != nil {
				log.Error().Err(err).Str("file", e.Name).Msg("config: reload failed, keeping previous settings")
				return
			}
			log.Info().Str("file", e.Name).Msg("config: reloaded")
		})
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload() error {
	next := &domain.Config{}
	if err := c.decode(next); err != nil {
		return err
	}
	if err := next.ValidateAPIAccess(); err != nil {
		return err
	}

	c.mu.Lock()
	next.Version = c.Config.Version
	c.Config = next
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.mu.Unlock()

	c.logs.setLevel(next.LogLevel)

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// Close stops pending reloads and releases the log file, if any.
func (c *AppConfig) Close() error {
	c.reloads.Stop()
	return c.logs.Close()
}

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost"
host = "%s"

# Port
# Default: 7480
port = 7480

# API key sent in the X-API-Key header (or ?apikey=)
# Leave empty only together with apiAllowedCidrs
apiKey = "%s"

# Networks allowed to call the API, CIDR or single IP
#apiAllowedCidrs = ["127.0.0.1", "192.168.1.0/24"]

# Origins allowed by CORS
#corsAllowedOrigins = ["http://localhost:3000"]

# Log file path
# If not defined, logs to stdout
#logPath = "log/groupfs.log"

# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# OneBot v11 HTTP endpoint
#onebotUrl = "http://127.0.0.1:3000"
#onebotAccessToken = ""
#onebotTimeoutSeconds = 30

# Calls per second and burst towards the OneBot endpoint
#onebotRateLimit = 5.0
#onebotRateBurst = 1
#onebotRetries = 3

# Crawl and pacing
#pageSize = 2000
#batchSize = 50
#itemDelayMs = 200
#batchDelayMs = 1000
#deleteDelayMs = 500

# Scans allowed to run at the same time
#maxConcurrentRuns = 2

# Check the storage quota after every scheduled scan
#quotaAfterScan = true

# Scheduled scans as "scope:cron[:mode]", mode is check, report or delete
#schedules = ["123456:0 3 * * *:report"]

# Storage limits as "scope:maxFiles:maxGB", 0 disables a bound
#storageLimits = ["123456:1000:8"]

# Post reports to the group chat instead of only logging them
#notifyChat = false

# Events to deliver: scan_completed, scan_failed, quota_warning (empty means all)
#notifyEvents = []

#checkForUpdates = true

# Prometheus metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Comma separated user:password pairs
#metricsBasicAuthUsers = ""
`
