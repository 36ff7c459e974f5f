// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// APIKey guards the HTTP API. When empty, APIAllowedCIDRs must list the
	// networks allowed to call it.
	APIKey             string   `toml:"apiKey" mapstructure:"apiKey"`
	APIAllowedCIDRs    []string `toml:"apiAllowedCidrs" mapstructure:"apiAllowedCidrs"`
	CORSAllowedOrigins []string `toml:"corsAllowedOrigins" mapstructure:"corsAllowedOrigins"`

	OneBotURL            string  `toml:"onebotUrl" mapstructure:"onebotUrl"`
	OneBotAccessToken    string  `toml:"onebotAccessToken" mapstructure:"onebotAccessToken"`
	OneBotTimeoutSeconds int     `toml:"onebotTimeoutSeconds" mapstructure:"onebotTimeoutSeconds"`
	OneBotRateLimit      float64 `toml:"onebotRateLimit" mapstructure:"onebotRateLimit"`
	OneBotRateBurst      int     `toml:"onebotRateBurst" mapstructure:"onebotRateBurst"`
	OneBotRetries        int     `toml:"onebotRetries" mapstructure:"onebotRetries"`

	PageSize          int   `toml:"pageSize" mapstructure:"pageSize"`
	BatchSize         int   `toml:"batchSize" mapstructure:"batchSize"`
	ItemDelayMs       int   `toml:"itemDelayMs" mapstructure:"itemDelayMs"`
	BatchDelayMs      int   `toml:"batchDelayMs" mapstructure:"batchDelayMs"`
	DeleteDelayMs     int   `toml:"deleteDelayMs" mapstructure:"deleteDelayMs"`
	MaxConcurrentRuns int64 `toml:"maxConcurrentRuns" mapstructure:"maxConcurrentRuns"`
	QuotaAfterScan    bool  `toml:"quotaAfterScan" mapstructure:"quotaAfterScan"`

	// Schedules holds "scope:cron[:mode]" entries.
	Schedules []string `toml:"schedules" mapstructure:"schedules"`
	// StorageLimits holds "scope:maxFiles:maxGB" entries.
	StorageLimits []string `toml:"storageLimits" mapstructure:"storageLimits"`

	// NotifyChat posts run reports to the scope's group chat; otherwise they are logged.
	NotifyChat   bool     `toml:"notifyChat" mapstructure:"notifyChat"`
	NotifyEvents []string `toml:"notifyEvents" mapstructure:"notifyEvents"`

	CheckForUpdates       bool   `toml:"checkForUpdates" mapstructure:"checkForUpdates"`
	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

// ParseAPIAllowedCIDRs parses the configured API client ranges.
// Entries can be either CIDR (for example 192.168.1.0/24) or a single IP
// (for example 192.168.1.10, which is treated as /32 or /128).
func (c *Config) ParseAPIAllowedCIDRs() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.APIAllowedCIDRs))

	for _, raw := range c.APIAllowedCIDRs {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid apiAllowedCidrs entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid apiAllowedCidrs entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

// ValidateAPIAccess requires either an API key or a client allowlist.
func (c *Config) ValidateAPIAccess() error {
	prefixes, err := c.ParseAPIAllowedCIDRs()
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.APIKey) == "" && len(prefixes) == 0 {
		return errors.New("apiAllowedCidrs is required when apiKey is empty")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.APIKey = RedactString(c.APIKey)
	out.OneBotAccessToken = RedactString(c.OneBotAccessToken)
	out.MetricsBasicAuthUsers = RedactString(c.MetricsBasicAuthUsers)
	return out
}
