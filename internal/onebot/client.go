// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package onebot talks to a OneBot v11 HTTP endpoint and exposes the group file
// actions as a remote.Client.
package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/autobrr/groupfs/internal/buildinfo"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/pkg/httphelpers"
)

const (
	actionRootFiles   = "get_group_root_files"
	actionFolderFiles = "get_group_files_by_folder"
	actionFileURL     = "get_group_file_url"
	actionDeleteFile  = "delete_group_file"
	actionFSInfo      = "get_group_file_system_info"
	actionSendGroup   = "send_group_msg"
	actionLoginInfo   = "get_login_info"

	// busid used by group file downloads
	defaultBusID = 102

	// large folders list a few thousand entries
	maxResponseBytes = 32 << 20
)

// Config configures the HTTP client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// RateLimit is the sustained number of calls per second, RateBurst the bucket size.
	RateLimit float64
	RateBurst int
	// Retries is the number of attempts for read-only calls that fail in transport.
	Retries   uint
	Transport http.RoundTripper
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		RateLimit: 5,
		RateBurst: 1,
		Retries:   3,
	}
}

// Client is a rate-limited OneBot HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    uint
}

type envelope struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// transportError marks failures that happened before the remote end answered.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.Wrap(remote.ErrConnectionUnavailable, "onebot base url not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.Retries == 0 {
		cfg.Retries = def.Retries
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		retries: cfg.Retries,
	}, nil
}

// Dial returns a factory that builds a client and verifies the endpoint answers.
func Dial(cfg Config) remote.Factory {
	return func(ctx context.Context) (remote.Client, error) {
		c, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		if _, err := c.call(ctx, actionLoginInfo, map[string]any{}); err != nil {
			return nil, errors.Wrap(err, "onebot endpoint check failed")
		}
		log.Info().Str("url", c.baseURL).Msg("onebot: connected")
		return c, nil
	}
}

func (c *Client) call(ctx context.Context, action string, params any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait failed")
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s params", action)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "create request for %s", action)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: errors.Wrapf(err, "request %s", action)}
	}
	defer httphelpers.DrainAndClose(resp)

	raw, err := httphelpers.ReadBody(resp, maxResponseBytes)
	if errors.Is(err, httphelpers.ErrBodyTooLarge) {
		return nil, fmt.Errorf("%w: %s: %v", remote.ErrUnexpectedResponse, action, err)
	}
	if err != nil {
		return nil, &transportError{err: errors.Wrapf(err, "read %s response", action)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, remote.NewError(action, resp.StatusCode, fmt.Sprintf("http status %d", resp.StatusCode), snippet(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", remote.ErrUnexpectedResponse, action, err)
	}
	if env.Status == "failed" || env.Retcode != 0 {
		return nil, remote.NewError(action, env.Retcode, env.Message, env.Wording)
	}
	return env.Data, nil
}

// callIdempotent retries read-only actions when the request never reached the remote end.
func (c *Client) callIdempotent(ctx context.Context, action string, params any) (json.RawMessage, error) {
	var data json.RawMessage
	err := retry.Do(
		func() error {
			var err error
			data, err = c.call(ctx, action, params)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var terr *transportError
			return errors.As(err, &terr)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Str("action", action).Uint("attempt", n+1).Msg("onebot: retrying call")
		}),
	)
	return data, err
}

func decodeListing(action string, data json.RawMessage) (*remote.Listing, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("%w: %s returned no data", remote.ErrUnexpectedResponse, action)
	}
	var l remote.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", remote.ErrUnexpectedResponse, action, err)
	}
	return &l, nil
}

func (c *Client) ListRoot(ctx context.Context, scope remote.Scope, pageSize int) (*remote.Listing, error) {
	data, err := c.callIdempotent(ctx, actionRootFiles, map[string]any{
		"group_id":   int64(scope),
		"file_count": pageSize,
	})
	if err != nil {
		return nil, err
	}
	return decodeListing(actionRootFiles, data)
}

func (c *Client) ListFolder(ctx context.Context, scope remote.Scope, folderID string, pageSize int) (*remote.Listing, error) {
	data, err := c.callIdempotent(ctx, actionFolderFiles, map[string]any{
		"group_id":   int64(scope),
		"folder_id":  folderID,
		"file_count": pageSize,
	})
	if err != nil {
		return nil, err
	}
	return decodeListing(actionFolderFiles, data)
}

func (c *Client) ResolveLink(ctx context.Context, scope remote.Scope, fileID string) (string, error) {
	data, err := c.callIdempotent(ctx, actionFileURL, map[string]any{
		"group_id": int64(scope),
		"file_id":  fileID,
		"busid":    defaultBusID,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.URL == "" {
		return "", fmt.Errorf("%w: %s returned no url", remote.ErrUnexpectedResponse, actionFileURL)
	}
	return out.URL, nil
}

// DeleteFile is never retried; the caller decides what to do with a failed attempt.
func (c *Client) DeleteFile(ctx context.Context, scope remote.Scope, fileID string) (*remote.DeleteResult, error) {
	data, err := c.call(ctx, actionDeleteFile, map[string]any{
		"group_id": int64(scope),
		"file_id":  fileID,
	})
	if err != nil {
		return nil, err
	}
	return remote.DecodeDeleteResult(data)
}

func (c *Client) GetQuota(ctx context.Context, scope remote.Scope) (*remote.Quota, error) {
	data, err := c.callIdempotent(ctx, actionFSInfo, map[string]any{
		"group_id": int64(scope),
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("%w: %s returned no data", remote.ErrUnexpectedResponse, actionFSInfo)
	}
	var q remote.Quota
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", remote.ErrUnexpectedResponse, actionFSInfo, err)
	}
	return &q, nil
}

// SendGroupMessage posts a plain text message to the scope's chat.
func (c *Client) SendGroupMessage(ctx context.Context, scope remote.Scope, text string) error {
	_, err := c.call(ctx, actionSendGroup, map[string]any{
		"group_id":    int64(scope),
		"message":     text,
		"auto_escape": true,
	})
	return err
}

func snippet(raw []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
