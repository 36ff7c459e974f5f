// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package remote describes the group file store reachable over RPC: the calls the scanner
// consumes, their typed results and the errors they can fail with.
package remote

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Scope identifies the container whose file store is operated on (a chat group).
type Scope int64

func (s Scope) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// Validate rejects scopes that can never address a remote store.
func (s Scope) Validate() error {
	if s <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidScope, int64(s))
	}
	return nil
}

// ParseScope parses a decimal scope id.
func ParseScope(raw string) (Scope, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidScope, raw)
	}
	scope := Scope(n)
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	return scope, nil
}

// Client is the RPC surface of the remote file store.
type Client interface {
	ListRoot(ctx context.Context, scope Scope, pageSize int) (*Listing, error)
	ListFolder(ctx context.Context, scope Scope, folderID string, pageSize int) (*Listing, error)
	ResolveLink(ctx context.Context, scope Scope, fileID string) (string, error)
	DeleteFile(ctx context.Context, scope Scope, fileID string) (*DeleteResult, error)
	GetQuota(ctx context.Context, scope Scope) (*Quota, error)
}

// Factory establishes a client connection.
type Factory func(ctx context.Context) (Client, error)

// Handle is the process-wide, lazily acquired connection to the remote store.
// Once a client is cached it is only read.
type Handle struct {
	mu      sync.RWMutex
	client  Client
	factory Factory
	group   singleflight.Group
}

// NewHandle returns a handle that dials through factory on first use.
// A nil factory means the client must be provided later through Set.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Set caches an already established client. The first caller wins.
func (h *Handle) Set(client Client) {
	if h == nil || client == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		h.client = client
	}
}

// Available reports whether a client has been acquired.
func (h *Handle) Available() bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client != nil
}

// Get returns the cached client, acquiring it once if a factory is configured.
// It never blocks waiting for someone else to call Set.
func (h *Handle) Get(ctx context.Context) (Client, error) {
	if h == nil {
		return nil, ErrConnectionUnavailable
	}

	h.mu.RLock()
	client, factory := h.client, h.factory
	h.mu.RUnlock()
	if client != nil {
		return client, nil
	}
	if factory == nil {
		return nil, ErrConnectionUnavailable
	}

	v, err, _ := h.group.Do("client", func() (any, error) {
		h.mu.RLock()
		cached := h.client
		h.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		c, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrConnectionUnavailable
		}
		h.Set(c)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	return v.(Client), nil
}
