// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxDrain bounds how much of an unread body is discarded before closing.
const maxDrain = 256 << 10

var ErrBodyTooLarge = errors.New("response body too large")

// DrainAndClose discards what is left of the body, up to maxDrain, so the
// connection can be reused, then closes it.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
	_ = resp.Body.Close()
}

// ReadBody reads at most limit bytes of the body. A longer body returns
// ErrBodyTooLarge. The caller still closes the body.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	return raw, nil
}
