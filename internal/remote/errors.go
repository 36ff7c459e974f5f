// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package remote

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

var (
	// ErrConnectionUnavailable is returned when no remote connection has been acquired.
	ErrConnectionUnavailable = errors.New("remote connection unavailable")

	// ErrInvalidScope is returned for scopes that cannot address a file store.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrUnexpectedResponse marks a response whose shape could not be decoded.
	ErrUnexpectedResponse = errors.New("unexpected response shape")
)

// CodeContentMissing is the platform code reported when a file's content has expired
// or been purged server side.
const CodeContentMissing = -134

var platformCodePattern = regexp.MustCompile(`\((-\d+)\)`)

// Error is a failed RPC call as reported by the remote end.
type Error struct {
	Action  string
	Retcode int
	Message string
	Wording string

	// PlatformCode is the store's own error code when the response carries one,
	// either explicitly or embedded in the wording as "(-134)". Zero when absent.
	PlatformCode int
}

// NewError builds an Error and extracts the platform code from the wording.
// A content-missing code anywhere in the wording or message wins over any
// other code; otherwise the last code in the wording, then the message, is kept.
func NewError(action string, retcode int, message, wording string) *Error {
	e := &Error{
		Action:  action,
		Retcode: retcode,
		Message: message,
		Wording: wording,
	}
	wordingCodes := parsePlatformCodes(wording)
	messageCodes := parsePlatformCodes(message)
	switch {
	case slices.Contains(wordingCodes, CodeContentMissing), slices.Contains(messageCodes, CodeContentMissing):
		e.PlatformCode = CodeContentMissing
	case len(wordingCodes) > 0:
		e.PlatformCode = wordingCodes[len(wordingCodes)-1]
	case len(messageCodes) > 0:
		e.PlatformCode = messageCodes[len(messageCodes)-1]
	}
	return e
}

func (e *Error) Error() string {
	text := e.Wording
	if text == "" {
		text = e.Message
	}
	if text == "" {
		return fmt.Sprintf("%s failed: retcode %d", e.Action, e.Retcode)
	}
	return fmt.Sprintf("%s failed: retcode %d: %s", e.Action, e.Retcode, text)
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

func parsePlatformCodes(text string) []int {
	matches := platformCodePattern.FindAllStringSubmatch(text, -1)
	codes := make([]int, 0, len(matches))
	for _, m := range matches {
		if code, err := strconv.Atoi(m[1]); err == nil {
			codes = append(codes, code)
		}
	}
	return codes
}
