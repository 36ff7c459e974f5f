// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventScanCompleted EventType = "scan_completed"
	EventScanFailed    EventType = "scan_failed"
	EventQuotaWarning  EventType = "quota_warning"
)

type EventDefinition struct {
	Type        EventType `json:"type"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
}

var eventDefinitions = []EventDefinition{
	{Type: EventScanCompleted, Label: "Scan completed", Description: "A file scan run finishes (including clean runs and runs with per-file failures)."},
	{Type: EventScanFailed, Label: "Scan failed", Description: "A file scan run stops on a fatal error."},
	{Type: EventQuotaWarning, Label: "Storage quota warning", Description: "A scope's file count or used space reaches its configured limit."},
}

var eventTypeIndex = func() map[string]int {
	idx := make(map[string]int, len(eventDefinitions))
	for i, def := range eventDefinitions {
		idx[string(def.Type)] = i
	}
	return idx
}()

func EventDefinitions() []EventDefinition {
	out := make([]EventDefinition, len(eventDefinitions))
	copy(out, eventDefinitions)
	return out
}

func IsValidEventType(value string) bool {
	_, ok := eventTypeIndex[value]
	return ok
}

// NormalizeEventTypes validates and deduplicates event type names, returning them
// in definition order. An empty input means all events.
func NormalizeEventTypes(input []string) ([]string, error) {
	if len(input) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(input))
	for _, raw := range input {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if !IsValidEventType(value) {
			return nil, fmt.Errorf("unknown event type: %s", value)
		}
		seen[value] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for _, def := range eventDefinitions {
		value := string(def.Type)
		if _, ok := seen[value]; ok {
			out = append(out, value)
		}
	}

	return out, nil
}
