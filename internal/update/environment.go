// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"errors"
	"os"
	"runtime"
	"strings"
)

var ErrSelfUpdateUnsupported = errors.New("self-update is not supported in this environment")

// isRunningInContainer looks for the usual docker and podman markers.
func isRunningInContainer() bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	for _, indicator := range []string{"docker", "kubepods", "containerd", "libpod"} {
		if strings.Contains(content, indicator) {
			return true
		}
	}
	return false
}

// Windows binaries cannot replace themselves while running.
func isSelfUpdateSupportedPlatform() bool {
	return runtime.GOOS != "windows"
}

// SelfUpdateSupported reports whether Run may replace the running binary.
// Container images are updated by pulling a new image instead.
func SelfUpdateSupported() bool {
	return isSelfUpdateSupportedPlatform() && !isRunningInContainer()
}
