/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Skuld TV.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/skuld_tv/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the git revision, set at build time.
var Commit = "unknown"

// String returns a human readable version line.
func String() string {
	return fmt.Sprintf("skuldtv %s (%s) %s/%s %s", Version, Commit, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
