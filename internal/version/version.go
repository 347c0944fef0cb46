// Package version reports the build of intmatrix and what it can drive.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/muurk/intmatrix/internal/protocol"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/intmatrix/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/intmatrix/internal/version.Commit=abc123"
//
// Unset values come from the VCS stamp in the build info, then "dev".
var (
	Version = ""
	Commit  = ""
)

// goVersion is the toolchain that built the binary, when known.
var goVersion = ""

func init() {
	info, ok := debug.ReadBuildInfo()
	if ok {
		goVersion = info.GoVersion
		fromVCS(info.Settings)
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromVCS(settings []debug.BuildSetting) {
	var revision, vcsTime string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			vcsTime = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		Commit = revision
		if dirty {
			Commit += "-dirty"
		}
	}
	if Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// SupportedModels returns the model names this build can drive.
func SupportedModels() []string {
	names := make([]string, len(protocol.Models))
	for i, m := range protocol.Models {
		names[i] = m.String()
	}
	return names
}

// Full is the multi-line banner printed by "intmatrix version".
func Full() string {
	var b strings.Builder
	fmt.Fprintf(&b, "intmatrix %s (commit: %s)\n", Version, Commit)
	if goVersion != "" {
		fmt.Fprintf(&b, "built with %s\n", goVersion)
	}
	fmt.Fprintf(&b, "models: %s", strings.Join(SupportedModels(), ", "))
	return b.String()
}

// UserAgent identifies intmatrix in requests to the device web interface.
func UserAgent() string {
	return "intmatrix/" + Version
}
