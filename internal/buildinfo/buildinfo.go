// Package buildinfo exposes version metadata stamped at link time,
// falling back to the Go runtime's embedded VCS settings.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Overridden via -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = ""
)

// Info is the resolved version metadata for display.
type Info struct {
	Version string
	Commit  string
}

// Current resolves the linker values against whatever the binary's
// embedded build settings can fill in.
func Current() Info {
	info := Info{
		Version: strings.TrimSpace(Version),
		Commit:  strings.TrimSpace(Commit),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		dirty := false
		rev := ""
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				rev = s.Value
			case "vcs.modified":
				dirty = s.Value == "true"
			}
		}
		if info.Commit == "" && rev != "" {
			if len(rev) > 12 {
				rev = rev[:12]
			}
			if dirty {
				rev += "-dirty"
			}
			info.Commit = rev
		}
	}
	if info.Version == "" {
		info.Version = "unknown"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// String renders "version (commit)" with unknown parts omitted.
func (i Info) String() string {
	if i.Commit == "unknown" {
		return i.Version
	}
	return i.Version + " (" + i.Commit + ")"
}
