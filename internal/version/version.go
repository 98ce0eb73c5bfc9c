// Package version reports the build version of x3270script.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule = "pkt.systems/x3270script"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/x3270script/internal/version.buildVersion=...".
var buildVersion = ""

// Info is the version report printed by the version command.
type Info struct {
	Module   string
	Version  string
	Revision string
	Dirty    bool
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return Read().Version
}

// Module returns the main module path.
func Module() string {
	return Read().Module
}

// Read collects version details from the linker flag and the embedded build info.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		info = nil
	}
	return fromBuildInfo(info, buildVersion)
}

func fromBuildInfo(info *debug.BuildInfo, linked string) Info {
	out := Info{Module: defaultModule, Version: unknown}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
	}
	vcs := readVCS(info)
	out.Revision, out.Dirty = vcs.revision, vcs.modified
	switch {
	case strings.TrimSpace(linked) != "":
		out.Version = strings.TrimSpace(linked)
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSpace(info.Main.Version)
	case vcs.pseudo() != "":
		out.Version = vcs.pseudo()
	}
	out.Version = strings.TrimSuffix(out.Version, "+dirty")
	return out
}

// String renders the version with a +dirty suffix for modified trees.
func (i Info) String() string {
	if i.Dirty {
		return i.Version + "+dirty"
	}
	return i.Version
}

type vcsInfo struct {
	revision string
	when     time.Time
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	if info == nil {
		return out
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.when = parsed.UTC()
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

func (v vcsInfo) pseudo() string {
	if v.revision == "" || v.when.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.when.Format("20060102150405") + "-" + rev
}
