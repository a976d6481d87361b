package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/topology"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info describes the binary and the storage formats it reads and writes.
type Info struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	BuildTime     string `json:"build_time" yaml:"build_time"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	FormatVersion int    `json:"format_version" yaml:"format_version"`
	ViewLayout    int    `json:"view_layout" yaml:"view_layout"`
}

// Get returns the build information.
func Get() Info {
	info := Info{
		Version:       Version,
		Commit:        Commit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
		FormatVersion: int(rdg.CurrentVersion),
		ViewLayout:    int(topology.LayoutVersion),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
}

// String returns a one-line version string.
func String() string {
	info := Get()
	return info.Version + " (" + info.Commit + ") built at " + info.BuildTime +
		", format v" + strconv.Itoa(info.FormatVersion)
}
