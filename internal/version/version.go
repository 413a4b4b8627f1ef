package version

import "runtime/debug"

const (
	AppName        = "groovebox"
	AppDescription = "Discord music bot with per-guild playback queues"
)

// Version is set at build time with -ldflags "-X github.com/keshon/groovebox/internal/version.Version=v1.2.3".
var Version = ""

// String returns the build version, falling back to module build info.
func String() string {
	if Version != "" {
		return Version
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-(no build info)"
	}
	if v := bi.Main.Version; v != "" {
		return v
	}
	return "unknown-(no version)"
}
