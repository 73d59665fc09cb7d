package version

import "runtime/debug"

// Version is the release version, set at build time with -ldflags. When
// unset, the module version embedded by go install is used instead.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		Version = v
	}
}
