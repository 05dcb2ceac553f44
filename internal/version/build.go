package version

import (
	"runtime/debug"
)

// Resolve picks the version string to report. An ldflags-injected version
// wins; otherwise the module version recorded by `go install module@tag`;
// otherwise a devel+<rev>[+dirty] marker from VCS settings.
func Resolve(injected string, info *debug.BuildInfo) string {
	if !IsDevelopmentVersion(injected) || info == nil {
		return injected
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if rev == "" {
		return injected
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	v := "devel+" + rev
	if settings["vcs.modified"] == "true" {
		v += "+dirty"
	}
	return v
}
