// Package version reports what build of saugo is running: a version
// string injected at build time, or failing that the vcs revision from
// the embedded build info.
package version

import "runtime/debug"

// Version is set at build time, e.g.:
// go build -ldflags "-X github.com/saugns/saugo/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short vcs revision of the build, with a -dirty suffix
// when the working tree had local changes. Empty when the binary was
// built outside a checkout.
var Hash = vcsHash()

// VersionOrHash is what the CLIs print for -v.
var VersionOrHash = resolve()

func resolve() string {
	if Version != "" {
		return Version
	}
	return Hash
}

func vcsHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	modified := false
	for _, setting := range info.Settings {
		if setting.Key == "vcs.modified" && setting.Value == "true" {
			modified = true
			break
		}
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			hash := setting.Value
			if len(hash) > 7 {
				hash = hash[:7]
			}
			if modified {
				return hash + "-dirty"
			}
			return hash
		}
	}
	return ""
}
