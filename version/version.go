package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version can be set at link time:
// go build -ldflags "-X github.com/jackerseq/jacker/version.Version=$(git describe --dirty)"
var Version string

// Info describes the build of the running binary.
type Info struct {
	Version   string
	Revision  string
	Modified  bool
	GoVersion string
}

// Get reads the build info embedded by the Go toolchain. Version overrides
// the module version when set.
func Get() Info {
	info := Info{Version: Version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	return info
}

// Short returns the version, or the abbreviated revision when the version is
// unknown.
func (i Info) Short() string {
	if i.Version != "" {
		return i.Version
	}
	if i.Revision == "" {
		return "unknown"
	}
	rev := i.Revision
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if i.Modified {
		rev += "-dirty"
	}
	return rev
}

func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Short())
	if i.Revision != "" && i.Version != "" {
		fmt.Fprintf(&b, " (%s)", i.Revision)
	}
	if i.GoVersion != "" {
		fmt.Fprintf(&b, " %s", i.GoVersion)
	}
	return b.String()
}
