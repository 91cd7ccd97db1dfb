package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info describes the running build.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// Release reports whether the build carries a stamped, clean version.
func (i *Info) Release() bool {
	return i.Version != "dev" && !i.Dirty
}

// GetVersionInfo returns the build information.
func GetVersionInfo() *Info {
	return infoFrom(debug.ReadBuildInfo())
}

func infoFrom(build *debug.BuildInfo, ok bool) *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if BuildTime != "" {
		info.BuildTime, _ = time.Parse(time.RFC3339, BuildTime)
	}
	if !ok {
		return info
	}
	for _, s := range build.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildTime.IsZero() {
				info.BuildTime, _ = time.Parse(time.RFC3339, s.Value)
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// String renders "0.3.0 (abc1234, dirty)".
func (i *Info) String() string {
	var extra []string
	if i.GitCommit != "" {
		extra = append(extra, i.GitCommit)
	}
	if i.Dirty {
		extra = append(extra, "dirty")
	}
	if len(extra) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(extra, ", "))
}

// UserAgent is sent with every hub request.
func UserAgent() string {
	info := GetVersionInfo()
	return fmt.Sprintf("modelkit/%s (%s; %s)", info.Version, info.GoVersion, info.Platform)
}
