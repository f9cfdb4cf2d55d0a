package runstore

import (
	"os/exec"
	"runtime"
	"strings"
)

// GitShortRev returns the short source-control revision of the repository at
// dir. This is a best-effort capability: on any failure (git absent, not a
// repository, detached worktree) it reports ok=false and never propagates
// the failure.
func GitShortRev(dir string) (rev string, ok bool) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", false
	}
	rev = strings.TrimSpace(string(out))
	return rev, rev != ""
}

// EnvInfo captures the runtime environment recorded in the manifest.
type EnvInfo struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// CurrentEnv reports the environment of the running process.
func CurrentEnv() EnvInfo {
	return EnvInfo{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
