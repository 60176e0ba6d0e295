package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// CheckFFmpeg reports the FFmpeg binary the audio normalizer will execute.
// An explicit path is checked directly; a bare name resolves through PATH.
func CheckFFmpeg(binary string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Normalizes uploaded audio to 16 kHz mono PCM",
	}
	name := strings.TrimSpace(binary)
	if name == "" {
		name = "ffmpeg"
	}
	result.Command = name

	if strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil {
			result.Detail = fmt.Sprintf("binary %q not found", name)
			return result
		}
		if !isExecutable(info) {
			result.Detail = fmt.Sprintf("binary %q is not executable", name)
			return result
		}
		result.Available = true
		return result
	}

	resolved, err := exec.LookPath(name)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", name)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

// CheckWritableDir reports whether dir exists (or can be created) and is
// writable by the current process.
func CheckWritableDir(name, dir string) Status {
	result := Status{
		Name:        name,
		Command:     dir,
		Description: "Writable directory",
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		result.Detail = "directory not configured"
		return result
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Detail = fmt.Sprintf("create directory: %v", err)
		return result
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		result.Detail = fmt.Sprintf("directory not writable: %v", err)
		return result
	}
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
