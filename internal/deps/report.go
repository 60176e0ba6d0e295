package deps

import (
	"fmt"

	"github.com/mattn/go-shellwords"

	"scribe/internal/config"
	"scribe/internal/media/ffprobe"
)

// Report checks everything the configured pipeline needs at runtime: the
// ffmpeg binary, the recognizer interpreter, and the work and state
// directories. ffprobe is reported as optional; only `scribe probe` needs it.
func Report(cfg *config.Config) []Status {
	results := []Status{CheckFFmpeg(cfg.Normalizer.FFmpegBinary)}
	results = append(results, checkRecognizerCommand(cfg.Recognizer.Command))
	results = append(results,
		CheckWritableDir("Work directory", cfg.Paths.WorkDir),
		CheckWritableDir("State directory", cfg.Paths.StateDir),
	)

	probe := CheckFFmpeg(ffprobe.BinaryFor(cfg.Normalizer.FFmpegBinary))
	probe.Name = "FFprobe"
	probe.Description = "Inspects input media for `scribe probe`"
	probe.Optional = true
	return append(results, probe)
}

func checkRecognizerCommand(command string) Status {
	req := Requirement{
		Name:        "Whisper interpreter",
		Description: "Runs the openai-whisper helper",
	}
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return Status{
			Name:        req.Name,
			Command:     command,
			Description: req.Description,
			Detail:      fmt.Sprintf("parse recognizer.command: %v", err),
		}
	}
	if len(args) > 0 {
		req.Command = args[0]
	}
	return CheckBinaries([]Requirement{req})[0]
}

// Satisfied reports whether every non-optional dependency is available.
func Satisfied(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			return false
		}
	}
	return true
}
