package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Result is the decoded ffprobe report.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Tags       struct {
		Language string `json:"language"`
	} `json:"tags"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// AudioStream is the transcription-relevant view of one audio stream.
type AudioStream struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Language   string `json:"language,omitempty"`
}

// Summary is what `scribe probe` reports for an input file.
type Summary struct {
	Path      string        `json:"path"`
	Container string        `json:"container"`
	Duration  time.Duration `json:"duration_ns"`
	SizeBytes int64         `json:"size_bytes"`
	Audio     []AudioStream `json:"audio_streams"`
	HasVideo  bool          `json:"has_video"`
}

// Inspect executes ffprobe against path and decodes the JSON response.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return Parse(output)
}

// Parse decodes a raw ffprobe JSON report.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Summarize reduces the report to audio streams and container facts.
func (r Result) Summarize(path string) Summary {
	summary := Summary{
		Path:      path,
		Container: r.Format.FormatName,
		Duration:  secondsToDuration(r.Format.Duration),
		SizeBytes: parseInt(r.Format.Size),
		Audio:     []AudioStream{},
	}
	for _, stream := range r.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "audio":
			summary.Audio = append(summary.Audio, AudioStream{
				Index:      stream.Index,
				Codec:      stream.CodecName,
				SampleRate: int(parseInt(stream.SampleRate)),
				Channels:   stream.Channels,
				Language:   stream.Tags.Language,
			})
		case "video":
			summary.HasVideo = true
		}
	}
	if summary.Duration == 0 {
		for _, stream := range r.Streams {
			if d := secondsToDuration(stream.Duration); d > summary.Duration {
				summary.Duration = d
			}
		}
	}
	return summary
}

// BinaryFor returns the ffprobe binary that ships alongside ffmpeg. A bare
// "ffmpeg" resolves to a bare "ffprobe" looked up on PATH.
func BinaryFor(ffmpeg string) string {
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffmpeg == "" {
		return "ffprobe"
	}
	dir, base := filepath.Split(ffmpeg)
	if strings.Contains(base, "ffmpeg") {
		base = strings.Replace(base, "ffmpeg", "ffprobe", 1)
	} else {
		base = "ffprobe"
	}
	return dir + base
}

func secondsToDuration(value string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func parseInt(value string) int64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return int64(parsed)
}
