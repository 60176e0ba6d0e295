package deps

import (
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckFFmpegExplicitPath(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	status := CheckFFmpeg(ffmpeg)
	if !status.Available || status.Command != ffmpeg {
		t.Fatalf("expected explicit ffmpeg to be available, got %#v", status)
	}

	notExec := filepath.Join(dir, "ffmpeg-noexec")
	if err := os.WriteFile(notExec, []byte("data"), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	status = CheckFFmpeg(notExec)
	if status.Available {
		t.Fatalf("expected non-executable file to be unavailable")
	}
}

func TestCheckFFmpegFromPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)
	status := CheckFFmpeg("")
	if !status.Available {
		t.Fatalf("expected ffmpeg resolved from PATH, got %#v", status)
	}
	if status.Command != filepath.Join(dir, "ffmpeg") {
		t.Fatalf("unexpected resolved command %q", status.Command)
	}

	t.Setenv("PATH", t.TempDir())
	if CheckFFmpeg("ffmpeg").Available {
		t.Fatal("expected missing ffmpeg to be unavailable")
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	status := CheckWritableDir("Work directory", dir)
	if !status.Available {
		t.Fatalf("expected writable dir, got %#v", status)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory to be created: %v", err)
	}
	if CheckWritableDir("Empty", " ").Available {
		t.Fatal("expected unconfigured directory to be unavailable")
	}
}

func TestReportUsesConfiguredCommands(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	python := filepath.Join(binDir, "python3")
	if err := os.WriteFile(python, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := config.Default()
	cfg.Normalizer.FFmpegBinary = ffmpeg
	cfg.Recognizer.Command = python + " -u"
	cfg.Paths.WorkDir = filepath.Join(t.TempDir(), "work")
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")

	report := Report(&cfg)
	if len(report) != 5 {
		t.Fatalf("expected 5 statuses, got %d", len(report))
	}
	probe := report[4]
	if probe.Name != "FFprobe" || !probe.Optional || probe.Available {
		t.Fatalf("expected missing optional ffprobe next to the stub ffmpeg: %#v", probe)
	}
	for _, status := range report[:4] {
		if !status.Available {
			t.Fatalf("expected %s to be available: %#v", status.Name, status)
		}
	}
	if report[1].Command != python {
		t.Fatalf("expected interpreter %q, got %q", python, report[1].Command)
	}
	if !Satisfied(report) {
		t.Fatal("expected report to be satisfied")
	}

	cfg.Recognizer.Command = "'unterminated"
	report = Report(&cfg)
	if report[1].Available || Satisfied(report) {
		t.Fatalf("expected unparsable command to be unavailable: %#v", report[1])
	}
}

func TestReportResolvesBinariesFromPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	report := Report(cfg)
	binDir := filepath.Join(testsupport.BaseDir(cfg), "bin")
	if report[0].Command != filepath.Join(binDir, "ffmpeg") {
		t.Fatalf("expected ffmpeg from stub PATH, got %q", report[0].Command)
	}
	if report[1].Command != "python3" || !report[1].Available {
		t.Fatalf("expected python3 to resolve on the stub PATH: %#v", report[1])
	}
	if !Satisfied(report) {
		t.Fatalf("expected stubbed dependencies to satisfy the report: %#v", report)
	}
}
