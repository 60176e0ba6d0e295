package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/subtitles"
)

type transcribeFlags struct {
	model     string
	language  string
	format    string
	subtitles bool
	output    string
	timeout   time.Duration
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file or render subtitles",
		Long: `Transcribe an audio or video file with Whisper.

Without --subtitles the transcript (text, language, timed segments) is printed
as JSON. With --subtitles, or any --format other than json, the transcript is
rendered as SRT, VTT, or a JSON subtitle document. Exactly one payload is
written to stdout; logs go to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, ctx, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Whisper model (tiny, base, small, medium, large)")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "Language hint (auto, en, fr, ...)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, srt, vtt)")
	cmd.Flags().BoolVar(&flags.subtitles, "subtitles", false, "Generate subtitles instead of a transcript")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Abort the job after this duration (0 disables)")
	return cmd
}

func runTranscribe(cmd *cobra.Command, ctx *commandContext, audioPath string, flags transcribeFlags) error {
	format, err := subtitles.ParseFormat(flags.format)
	if err != nil {
		_ = writeJSON(cmd, failureOutput{Success: false, Error: err.Error()})
		return err
	}

	rt, err := ctx.newRuntime(cmd)
	if err != nil {
		_ = writeJSON(cmd, failureOutput{Success: false, Error: err.Error()})
		return err
	}
	defer rt.Close()

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, flags.timeout)
		defer cancel()
	}

	opts := pipeline.Options{
		Model:    strings.TrimSpace(flags.model),
		Language: strings.TrimSpace(flags.language),
	}

	var result pipeline.Result
	if flags.subtitles || format != subtitles.FormatJSON {
		result, err = rt.pipeline.GenerateSubtitles(runCtx, audioPath, format, opts)
	} else {
		result, err = rt.pipeline.TranscribeWithTimestamps(runCtx, audioPath, opts)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("transcription timed out after %s: %w", flags.timeout, err)
		}
		_ = writeJSON(cmd, failureOutput{Success: false, Error: err.Error()})
		return err
	}

	payload, err := renderResult(result)
	if err != nil {
		return err
	}

	if path := strings.TrimSpace(flags.output); path != "" && result.Success() {
		if err := fileutil.WriteFileAtomic(path, payload, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Result saved to %s\n", path)
	} else if _, err := cmd.OutOrStdout().Write(payload); err != nil {
		return err
	}

	if !result.Success() {
		rt.logger.Debug("transcription failed", logging.String(logging.FieldJobID, result.JobID))
		return fmt.Errorf("transcription failed: %s", result.ErrorMessage())
	}
	return nil
}

type failureOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// renderResult returns the stdout payload: raw subtitle text for srt/vtt,
// indented JSON otherwise.
func renderResult(result pipeline.Result) ([]byte, error) {
	if result.Success() && result.Document != nil && result.Document.Format != subtitles.FormatJSON {
		content := result.Document.Content
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return []byte(content), nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return append(data, '\n'), nil
}
