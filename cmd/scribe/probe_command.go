package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <media-file>",
		Short: "Show the audio streams ffprobe finds in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			binary := ffprobe.BinaryFor(cfg.Normalizer.FFmpegBinary)
			result, err := ffprobe.Inspect(cmd.Context(), binary, args[0])
			if err != nil {
				return err
			}
			summary := result.Summarize(args[0])
			if jsonOutput {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:      %s\n", summary.Path)
			fmt.Fprintf(out, "Container: %s\n", summary.Container)
			fmt.Fprintf(out, "Duration:  %s\n", summary.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Video:     %s\n", yesNo(summary.HasVideo))
			if len(summary.Audio) == 0 {
				fmt.Fprintln(out, "No audio streams found")
				return nil
			}
			rows := make([][]string, 0, len(summary.Audio))
			for _, stream := range summary.Audio {
				rows = append(rows, []string{
					strconv.Itoa(stream.Index),
					stream.Codec,
					strconv.Itoa(stream.SampleRate),
					strconv.Itoa(stream.Channels),
					stream.Language,
				})
			}
			aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable(out, []string{"Stream", "Codec", "Sample rate", "Channels", "Language"}, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
