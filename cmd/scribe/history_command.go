package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded jobs and the transcript cache",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCacheCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failedOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context(), history.ListOptions{Limit: limit, FailedOnly: failedOnly})
			if err != nil {
				return err
			}
			if jsonOutput {
				if jobs == nil {
					jobs = []history.Job{}
				}
				return writeJSON(cmd, jobs)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					string(job.Mode),
					job.Model,
					jobLanguage(job),
					strconv.Itoa(job.SegmentCount),
					jobOutcome(job),
					job.Elapsed.Round(time.Millisecond).String(),
				})
			}
			headers := []string{"ID", "Created", "Mode", "Model", "Language", "Segments", "Outcome", "Elapsed"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}
			fmt.Fprintln(out, renderTable(out, headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed jobs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one recorded job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return fmt.Errorf("job %s not found", args[0])
			}
			return writeJSON(cmd, job)
		},
	}
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Total", strconv.Itoa(stats.Total)},
				{"Succeeded", strconv.Itoa(stats.Succeeded)},
				{"Failed", strconv.Itoa(stats.Failed)},
				{"Cache hits", strconv.Itoa(stats.CacheHits)},
				{"Normalization fallbacks", strconv.Itoa(stats.Fallbacks)},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete job records older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff (e.g. 720h)")
	return cmd
}

func newHistoryClearCacheCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcript(s)\n", removed)
			return nil
		},
	}
}

func jobOutcome(job history.Job) string {
	switch {
	case !job.Success:
		if job.ErrorMessage == "" {
			return "failed"
		}
		return "failed: " + job.ErrorMessage
	case job.CacheHit:
		return "ok (cached)"
	case job.Fallback:
		return "ok (fallback)"
	default:
		return "ok"
	}
}

func jobLanguage(job history.Job) string {
	if job.DetectedLanguage != "" {
		return job.DetectedLanguage
	}
	return job.LanguageHint
}
