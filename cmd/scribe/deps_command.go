package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/deps"
)

type dependencyOutput struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external dependencies (ffmpeg, whisper interpreter, directories)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.Report(cfg)

			if jsonOutput {
				items := make([]dependencyOutput, 0, len(statuses))
				for _, status := range statuses {
					items = append(items, dependencyOutput{
						Name:        status.Name,
						Command:     status.Command,
						Description: status.Description,
						Optional:    status.Optional,
						Available:   status.Available,
						Detail:      status.Detail,
					})
				}
				if err := writeJSON(cmd, items); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), status.Detail})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Dependency", "Command", "Available", "Detail"}, rows, nil))
			}

			if !deps.Satisfied(statuses) {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
