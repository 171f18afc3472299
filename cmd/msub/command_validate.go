package main

import (
	"fmt"

	"github.com/sourceplane/msub/internal/render"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [INPUT]",
	Short: "Check a command list and show the tasks it would create",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateJob(cmd, args)
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateJob(cmd *cobra.Command, args []string) error {
	job, err := prepareJob(cmd, args)
	if err != nil {
		return err
	}

	if _, err := render.NewRenderer().RenderScript(job.cfg, job.tasks); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, render.NewTaskViewer(job.cfg, job.tasks).ViewTasks())
	fmt.Fprintf(out, "✓ %d commands from %s are valid\n", len(job.tasks), job.input)
	return nil
}
