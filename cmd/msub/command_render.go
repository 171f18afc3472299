package main

import (
	"fmt"

	"github.com/sourceplane/msub/internal/render"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [INPUT]",
	Short: "Print the compiled array-job script without writing or submitting it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderJob(cmd, args)
	},
}

func registerRenderCommand(root *cobra.Command) {
	root.AddCommand(renderCmd)
}

func renderJob(cmd *cobra.Command, args []string) error {
	job, err := prepareJob(cmd, args)
	if err != nil {
		return err
	}

	script, err := render.NewRenderer().RenderScript(job.cfg, job.tasks)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), script.Text)
	return nil
}
