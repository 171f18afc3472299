package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

var (
	inputFile      string
	jobName        string
	beginCmd       string
	finalCmd       string
	cpuCount       int
	memLimit       int
	parallelEnv    string
	holdSpec       string
	noSubmit       bool
	maxRunningTask int
	noEmail        bool
	syncWait       bool
	hardSync       bool
	priority       int
	queue          string
	stdoutDir      string
	quiet          bool
	profileFile    string
)

// flagAliases maps alternative spellings onto the registered flag names
var flagAliases = map[string]string{
	"wait":             "sync",
	"hard-sync":        "hard_sync",
	"nice":             "priority",
	"partition":        "queue",
	"max-running-task": "max_running_task",
}

var rootCmd = &cobra.Command{
	Use:   "msub [flags] [INPUT]",
	Short: "Job submission wrapper for SLURM",
	Long: `Job submission wrapper for SLURM. Provide one task per line, either from a
file or from STDIN. A .sbatch script will be created in the current directory
and submitted to SLURM as an array job.

An input file named like a subcommand (validate, render) is taken as that
subcommand; pass it with -i instead, e.g. "msub -i render".

Flag aliases: --wait (--sync), --hard-sync (--hard_sync), --nice (--priority),
--partition (--queue), --max-running-task (--max_running_task).`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJob(cmd, args)
	},
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&beginCmd, "begin", "b", "", "Commands to run before each task")
	flags.IntVarP(&cpuCount, "cpu", "c", 1, "Number of CPUs to assign per task")
	flags.IntVarP(&memLimit, "mem", "m", 0, "Memory to assign per task, in MB (default 6144 per CPU)")
	flags.StringVarP(&parallelEnv, "environ", "e", "", "Parallel environment. For compatibility with the old cluster, 'single 4' will set --cpu 4")
	flags.StringVarP(&finalCmd, "final", "f", "", "Commands to run after each task")
	flags.StringVar(&holdSpec, "hold", "", "Hold until the given job (or comma-separated jobs) has completed successfully, or a SLURM --dependency string")
	flags.BoolVar(&noSubmit, "nosubmit", false, "Don't actually submit the job, just make the script")
	flags.IntVar(&maxRunningTask, "max_running_task", 0, "Limit the max number of tasks that can run at once")
	flags.StringVarP(&inputFile, "input", "i", "", "Input file (default STDIN)")
	flags.StringVarP(&jobName, "name", "n", "", "Prefix name of the script, also used as the job name")
	flags.BoolVar(&noEmail, "noemail", false, "Don't e-mail the user when jobs complete")
	flags.BoolVar(&syncWait, "sync", false, "Wait for the jobs to finish before returning")
	flags.BoolVar(&hardSync, "hard_sync", false, "Use the sbatch_wait.sh wrapper for more reliable synchronization")
	flags.IntVarP(&priority, "priority", "p", 50, "Task niceness (>50 for low priority, 0-49 for high priority)")
	flags.StringVarP(&queue, "queue", "q", "global", "SLURM queue (partition) to use")
	flags.StringVarP(&stdoutDir, "stdoutdir", "s", "slurm_output", "Directory for stdout/stderr files")
	flags.BoolVarP(&quiet, "quiet", "z", false, "Suppress most logging messages")
	flags.StringVar(&profileFile, "profile", "", "YAML file of site defaults (default $MSUB_PROFILE)")

	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)

	registerValidateCommand(rootCmd)
	registerRenderCommand(rootCmd)
}
