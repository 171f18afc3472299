package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sourceplane/msub/internal/loader"
	"github.com/sourceplane/msub/internal/model"
	"github.com/sourceplane/msub/internal/normalize"
	"github.com/sourceplane/msub/internal/render"
	"github.com/sourceplane/msub/internal/runner"
	"github.com/sourceplane/msub/internal/writer"
	"github.com/spf13/cobra"
)

// profileKeys are the flags a profile may supply defaults for
var profileKeys = []string{"queue", "priority", "stdoutdir", "cpu", "mem", "noemail", "max_running_task", "begin", "final"}

// preparedJob is a validated command list and the config to compile it with
type preparedJob struct {
	cfg   model.JobConfig
	tasks model.TaskList
	input string
}

// submitJob compiles the command list, writes the script and submits it.
// On a live run it does not return unless the launch fails.
func submitJob(cmd *cobra.Command, args []string) error {
	job, err := prepareJob(cmd, args)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	script, err := renderer.RenderScript(job.cfg, job.tasks)
	if err != nil {
		return err
	}

	scriptPath, err := writeScript(renderer, job, script)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("%d commands written to %s", len(job.tasks), scriptPath))

	r := runner.NewRunner(cmd.OutOrStdout(), logger, job.cfg.NoSubmit)
	sub, err := r.BuildSubmission(job.cfg, scriptPath)
	if err != nil {
		return err
	}
	return r.Launch(sub)
}

// writeScript writes the script under the first free name. Output paths in
// the header follow the file name, so a renamed script is rendered again.
func writeScript(renderer *render.Renderer, job *preparedJob, script *model.CompiledScript) (string, error) {
	return writer.New(nil).WriteExclusive(script.Name, func(actual string, out io.Writer) error {
		text := script.Text
		if actual != script.Name {
			cfg := job.cfg
			cfg.Name = strings.TrimSuffix(filepath.Base(actual), normalize.ScriptExt)
			renamed, err := renderer.RenderScript(cfg, job.tasks)
			if err != nil {
				return err
			}
			text = renamed.Text
		}
		_, err := io.WriteString(out, text)
		return err
	})
}

// prepareJob resolves the configuration and reads the command list
func prepareJob(cmd *cobra.Command, args []string) (*preparedJob, error) {
	positional := ""
	if len(args) > 0 {
		positional = args[0]
	}

	input, err := loader.OpenInput(positional, inputFile)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	cfg, err := buildConfig(cmd, input.Path)
	if err != nil {
		return nil, err
	}

	if input.Interactive {
		logger.Info("Type commands, one per line. Press Ctrl+D when done, or Ctrl+C to abort.")
	} else {
		logger.Info(fmt.Sprintf("Reading commands from %s.", input.Name))
	}

	tasks, err := readCommands(cmd.Context(), input)
	if err != nil {
		return nil, err
	}

	return &preparedJob{cfg: cfg, tasks: tasks, input: input.Name}, nil
}

// readCommands reads the command list with Ctrl+C turned into ErrAborted.
// The handler is released once reading ends, so an interrupt during the
// launch that follows keeps its default behaviour.
func readCommands(ctx context.Context, r io.Reader) (model.TaskList, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return loader.ReadCommands(ctx, r)
}

// buildConfig merges built-in defaults, the profile and explicit flags
func buildConfig(cmd *cobra.Command, inputPath string) (model.JobConfig, error) {
	cfg := model.JobConfig{
		Name:           normalize.JobName(jobName, inputPath),
		CPU:            cpuCount,
		Mem:            memLimit,
		Environ:        parallelEnv,
		StdoutDir:      stdoutDir,
		Begin:          beginCmd,
		Final:          finalCmd,
		Hold:           holdSpec,
		NoEmail:        noEmail,
		MaxRunningTask: maxRunningTask,
		Queue:          queue,
		Priority:       priority,
		Sync:           syncWait,
		HardSync:       hardSync,
		NoSubmit:       noSubmit,
	}

	path, required := profileFile, true
	if path == "" {
		path, required = os.Getenv(loader.ProfileEnv), false
	}
	profile, err := loader.LoadProfile(path, required)
	if err != nil {
		return cfg, err
	}

	explicit := make(map[string]bool, len(profileKeys))
	for _, key := range profileKeys {
		explicit[key] = cmd.Flags().Changed(key)
	}
	profile.Apply(&cfg, explicit)

	return cfg, normalize.CheckLimits(cfg)
}
