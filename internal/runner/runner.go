package runner

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sourceplane/msub/internal/model"
	"golang.org/x/sys/unix"
)

const (
	// Sbatch is the default submission tool
	Sbatch = "sbatch"
	// WaitWrapper is the wrapper used for --hard_sync
	WaitWrapper = "sbatch_wait.sh"
)

// ExecFunc replaces the current process, returning only on failure
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Runner builds and launches the sbatch invocation for a compiled script.
type Runner struct {
	Stdout io.Writer
	Logger *slog.Logger
	DryRun bool

	// Hooks for tests, defaulting to the real process environment
	LookPath   func(file string) (string, error)
	Executable func() (string, error)
	Argv0      string
	Exec       ExecFunc
}

func NewRunner(stdout io.Writer, logger *slog.Logger, dryRun bool) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	argv0 := ""
	if len(os.Args) > 0 {
		argv0 = os.Args[0]
	}
	return &Runner{
		Stdout:     stdout,
		Logger:     logger,
		DryRun:     dryRun,
		LookPath:   exec.LookPath,
		Executable: os.Executable,
		Argv0:      argv0,
		Exec:       unix.Exec,
	}
}

// BuildSubmission assembles the flags and picks the executable. Nothing is run.
func (r *Runner) BuildSubmission(cfg model.JobConfig, scriptPath string) (*model.Submission, error) {
	flags := []string{"-p", cfg.Queue, "--nice=" + strconv.Itoa(cfg.Priority)}
	if cfg.Sync {
		// the short form -W is unreliable
		flags = append(flags, "--wait")
	}

	executable := Sbatch
	if cfg.HardSync {
		wrapper, err := r.ResolveWrapper()
		if err != nil {
			return nil, err
		}
		executable = wrapper
	}

	return &model.Submission{
		Executable: executable,
		Flags:      flags,
		ScriptPath: scriptPath,
		OutputDir:  cfg.StdoutDir,
	}, nil
}

// ResolveWrapper finds sbatch_wait.sh on $PATH, then beside the real location
// of this program, then beside the path it was invoked by.
func (r *Runner) ResolveWrapper() (string, error) {
	if _, err := r.LookPath(WaitWrapper); err == nil {
		return WaitWrapper, nil
	}

	for _, dir := range r.programDirs() {
		candidate := filepath.Join(dir, WaitWrapper)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", model.ErrWrapperNotFound
}

// programDirs lists the resolved and then the literal directory of this program
func (r *Runner) programDirs() []string {
	var dirs []string

	if r.Executable != nil {
		if exe, err := r.Executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
			dirs = append(dirs, filepath.Dir(exe))
		}
	}

	if r.Argv0 != "" {
		invoked := r.Argv0
		if !strings.ContainsRune(invoked, filepath.Separator) {
			// invoked through $PATH
			if found, err := r.LookPath(invoked); err == nil {
				invoked = found
			}
		}
		if abs, err := filepath.Abs(invoked); err == nil {
			dirs = append(dirs, filepath.Dir(abs))
		}
	}

	return dirs
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// Preview returns the shell command a live run would perform
func (r *Runner) Preview(sub *model.Submission) string {
	parts := append([]string{"mkdir -p", sub.OutputDir, ";"}, sub.Argv()...)
	return strings.Join(parts, " ")
}

// Launch submits the job. In dry-run mode it prints the command and returns
// nil. Otherwise it creates the output directory and replaces this process
// with the submission tool, so it only returns on failure.
func (r *Runner) Launch(sub *model.Submission) error {
	if r.DryRun {
		r.Logger.Info("Not running sbatch as --nosubmit was specified. Here's the command:")
		fmt.Fprintln(r.Stdout, r.Preview(sub))
		return nil
	}

	// sbatch needs the output directory before the job starts
	if err := os.MkdirAll(sub.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path, err := r.LookPath(sub.Executable)
	if err != nil {
		return fmt.Errorf("failed to launch %s: %w", sub.Executable, err)
	}

	argv := sub.Argv()
	r.Logger.Info("Running " + strings.Join(argv, " "))
	if err := r.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("failed to launch %s: %w", sub.Executable, err)
	}
	return nil
}
