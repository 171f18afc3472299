package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sourceplane/msub/internal/logging"
	"github.com/sourceplane/msub/internal/model"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

// runMsub executes the root command inside a fresh working directory
func runMsub(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCommands(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDryRunWritesScriptsWithoutClobbering(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "align.sh", "# samples\nbwa mem a.fq\nbwa mem b.fq\n.\nbwa mem never.fq\n")

	out, err := runMsub(t, dir, "--nosubmit", "-q", "qc", "--nice", "10", "--wait", "align.sh")
	if err != nil {
		t.Fatalf("msub returned error: %v", err)
	}
	if out != "mkdir -p slurm_output ; sbatch -p qc --nice=10 --wait align.sbatch\n" {
		t.Fatalf("unexpected preview %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "slurm_output")); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the output directory")
	}

	first := readFile(t, filepath.Join(dir, "align.sbatch"))
	if !strings.Contains(first, "#SBATCH -a 0-1 ") || strings.Contains(first, "never.fq") {
		t.Fatalf("unexpected script:\n%s", first)
	}

	out, err = runMsub(t, dir, "--nosubmit", "align.sh")
	if err != nil {
		t.Fatalf("second msub returned error: %v", err)
	}
	if !strings.HasSuffix(out, " align.1.sbatch\n") {
		t.Fatalf("expected second script to be align.1.sbatch, got %q", out)
	}
	second := readFile(t, filepath.Join(dir, "align.1.sbatch"))
	if !strings.Contains(second, "#SBATCH -o slurm_output/align.1.%A.%a.out") {
		t.Fatalf("renamed script should log under its own name:\n%s", second)
	}
	if readFile(t, filepath.Join(dir, "align.sbatch")) != first {
		t.Fatal("existing script was modified")
	}
}

func TestDirectiveInputWritesNothing(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "batch.sh", "#SBATCH -n 1\necho hi\n")

	_, err := runMsub(t, dir, "--nosubmit", "-i", "batch.sh")
	if !errors.Is(err, model.ErrInputRejected) {
		t.Fatalf("expected ErrInputRejected, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "batch.sbatch")); !os.IsNotExist(err) {
		t.Fatal("no script should be written for rejected input")
	}
}

func TestAmbiguousInput(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "a.sh", "echo a\n")

	if _, err := runMsub(t, dir, "--nosubmit", "-i", "a.sh", "a.sh"); !errors.Is(err, model.ErrAmbiguousInput) {
		t.Fatalf("expected ErrAmbiguousInput, got %v", err)
	}
}

func TestInvalidHoldWritesNothing(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "a.sh", "echo a\n")

	if _, err := runMsub(t, dir, "--nosubmit", "--hold", "12,x", "a.sh"); !errors.Is(err, model.ErrInvalidDependency) {
		t.Fatalf("expected ErrInvalidDependency, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.sbatch")); !os.IsNotExist(err) {
		t.Fatal("no script should be written for an invalid hold")
	}
}

func TestNegativeLimitsWriteNothing(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "a.sh", "echo a\n")

	for _, args := range [][]string{
		{"--nosubmit", "--mem", "-5", "a.sh"},
		{"--nosubmit", "--max-running-task", "-1", "a.sh"},
		{"--nosubmit", "--cpu", "0", "a.sh"},
	} {
		if _, err := runMsub(t, dir, args...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "a.sbatch")); !os.IsNotExist(err) {
		t.Fatal("no script should be written for out-of-range limits")
	}
}

func TestInputNamedLikeSubcommand(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "render", "echo one\n")

	out, err := runMsub(t, dir, "--nosubmit", "-i", "render")
	if err != nil {
		t.Fatalf("msub returned error: %v", err)
	}
	if !strings.HasSuffix(out, " render.sbatch\n") {
		t.Fatalf("expected preview of render.sbatch, got %q", out)
	}
	if !strings.Contains(readFile(t, filepath.Join(dir, "render.sbatch")), "0) echo one\n") {
		t.Fatal("script should hold the commands from the input file")
	}
}

func TestInterruptAbortsReading(t *testing.T) {
	// keep the test binary alive whether or not the reader has armed its handler yet
	held := make(chan os.Signal, 1)
	signal.Notify(held, os.Interrupt)
	defer signal.Stop(held)

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() {
		_, err := readCommands(context.Background(), pr)
		done <- err
	}()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if !errors.Is(err, model.ErrAborted) {
				t.Fatalf("expected ErrAborted, got %v", err)
			}
			return
		case <-tick.C:
			if err := unix.Kill(unix.Getpid(), unix.SIGINT); err != nil {
				t.Fatal(err)
			}
		case <-timeout:
			t.Fatal("reading was not interrupted")
		}
	}
}

func TestRenderCommandUsesProfile(t *testing.T) {
	dir := t.TempDir()
	profile := writeCommands(t, dir, "profile.yaml", "queue: analysis\ncpu: 4\nnoemail: true\nstdoutdir: logs\n")
	t.Setenv("MSUB_PROFILE", profile)
	writeCommands(t, dir, "cmds.txt", "echo one\n")

	out, err := runMsub(t, dir, "render", "--stdoutdir", "out", "-n", "named", "cmds.txt")
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	for _, s := range []string{
		"#SBATCH -c 4 ",
		"#SBATCH --mem 24576 ",
		"#SBATCH --mail-type=NONE",
		"#SBATCH -o out/named.%A.%a.out",
		"0) echo one\n;;\n",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("expected rendered script to contain %q\n%s", s, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "named.sbatch")); !os.IsNotExist(err) {
		t.Fatal("render must not write a script")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "cmds.sh", "echo one\necho two\n")

	out, err := runMsub(t, dir, "validate", "--max_running_task", "1", "cmds.sh")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	for _, s := range []string{"cmds [0-1%1]", "echo two", "✓ 2 commands from cmds.sh are valid"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected validate output to contain %q\n%s", s, out)
		}
	}

	writeCommands(t, dir, "empty.sh", "# nothing\n")
	if _, err := runMsub(t, dir, "validate", "empty.sh"); !errors.Is(err, model.ErrEmptyCommandList) {
		t.Fatalf("expected ErrEmptyCommandList, got %v", err)
	}
}

func TestMissingExplicitProfile(t *testing.T) {
	t.Setenv("MSUB_PROFILE", "")
	dir := t.TempDir()
	writeCommands(t, dir, "a.sh", "echo a\n")

	if _, err := runMsub(t, dir, "render", "--profile", "missing.yaml", "a.sh"); err == nil {
		t.Fatal("expected error for missing --profile file")
	}
}

func TestExitCode(t *testing.T) {
	var stderr, logs bytes.Buffer
	log := logging.New(&logs, false)

	if code := exitCode(model.ErrAborted, &stderr, log); code != 1 {
		t.Fatalf("abort exit code = %d", code)
	}
	if stderr.String() != "..Aborted\n" || logs.Len() != 0 {
		t.Fatalf("abort should print only ..Aborted, got %q / %q", stderr.String(), logs.String())
	}

	if code := exitCode(model.ErrInputRejected, &stderr, log); code != 1 {
		t.Fatalf("rejected exit code = %d", code)
	}
	if !strings.HasPrefix(logs.String(), "ERROR: input appears to be a SLURM or SGE batch file") {
		t.Fatalf("unexpected log %q", logs.String())
	}
}
