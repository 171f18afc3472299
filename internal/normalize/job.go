package normalize

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sourceplane/msub/internal/model"
)

const (
	// ScriptExt is appended to the job name to form the script file name
	ScriptExt = ".sbatch"

	// MemPerCPU is the default memory in MB granted per core
	MemPerCPU = 6144

	stdinJobName = "msub_stdin"
	namePrefix   = "msub"
)

// JobName derives the job name. An explicit name wins, then the input file's
// base name without a trailing ".sh", then a fixed name for stdin.
func JobName(explicit, inputPath string) string {
	name := explicit
	if name == "" {
		if inputPath == "" || inputPath == "-" {
			name = stdinJobName
		} else {
			name = strings.TrimSuffix(filepath.Base(inputPath), ".sh")
		}
	}

	// SLURM job names and file names both misbehave with a leading dot
	if name == "" || strings.HasPrefix(name, ".") {
		name = namePrefix + name
	}
	return name
}

// CPUCount returns the cores per task. The legacy parallel environment string
// ("single 4") overrides the count while it is still 1.
func CPUCount(cfg model.JobConfig) (int, error) {
	if cfg.CPU != 1 || strings.TrimSpace(cfg.Environ) == "" {
		return cfg.CPU, nil
	}

	fields := strings.Fields(cfg.Environ)
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid parallel environment %q: last word must be a core count", cfg.Environ)
	}
	return n, nil
}

// MemLimit returns the memory per task in MB. The default scales with
// --cpu as given, not with a core count taken from the parallel environment.
func MemLimit(cfg model.JobConfig) int {
	if cfg.Mem > 0 {
		return cfg.Mem
	}
	return MemPerCPU * cfg.CPU
}

// CheckLimits rejects resource values sbatch would misread
func CheckLimits(cfg model.JobConfig) error {
	if cfg.CPU < 1 {
		return fmt.Errorf("invalid --cpu %d: must be at least 1", cfg.CPU)
	}
	if cfg.Mem < 0 {
		return fmt.Errorf("invalid --mem %d: must not be negative", cfg.Mem)
	}
	if cfg.MaxRunningTask < 0 {
		return fmt.Errorf("invalid --max_running_task %d: must not be negative", cfg.MaxRunningTask)
	}
	return nil
}

// HoldSpec translates --hold into a SLURM dependency. Anything with a colon is
// already a dependency expression and passes unchanged; otherwise it is a
// comma-separated list of job ids, all of which must succeed first.
func HoldSpec(raw string) (string, error) {
	if strings.Contains(raw, ":") {
		return raw, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return "", fmt.Errorf("%w: %q", model.ErrInvalidDependency, part)
		}
		ids = append(ids, strconv.Itoa(id))
	}
	return "afterok:" + strings.Join(ids, ":"), nil
}

// ScriptName returns the desired file name for a job
func ScriptName(jobName string) string {
	return jobName + ScriptExt
}
