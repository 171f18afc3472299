package model

// TaskList holds one shell command per array task. The index of a command is
// its task number.
type TaskList []string

// JobConfig holds every knob that shapes the generated script and its submission
type JobConfig struct {
	Name           string
	CPU            int
	Mem            int    // MB per task, 0 means 6144 * cpu
	Environ        string // legacy parallel environment, e.g. "single 4"
	StdoutDir      string
	Begin          string
	Final          string
	Hold           string
	NoEmail        bool
	MaxRunningTask int // 0 means unlimited
	Queue          string
	Priority       int
	Sync           bool
	HardSync       bool
	NoSubmit       bool
}

// CompiledScript is a rendered array-job script waiting to be written
type CompiledScript struct {
	Name      string // desired file name, <JobName>.sbatch
	JobName   string
	Text      string
	TaskCount int
}

// Submission is a fully resolved sbatch invocation
type Submission struct {
	Executable string
	Flags      []string
	ScriptPath string
	OutputDir  string
}

// Argv returns the argument vector, executable first.
func (s *Submission) Argv() []string {
	argv := make([]string, 0, len(s.Flags)+2)
	argv = append(argv, s.Executable)
	argv = append(argv, s.Flags...)
	return append(argv, s.ScriptPath)
}
