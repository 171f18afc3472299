package render

import (
	"fmt"
	"strings"

	"github.com/sourceplane/msub/internal/model"
	"github.com/sourceplane/msub/internal/normalize"
)

const maxCommandWidth = 60

// TaskViewer provides a human-readable summary of an array job
type TaskViewer struct {
	cfg   model.JobConfig
	tasks model.TaskList
}

// NewTaskViewer creates a new task viewer
func NewTaskViewer(cfg model.JobConfig, tasks model.TaskList) *TaskViewer {
	return &TaskViewer{cfg: cfg, tasks: tasks}
}

// ViewTasks returns a tree of the array job and its task commands
func (tv *TaskViewer) ViewTasks() string {
	if len(tv.tasks) == 0 {
		return "No tasks"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s]\n", tv.cfg.Name, ArrayRange(len(tv.tasks), tv.cfg.MaxRunningTask)))

	if tv.cfg.Begin != "" {
		sb.WriteString(fmt.Sprintf("├─ (begin) %s\n", truncate(tv.cfg.Begin)))
	}

	width := len(fmt.Sprint(len(tv.tasks) - 1))
	for i, cmd := range tv.tasks {
		prefix := "├─ "
		if i == len(tv.tasks)-1 && tv.cfg.Final == "" {
			prefix = "└─ "
		}
		sb.WriteString(fmt.Sprintf("%s%*d | %s\n", prefix, width, i, truncate(cmd)))
	}

	if tv.cfg.Final != "" {
		sb.WriteString(fmt.Sprintf("└─ (final) %s\n", truncate(tv.cfg.Final)))
	}

	cpu, err := normalize.CPUCount(tv.cfg)
	if err != nil {
		cpu = tv.cfg.CPU
	}

	// Summary
	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d tasks, %d cores and %d MB per task, partition %s\n",
		len(tv.tasks), cpu, normalize.MemLimit(tv.cfg), tv.cfg.Queue))

	return sb.String()
}

// truncate shortens long commands for readability
func truncate(cmd string) string {
	cmd = strings.ReplaceAll(cmd, "\n", "; ")
	if len(cmd) > maxCommandWidth {
		return cmd[:maxCommandWidth-3] + "..."
	}
	return cmd
}
