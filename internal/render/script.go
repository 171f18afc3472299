package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sourceplane/msub/internal/model"
	"github.com/sourceplane/msub/internal/normalize"
)

const (
	// TaskVar lets a user run one task by hand: TASK=3 bash job.sbatch
	TaskVar = "TASK"
	// ArrayIndexVar is set by SLURM inside each array task
	ArrayIndexVar = "SLURM_ARRAY_TASK_ID"

	selector = "${" + ArrayIndexVar + ":-$" + TaskVar + "}"
)

// caseBranch is one arm of the dispatch case statement
type caseBranch struct {
	label string
	body  []string
}

// Renderer compiles task lists into SLURM array-job scripts
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderScript compiles the header, one case branch per task and the footer.
func (r *Renderer) RenderScript(cfg model.JobConfig, tasks model.TaskList) (*model.CompiledScript, error) {
	if len(tasks) == 0 {
		return nil, model.ErrEmptyCommandList
	}

	header, err := r.header(cfg, len(tasks))
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	writeLines(&sb, header...)
	for _, branch := range r.dispatch(tasks) {
		writeBranch(&sb, branch)
	}
	writeLines(&sb, r.footer(cfg)...)

	return &model.CompiledScript{
		Name:      normalize.ScriptName(cfg.Name),
		JobName:   cfg.Name,
		Text:      sb.String(),
		TaskCount: len(tasks),
	}, nil
}

// ArrayRange returns the -a argument for n tasks, throttled when limit > 0
func ArrayRange(n, limit int) string {
	param := "0-" + strconv.Itoa(n-1)
	if limit > 0 {
		param += "%" + strconv.Itoa(limit)
	}
	return param
}

func (r *Renderer) header(cfg model.JobConfig, taskCount int) ([]string, error) {
	if err := normalize.CheckLimits(cfg); err != nil {
		return nil, err
	}
	cpu, err := normalize.CPUCount(cfg)
	if err != nil {
		return nil, err
	}
	mem := normalize.MemLimit(cfg)

	lines := []string{
		"#!/bin/bash",
		"#",
		fmt.Sprintf("#SBATCH -a %-17s   # array of tasks and max number to run at once", ArrayRange(taskCount, cfg.MaxRunningTask)),
		"#SBATCH -n 1                   # 1 task per node (fixed for all msub jobs)",
		fmt.Sprintf("#SBATCH -c %-15d     # number of cores per task", cpu),
		fmt.Sprintf("#SBATCH --mem %-15d  # memory pool per task (not per core)", mem),
		fmt.Sprintf("#SBATCH -o %s/%s.%%A.%%a.out     # STDOUT", cfg.StdoutDir, cfg.Name),
		fmt.Sprintf("#SBATCH -e %s/%s.%%A.%%a.err     # STDERR", cfg.StdoutDir, cfg.Name),
	}

	if cfg.Hold != "" {
		hold, err := normalize.HoldSpec(cfg.Hold)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("#SBATCH -d %s  # hold off waiting for jobs", hold))
	}

	if cfg.NoEmail {
		lines = append(lines, "#SBATCH --mail-type=NONE       # no email")
	} else {
		lines = append(lines, "#SBATCH --mail-type=END,FAIL   # notifications for job done & fail")
	}

	lines = append(lines, "", "set -euo pipefail", `IFS=$'\n\t'`, "")

	if cfg.Begin != "" {
		lines = append(lines, cfg.Begin, "")
	}

	lines = append(lines,
		TaskVar+"=${"+TaskVar+":-unset}",
		"case "+selector+" in",
	)
	return lines, nil
}

// dispatch builds the task branches; each label is the task's own index
func (r *Renderer) dispatch(tasks model.TaskList) []caseBranch {
	branches := make([]caseBranch, 0, len(tasks))
	for i, cmd := range tasks {
		branches = append(branches, caseBranch{label: strconv.Itoa(i), body: []string{cmd}})
	}
	return branches
}

func (r *Renderer) footer(cfg model.JobConfig) []string {
	lines := []string{
		`*) echo "Unexpected ` + ArrayIndexVar + `=` + selector + `" >&2`,
		"exit 1",
		";;",
		"esac",
		"",
	}
	if cfg.Final != "" {
		lines = append(lines, cfg.Final)
	}
	return lines
}

func writeBranch(sb *strings.Builder, b caseBranch) {
	sb.WriteString(b.label)
	sb.WriteString(") ")
	writeLines(sb, b.body...)
	writeLines(sb, ";;")
}

func writeLines(sb *strings.Builder, lines ...string) {
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}
