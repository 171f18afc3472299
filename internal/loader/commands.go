package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sourceplane/msub/internal/model"
)

// directivePrefixes mark lines that already belong to a SLURM or SGE batch file
var directivePrefixes = []string{"#SBATCH ", "#$ -"}

// endMarker is a line that ends input early
const endMarker = "."

// Input is an opened command source
type Input struct {
	io.ReadCloser
	Name        string // for log messages, "STDIN" for standard input
	Path        string // empty for standard input
	Interactive bool
}

// OpenInput resolves the command source from the positional argument and the
// -i flag. Only one of them may be given; none, or "-", selects stdin.
func OpenInput(positional, explicit string) (*Input, error) {
	if positional != "" && explicit != "" {
		return nil, fmt.Errorf("%w: as both %s and %s", model.ErrAmbiguousInput, explicit, positional)
	}

	path := explicit
	if path == "" {
		path = positional
	}

	if path == "" || path == "-" {
		return &Input{
			ReadCloser:  io.NopCloser(os.Stdin),
			Name:        "STDIN",
			Interactive: isTerminal(os.Stdin),
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return &Input{ReadCloser: f, Name: path, Path: path}, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ReadCommands reads one command per line from r. Blank lines and comments are
// skipped and a lone "." ends the input. Cancelling ctx abandons a blocked
// read and returns model.ErrAborted.
func ReadCommands(ctx context.Context, r io.Reader) (model.TaskList, error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-stop:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	var tasks model.TaskList
	for {
		select {
		case <-ctx.Done():
			return nil, model.ErrAborted
		case raw, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return nil, fmt.Errorf("failed to read commands: %w", err)
				default:
				}
				return finish(tasks)
			}

			line := strings.TrimSpace(raw)
			if isDirective(line) {
				return nil, model.ErrInputRejected
			}
			if line == endMarker {
				return finish(tasks)
			}
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tasks = append(tasks, line)
		}
	}
}

func finish(tasks model.TaskList) (model.TaskList, error) {
	if len(tasks) == 0 {
		return nil, model.ErrEmptyCommandList
	}
	return tasks, nil
}

func isDirective(line string) bool {
	for _, prefix := range directivePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
