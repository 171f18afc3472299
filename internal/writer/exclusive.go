// Package writer creates output files without ever replacing an existing one.
package writer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds the search for a free file name
const DefaultMaxAttempts = 10000

// CreateFunc creates name exclusively, failing with fs.ErrExist if it exists
type CreateFunc func(name string) (io.WriteCloser, error)

// CreateExclusiveFile is the default CreateFunc backed by O_EXCL
func CreateExclusiveFile(name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// File is an exclusively created file and the name actually used
type File struct {
	io.WriteCloser
	Name string
}

// Writer picks the first free name among name, name.1.ext, name.2.ext, ...
type Writer struct {
	Create      CreateFunc
	MaxAttempts int
}

// New returns a Writer using create, or the real filesystem when create is nil
func New(create CreateFunc) *Writer {
	if create == nil {
		create = CreateExclusiveFile
	}
	return &Writer{Create: create, MaxAttempts: DefaultMaxAttempts}
}

// CreateExclusive opens the first candidate name that does not exist yet.
// Errors other than "already exists" are returned immediately.
func (w *Writer) CreateExclusive(name string) (*File, error) {
	for attempt := 0; attempt < w.MaxAttempts; attempt++ {
		candidate := Candidate(name, attempt)
		f, err := w.Create(candidate)
		if err == nil {
			return &File{WriteCloser: f, Name: candidate}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create %s: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("failed to create %s: no free name after %d attempts", name, w.MaxAttempts)
}

// WriteExclusive creates a file via CreateExclusive and hands it to write.
// The file is always closed; the actual name is returned even on error so the
// caller can report what was left on disk.
func (w *Writer) WriteExclusive(name string, write func(actual string, out io.Writer) error) (actual string, err error) {
	f, err := w.CreateExclusive(name)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", f.Name, cerr)
		}
	}()

	if err := write(f.Name, f); err != nil {
		return f.Name, fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return f.Name, nil
}

// Candidate returns the name to try on the given attempt. Attempt 0 is name
// itself; later attempts insert the counter before the last extension of the
// base name, or append it when the base name has no dot.
func Candidate(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	counter := strconv.Itoa(attempt)

	dir, base := filepath.Split(name)
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return name + "." + counter
	}
	return dir + base[:i] + "." + counter + base[i:]
}
