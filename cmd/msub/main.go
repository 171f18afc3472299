package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sourceplane/msub/internal/logging"
	"github.com/sourceplane/msub/internal/model"
)

var logger = logging.New(os.Stderr, false)

func setupLogging() {
	logger = logging.New(os.Stderr, quiet)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err, os.Stderr, logger))
	}
}

// exitCode reports err and returns the process exit status
func exitCode(err error, stderr io.Writer, log *slog.Logger) int {
	if errors.Is(err, model.ErrAborted) {
		fmt.Fprintln(stderr, "..Aborted")
		return 1
	}

	log.Error(err.Error())
	if errors.Is(err, model.ErrInputRejected) {
		log.Error("Provide plain commands, one per line, without #SBATCH or #$ directives.")
	}
	return 1
}
