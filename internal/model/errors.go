package model

import "errors"

var (
	// ErrInputRejected means the input is already a SLURM or SGE batch file.
	ErrInputRejected = errors.New("input appears to be a SLURM or SGE batch file, which is not suitable input for msub")
	// ErrEmptyCommandList means no usable command lines were read.
	ErrEmptyCommandList = errors.New("no commands supplied")
	// ErrAmbiguousInput means the input file was given both positionally and with -i.
	ErrAmbiguousInput = errors.New("input specified twice")
	// ErrInvalidDependency means a --hold job id is not an integer.
	ErrInvalidDependency = errors.New("invalid hold job id")
	// ErrWrapperNotFound means sbatch_wait.sh could not be located.
	ErrWrapperNotFound = errors.New("unable to locate an executable sbatch_wait.sh")
	// ErrAborted means interactive input was interrupted by the user.
	ErrAborted = errors.New("aborted")
)
