package installer

import (
	"errors"
	"fmt"

	domain "github.com/oshokin/runtime-bootstrap/internal/domain/install"
)

// Process exit codes reported for failures of the installer itself.
// A completed hand-off reports the runtime's own exit code instead, so the
// installer's codes sit in a block runtimes and shells leave alone
// (below the 126+ range shells use for exec failures and signals).
const (
	ExitOK        = 0
	ExitUsage     = 110
	ExitFetch     = 111
	ExitVerify    = 112
	ExitExtract   = 113
	ExitNormalize = 114
	ExitCollision = 115
	ExitMarker    = 116
	ExitLaunch    = 117
)

var (
	// ErrTargetCollision is returned when the target exists without a success marker
	// and the collision policy forbids touching it.
	ErrTargetCollision = errors.New("install target exists but is not marked as installed")
	// errConfigNotSet is returned when Run is called without configuration.
	errConfigNotSet = errors.New("configuration is not set")
)

// ExitError is a fatal installer failure tagged with the state it happened in
// and the exit code the process should report.
type ExitError struct {
	// Code is the process exit code.
	Code int
	// Stage is the state that failed.
	Stage domain.State
	// Err is the underlying failure.
	Err error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode extracts the process exit code carried by err.
// Errors that carry none map to ExitUsage; nil maps to ExitOK.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return ExitUsage
}

func stageError(code int, stage domain.State, err error) *ExitError {
	return &ExitError{
		Code:  code,
		Stage: stage,
		Err:   err,
	}
}
