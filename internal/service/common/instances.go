//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"os"

	"github.com/mitchellh/go-ps"
)

// ProcessLister returns a snapshot of running processes.
type ProcessLister func() ([]ps.Process, error)

// errSelfNotListed is returned when the current process is missing from the snapshot.
var errSelfNotListed = errors.New("current process not found in process list")

// OtherInstances returns the PIDs of processes running the same executable as
// this one, excluding the current process. A nil lister uses ps.Processes.
func OtherInstances(lister ProcessLister) ([]int, error) {
	if lister == nil {
		lister = ps.Processes
	}

	processList, err := lister()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()

	var executable string

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			executable = process.Executable()
			break
		}
	}

	if executable == "" {
		return nil, errSelfNotListed
	}

	var others []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			others = append(others, process.Pid())
		}
	}

	return others, nil
}
