//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"os"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess is a static ps.Process.
type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

// TestOtherInstances finds processes sharing this executable's name.
func TestOtherInstances(t *testing.T) {
	t.Parallel()

	self := os.Getpid()
	lister := func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 1, executable: "init"},
			fakeProcess{pid: self, executable: "bootstrap"},
			fakeProcess{pid: self + 1, executable: "bootstrap"},
			fakeProcess{pid: self + 2, executable: "python3"},
		}, nil
	}

	others, err := OtherInstances(lister)
	require.NoError(t, err)
	require.Equal(t, []int{self + 1}, others)
}

// TestOtherInstances_Errors covers lister failures and a missing self entry.
func TestOtherInstances_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := OtherInstances(func() ([]ps.Process, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, err = OtherInstances(func() ([]ps.Process, error) { return nil, nil })
	require.ErrorIs(t, err, errSelfNotListed)
}

// TestOtherInstances_RealProcessTable runs against the live process list.
func TestOtherInstances_RealProcessTable(t *testing.T) {
	t.Parallel()

	_, err := OtherInstances(nil)
	require.NoError(t, err)
}
