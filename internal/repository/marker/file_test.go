package marker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/runtime-bootstrap/internal/domain/install"
)

// TestFileTracker_TargetStates walks absent, incomplete and installed targets.
func TestFileTracker_TargetStates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "runtime")
	tracker := NewFileTracker(target, "success.txt")

	state, err := tracker.TargetState(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.TargetAbsent, state)
	require.False(t, tracker.IsInstalled(ctx))

	require.NoError(t, os.MkdirAll(target, 0o755))

	state, err = tracker.TargetState(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.TargetIncomplete, state)

	require.NoError(t, tracker.MarkSuccess(ctx, nil))

	state, err = tracker.TargetState(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.TargetInstalled, state)
	require.True(t, tracker.IsInstalled(ctx))
}

// TestFileTracker_IsInstalled_IgnoresContent ensures garbage content still counts as installed.
func TestFileTracker_IsInstalled_IgnoresContent(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	tracker := NewFileTracker(target, "success.txt")

	require.NoError(t, os.WriteFile(tracker.Path(), []byte("{{{ not yaml"), 0o600))
	require.True(t, tracker.IsInstalled(context.Background()))
}

// TestFileTracker_MarkSuccessLoad ensures the record round-trips through the marker.
func TestFileTracker_MarkSuccessLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := NewFileTracker(t.TempDir(), "success.txt")

	_, err := tracker.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	want := &domain.Record{
		InstalledAt:        time.Now().UTC().Truncate(time.Second),
		Version:            "0.1.0",
		Source:             "https://example.com/package.zip",
		DependencyExitCode: 1,
		Actor:              &domain.Actor{Hostname: "build-host", Username: "operator"},
	}

	require.NoError(t, tracker.MarkSuccess(ctx, want))

	got, err := tracker.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.Version, got.Version)
	require.Equal(t, want.Source, got.Source)
	require.Equal(t, want.DependencyExitCode, got.DependencyExitCode)
	require.Equal(t, want.Actor, got.Actor)
	require.True(t, want.InstalledAt.Equal(got.InstalledAt))
}

// TestFileTracker_TargetIsFile reports a regular file in place of the target directory.
func TestFileTracker_TargetIsFile(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "runtime")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))

	state, err := NewFileTracker(target, "success.txt").TargetState(context.Background())
	require.ErrorIs(t, err, errTargetNotDirectory)
	require.Equal(t, domain.TargetIncomplete, state)
}
