package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	"github.com/oshokin/runtime-bootstrap/internal/service/extractor/extractortest"
	"github.com/oshokin/runtime-bootstrap/internal/service/installer"
	"github.com/oshokin/runtime-bootstrap/internal/service/layout"
	"github.com/oshokin/runtime-bootstrap/internal/service/packager"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("the fake runtime is a shell script")
	}
}

// TestInstaller_InstallsOnceAndHandsOff downloads from the second mirror,
// runs the real runtime twice and only installs on the first run.
func TestInstaller_InstallsOnceAndHandsOff(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	m := startMirrors(t)
	m.serve("m2", runtimeArchive(t))
	m.serve("m3", runtimeArchive(t))
	m.serve("origin", runtimeArchive(t))

	cfg := writeSettings(t, dir, m, nil)

	code, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 7, code)

	require.Equal(t, 1, m.hitCount("m1"))
	require.Equal(t, 1, m.hitCount("m2"))
	require.Zero(t, m.hitCount("m3"))
	require.Zero(t, m.hitCount("origin"))

	require.FileExists(t, cfg.MarkerPath())
	require.NoDirExists(t, filepath.Join(cfg.TargetDir, "package"))
	require.FileExists(t, filepath.Join(cfg.TargetDir, "python", "lib", "site.py"))
	require.Equal(t, []string{"pip", "ncatbot.cli.main"}, readCalls(t, cfg))
	requireEmptyDir(t, cfg.DownloadDir)

	code, err = installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 7, code)

	// No network or dependency work on the second run.
	require.Equal(t, 1, m.hitCount("m2"))
	require.Equal(t, []string{"pip", "ncatbot.cli.main", "ncatbot.cli.main"}, readCalls(t, cfg))
}

// TestInstaller_PinnedChecksumSkipsTamperedMirror pins the genuine archive and
// serves altered bytes from the first mirror.
func TestInstaller_PinnedChecksumSkipsTamperedMirror(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	genuine := runtimeArchive(t)
	tampered := extractortest.Build(t,
		extractortest.Entry{Name: "package/bin/python3", Body: "#!/bin/sh\nexit 99\n", Mode: 0o755},
	)

	m := startMirrors(t)
	m.serve("m1", tampered)
	m.serve("m2", genuine)

	archivePath := filepath.Join(dir, "package.zip")
	require.NoError(t, os.WriteFile(archivePath, genuine, 0o600))

	cfg := writeSettings(t, dir, m, nil)
	settingsPath := filepath.Join(dir, config.DefaultConfigFilename)

	var digest bytes.Buffer

	require.NoError(t, packager.Run(context.Background(), &packager.Options{
		ArchivePath: archivePath,
		ConfigPath:  settingsPath,
		Pin:         true,
		Output:      &digest,
	}))

	cfg, err := config.Load(settingsPath)
	require.NoError(t, err)
	require.Equal(t, strings.TrimSpace(digest.String()), cfg.Checksum)

	code, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 7, code)
	require.Equal(t, 1, m.hitCount("m1"))
	require.Equal(t, 1, m.hitCount("m2"))
	require.Equal(t, []string{"pip", "ncatbot.cli.main"}, readCalls(t, cfg))
}

// TestInstaller_NormalizeFailureIsRetryable leaves no marker and no download,
// refuses the half-built target and recovers once the operator removes it.
func TestInstaller_NormalizeFailureIsRetryable(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	m := startMirrors(t)
	m.serve("m1", extractortest.Build(t,
		extractortest.Entry{Name: "runtime/bin/python3", Body: runtimeScript, Mode: 0o755},
	))

	cfg := writeSettings(t, dir, m, nil)

	code, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.Equal(t, installer.ExitNormalize, code)
	require.ErrorIs(t, err, layout.ErrSourceMissing)
	require.NoFileExists(t, cfg.MarkerPath())
	requireEmptyDir(t, cfg.DownloadDir)

	m.serve("m1", runtimeArchive(t))

	code, err = installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.Equal(t, installer.ExitCollision, code)
	require.ErrorIs(t, err, installer.ErrTargetCollision)

	require.NoError(t, os.RemoveAll(cfg.TargetDir))

	code, err = installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 7, code)
	require.FileExists(t, cfg.MarkerPath())
}

// TestInstaller_AllMirrorsDown reports exhaustion without creating the target.
func TestInstaller_AllMirrorsDown(t *testing.T) {
	dir := t.TempDir()
	m := startMirrors(t)

	cfg := writeSettings(t, dir, m, func(cfg *config.Config) {
		cfg.Retries = 1
	})

	code, err := installer.Run(context.Background(), &installer.Options{Config: cfg})
	require.Equal(t, installer.ExitFetch, code)
	require.Error(t, err)
	require.NoDirExists(t, cfg.TargetDir)
	requireEmptyDir(t, cfg.DownloadDir)

	for _, name := range []string{"m1", "m2", "m3", "origin"} {
		require.Equal(t, 2, m.hitCount(name), name)
	}
}
