package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	domain "github.com/oshokin/runtime-bootstrap/internal/domain/install"
	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/repository/marker"
	"github.com/oshokin/runtime-bootstrap/internal/service/checksum"
	"github.com/oshokin/runtime-bootstrap/internal/service/common"
	"github.com/oshokin/runtime-bootstrap/internal/service/extractor"
	"github.com/oshokin/runtime-bootstrap/internal/service/fetcher"
	"github.com/oshokin/runtime-bootstrap/internal/service/layout"
	"github.com/oshokin/runtime-bootstrap/internal/service/runner"
	"github.com/oshokin/runtime-bootstrap/internal/version"
)

// defaultArchiveName is used when the artifact suffix has no usable file name.
const defaultArchiveName = "archive.zip"

// Options are inputs accepted by the installer entry point.
type Options struct {
	// Config is the validated install configuration.
	Config *config.Config
	// Runner starts the download tools, the dependency installer and the runtime.
	// Nil uses the console-attached exec runner.
	Runner runner.Runner
	// Transports override the transports named in Config.
	Transports []fetcher.Transport
	// Tracker overrides the file-based success marker.
	Tracker marker.Tracker
	// Bundled is an in-memory archive used instead of downloading when set.
	Bundled []byte
	// Processes lists running processes for the concurrent-run warning.
	// Nil uses the operating system's process table.
	Processes common.ProcessLister
	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer
	// OnStateChange is called on every state transition.
	OnStateChange func(from, to domain.State)
}

// installer holds the state of one run.
type installer struct {
	cfg        *config.Config
	runner     runner.Runner
	tracker    marker.Tracker
	transports []fetcher.Transport
	bundled    []byte
	processes  common.ProcessLister
	onChange   func(from, to domain.State)

	// state is the current step of the state machine.
	state domain.State
	// source is the URL or path the archive came from.
	source string
}

// Run executes the install state machine and hands off to the runtime.
// It returns the exit code the process should report: the runtime's own
// code after a hand-off, or a stage-specific code together with the
// error when the installer itself failed.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "installer")

	in, err := newInstaller(opts)
	if err != nil {
		return ExitUsage, err
	}

	ctx = logger.WithKV(ctx, "target", in.cfg.TargetDir)

	return in.run(ctx)
}

func newInstaller(opts *Options) (*installer, error) {
	if opts == nil || opts.Config == nil {
		return nil, errConfigNotSet
	}

	cfg := opts.Config

	in := &installer{
		cfg:        cfg,
		runner:     opts.Runner,
		tracker:    opts.Tracker,
		transports: opts.Transports,
		bundled:    opts.Bundled,
		processes:  opts.Processes,
		onChange:   opts.OnStateChange,
		state:      domain.StateStart,
	}

	if in.runner == nil {
		in.runner = runner.NewExecRunner()
	}

	if in.tracker == nil {
		in.tracker = marker.NewFileTracker(cfg.TargetDir, cfg.MarkerFile)
	}

	if len(in.transports) == 0 && !cfg.SkipNetwork && in.bundled == nil {
		transports, err := fetcher.NewTransports(cfg.Transports, in.runner, cfg.Timeout, opts.Progress)
		if err != nil {
			return nil, err
		}

		in.transports = transports
	}

	return in, nil
}

func (in *installer) run(ctx context.Context) (int, error) {
	in.warnOtherInstances(ctx)

	in.enter(ctx, domain.StateCheckInstalled)

	installed, err := in.checkInstalled(ctx)
	if err != nil {
		return in.fail(ctx, err)
	}

	if installed {
		logger.Info(ctx, "Runtime already installed")
	} else if err = in.install(ctx); err != nil {
		return in.fail(ctx, err)
	}

	code, err := in.handoff(ctx)
	if err != nil {
		return in.fail(ctx, err)
	}

	in.enter(ctx, domain.StateEnd)

	return code, nil
}

// enter records a state transition.
func (in *installer) enter(ctx context.Context, next domain.State) {
	previous := in.state
	in.state = next

	logger.DebugKV(ctx, "State changed", "from", previous, "to", next)

	if in.onChange != nil {
		in.onChange(previous, next)
	}
}

// fail logs a fatal error and moves to END.
func (in *installer) fail(ctx context.Context, err error) (int, error) {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = stageError(ExitUsage, in.state, err)
	}

	logger.ErrorKV(ctx, "Install failed", "state", exitErr.Stage, "code", exitErr.Code, "error", exitErr.Err)

	in.enter(ctx, domain.StateEnd)

	return exitErr.Code, exitErr
}

// warnOtherInstances reports concurrent runs. Nothing is locked.
func (in *installer) warnOtherInstances(ctx context.Context) {
	pids, err := common.OtherInstances(in.processes)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "Another bootstrap instance is running, concurrent installs may corrupt the target",
			"pids", pids)
	}
}

// checkInstalled consults the tracker and applies the collision policy.
func (in *installer) checkInstalled(ctx context.Context) (bool, error) {
	targetState, err := in.tracker.TargetState(ctx)
	if err != nil {
		return false, stageError(ExitCollision, domain.StateCheckInstalled, err)
	}

	logger.DebugKV(ctx, "Install target inspected", "state", targetState)

	switch targetState {
	case domain.TargetInstalled:
		return true, nil
	case domain.TargetAbsent:
		return false, nil
	case domain.TargetIncomplete:
	}

	// A pre-extracted tree is expected when extraction is skipped.
	if in.cfg.SkipExtraction {
		return false, nil
	}

	if in.cfg.CollisionPolicy != config.CollisionRebuild {
		return false, stageError(ExitCollision, domain.StateCheckInstalled,
			fmt.Errorf("%s: %w; remove it and run again", in.cfg.TargetDir, ErrTargetCollision))
	}

	logger.WarnKV(ctx, "Removing incomplete install target", "policy", in.cfg.CollisionPolicy)

	if err = os.RemoveAll(in.cfg.TargetDir); err != nil {
		return false, stageError(ExitCollision, domain.StateCheckInstalled,
			fmt.Errorf("remove incomplete target: %w", err))
	}

	return false, nil
}

// install runs every step between CHECK_INSTALLED and HANDOFF.
// The transient download is removed whichever step fails.
func (in *installer) install(ctx context.Context) error {
	if in.cfg.SkipExtraction {
		logger.Info(ctx, "Extraction skipped, using the tree already present in the target")
	} else if err := in.acquireAndExtract(ctx); err != nil {
		return err
	}

	in.enter(ctx, domain.StateNormalizing)

	if err := layout.Normalize(ctx, in.cfg.TargetDir, in.cfg.SourceSubpath, in.cfg.DestSubpath); err != nil {
		return stageError(ExitNormalize, domain.StateNormalizing, err)
	}

	if err := layout.EnsureExecutable(in.cfg.RuntimePath()); err != nil {
		logger.WarnKV(ctx, "Unable to mark runtime as executable", "path", in.cfg.RuntimePath(), "error", err)
	}

	in.enter(ctx, domain.StateDepInstall)

	dependencyCode := in.installDependencies(ctx)

	in.enter(ctx, domain.StateMarkSuccess)

	if err := in.tracker.MarkSuccess(ctx, in.record(ctx, dependencyCode)); err != nil {
		return stageError(ExitMarker, domain.StateMarkSuccess, err)
	}

	logger.Info(ctx, "Runtime installed")

	return nil
}

// acquireAndExtract obtains the archive from the bundle, a local path or the
// mirrors, verifies it and extracts it into the target directory.
func (in *installer) acquireAndExtract(ctx context.Context) error {
	expected, err := checksum.Decode(in.cfg.Checksum)
	if err != nil {
		return stageError(ExitVerify, domain.StateVerifying, err)
	}

	switch {
	case in.bundled != nil:
		return in.extractBundled(ctx, expected)
	case in.cfg.SkipNetwork:
		return in.extractLocal(ctx, expected)
	default:
		return in.downloadAndExtract(ctx, expected)
	}
}

func (in *installer) extractBundled(ctx context.Context, expected []byte) error {
	logger.Info(ctx, "Network skipped, using the bundled archive")

	in.source = "bundled"

	// The bundle is checksummed while it is buffered to disk.
	in.enter(ctx, domain.StateVerifying)
	in.enter(ctx, domain.StateExtracting)

	if _, err := extractor.ExtractBytes(ctx, in.bundled, in.cfg.TargetDir, expected, in.protectMarker()); err != nil {
		if errors.Is(err, checksum.ErrMismatch) {
			return stageError(ExitVerify, domain.StateVerifying, err)
		}

		return stageError(ExitExtract, domain.StateExtracting, err)
	}

	return nil
}

func (in *installer) extractLocal(ctx context.Context, expected []byte) error {
	logger.InfoKV(ctx, "Network skipped, using the local archive", "path", in.cfg.ArchivePath)

	in.source = in.cfg.ArchivePath

	in.enter(ctx, domain.StateVerifying)

	if err := checksum.Verify(in.cfg.ArchivePath, expected); err != nil {
		return stageError(ExitVerify, domain.StateVerifying, err)
	}

	in.enter(ctx, domain.StateExtracting)

	if _, err := extractor.ExtractFile(ctx, in.cfg.ArchivePath, in.cfg.TargetDir, in.protectMarker()); err != nil {
		return stageError(ExitExtract, domain.StateExtracting, err)
	}

	return nil
}

func (in *installer) downloadAndExtract(ctx context.Context, expected []byte) error {
	in.enter(ctx, domain.StateFetching)

	downloadDir, err := os.MkdirTemp(in.cfg.DownloadDir, "bootstrap-download-*")
	if err != nil {
		return stageError(ExitFetch, domain.StateFetching, fmt.Errorf("create download directory: %w", err))
	}

	defer func() {
		if removeErr := os.RemoveAll(downloadDir); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove transient download", "path", downloadDir, "error", removeErr)
		}
	}()

	f, err := fetcher.New(fetcher.Options{
		Transports:    in.transports,
		Verify:        checksum.Verifier(expected),
		Retries:       in.cfg.Retries,
		RetryInterval: in.cfg.RetryInterval,
	})
	if err != nil {
		return stageError(ExitFetch, domain.StateFetching, err)
	}

	destination := filepath.Join(downloadDir, archiveName(in.cfg.ArtifactSuffix))

	result, err := f.Fetch(ctx, in.cfg.ArtifactSuffix, in.cfg.Mirrors, destination)
	if err != nil {
		return stageError(ExitFetch, domain.StateFetching, err)
	}

	in.source = result.URL

	logger.InfoKV(ctx, "Archive downloaded",
		"url", result.URL, "mirror", result.MirrorIndex+1, "transport", result.Transport)

	// The fetcher already rejected empty and mismatching artifacts per mirror.
	in.enter(ctx, domain.StateVerifying)
	in.enter(ctx, domain.StateExtracting)

	if _, err = extractor.ExtractFile(ctx, result.Path, in.cfg.TargetDir, in.protectMarker()); err != nil {
		return stageError(ExitExtract, domain.StateExtracting, err)
	}

	return nil
}

// protectMarker stops an archive from creating the success marker itself.
func (in *installer) protectMarker() extractor.Option {
	return extractor.WithReserved(in.cfg.MarkerFile)
}

// installDependencies runs the dependency step and returns its exit code.
// Failures are reported but never block the install.
func (in *installer) installDependencies(ctx context.Context) int {
	if len(in.cfg.DependencyArgs) == 0 {
		logger.Debug(ctx, "No dependency install configured")
		return 0
	}

	argv := in.runtimeCommand(in.cfg.DependencyArgs)

	logger.InfoKV(ctx, "Installing dependencies", "command", runner.Describe(argv))

	code, err := in.runner.Run(context.WithoutCancel(ctx), argv)

	switch {
	case err != nil:
		logger.WarnKV(ctx, "Dependency install could not start, continuing", "error", err)
	case code != 0:
		logger.WarnKV(ctx, "Dependency install failed, continuing", "code", code)
	}

	return code
}

func (in *installer) record(ctx context.Context, dependencyCode int) *domain.Record {
	actor, err := common.DetectActor()
	if err != nil {
		logger.DebugKV(ctx, "Unable to detect actor", "error", err)
	}

	return &domain.Record{
		InstalledAt:        time.Now().UTC(),
		Version:            version.Short(),
		Source:             in.source,
		DependencyExitCode: dependencyCode,
		Actor:              actor,
	}
}

// handoff runs the runtime entry point and returns its exit code.
// The child gets the console and handles interrupts on its own.
func (in *installer) handoff(ctx context.Context) (int, error) {
	in.enter(ctx, domain.StateHandoff)

	argv := in.runtimeCommand(in.cfg.EntrypointArgs)

	logger.InfoKV(ctx, "Handing off", "command", runner.Describe(argv))

	code, err := in.runner.Run(context.WithoutCancel(ctx), argv)
	if err != nil {
		return ExitLaunch, stageError(ExitLaunch, domain.StateHandoff, err)
	}

	// Killed by a signal.
	if code < 0 {
		code = 1
	}

	logger.DebugKV(ctx, "Runtime exited", "code", code)

	return code, nil
}

func (in *installer) runtimeCommand(args []string) []string {
	return append([]string{in.cfg.RuntimePath()}, slices.Clone(args)...)
}

// archiveName derives the download file name from the artifact suffix.
func archiveName(suffix string) string {
	name := path.Base(suffix)
	if name == "." || name == "/" || name == "" {
		return defaultArchiveName
	}

	return name
}
