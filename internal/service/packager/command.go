package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/checksum"
)

// Options contains inputs for the checksum entry point.
type Options struct {
	// ArchivePath is the local archive to fingerprint.
	ArchivePath string
	// ConfigPath is the settings file updated when Pin is set.
	ConfigPath string
	// Pin stores the digest in the settings file.
	Pin bool
	// Output receives the encoded digest; nil means stdout.
	Output io.Writer
}

var (
	// errArchiveRequired is returned when no archive path is provided.
	errArchiveRequired = errors.New("archive path must be provided")
	// errConfigExists is returned when init would overwrite an existing file.
	errConfigExists = errors.New("settings file already exists")
)

// packager fingerprints an archive and optionally pins it in the settings.
type packager struct {
	// opts are the caller's inputs.
	opts *Options
	// digest is the encoded checksum once computed.
	digest string
}

// Run computes the archive checksum, prints it and optionally pins it.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "packager")

	if opts == nil || strings.TrimSpace(opts.ArchivePath) == "" {
		return errArchiveRequired
	}

	pkg := &packager{opts: opts}

	if err := pkg.fingerprint(ctx); err != nil {
		return fmt.Errorf("fingerprint archive: %w", err)
	}

	if err := pkg.print(); err != nil {
		return err
	}

	if !opts.Pin {
		return nil
	}

	if err := pkg.pin(ctx); err != nil {
		return fmt.Errorf("pin checksum: %w", err)
	}

	return nil
}

// InitConfig writes the default settings to path unless a file is already there
// and force is not set.
func InitConfig(ctx context.Context, path string, force bool) error {
	ctx = logger.WithName(ctx, "packager")

	if path == "" {
		path = config.DefaultConfigFilename
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, errConfigExists)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Default settings written", "path", path)

	return nil
}

func (p *packager) fingerprint(ctx context.Context) error {
	if err := checksum.Verify(p.opts.ArchivePath, nil); err != nil {
		return err
	}

	sum, err := checksum.File(p.opts.ArchivePath)
	if err != nil {
		return err
	}

	p.digest = checksum.Encode(sum)

	if info, statErr := os.Stat(p.opts.ArchivePath); statErr == nil {
		//nolint:gosec // File sizes are never negative.
		logger.DebugKV(ctx, "Archive fingerprinted",
			"path", p.opts.ArchivePath, "size", humanize.Bytes(uint64(info.Size())))
	}

	return nil
}

func (p *packager) print() error {
	out := p.opts.Output
	if out == nil {
		out = os.Stdout
	}

	_, err := fmt.Fprintln(out, p.digest)

	return err
}

// pin loads the settings (or the defaults), sets the checksum and saves them back.
func (p *packager) pin(ctx context.Context) error {
	path := p.opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	cfg.Checksum = p.digest

	if err = config.Save(path, cfg); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Checksum pinned", "path", path)

	return nil
}
