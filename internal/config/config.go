package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// CollisionPolicy decides what happens to a target directory that exists
// without a success marker.
type CollisionPolicy string

const (
	// CollisionRefuse stops the install and asks the operator to remove the directory.
	CollisionRefuse CollisionPolicy = "refuse"
	// CollisionRebuild removes the incomplete directory and installs from scratch.
	CollisionRebuild CollisionPolicy = "rebuild"
)

// Transport names understood by the fetcher.
const (
	TransportHTTP       = "http"
	TransportWget       = "wget"
	TransportCurl       = "curl"
	TransportPowerShell = "powershell"
)

// Config is the immutable install configuration handed to the installer.
type Config struct {
	// Mirrors are URL prefixes tried in order; the empty prefix (or a bare
	// scheme such as "https://") is the canonical origin.
	Mirrors []string `yaml:"mirrors" env:"BOOTSTRAP_MIRRORS" envSeparator:","`
	// ArtifactSuffix is appended to every mirror prefix to build the download URL.
	ArtifactSuffix string `yaml:"artifact_suffix" env:"BOOTSTRAP_ARTIFACT_SUFFIX"`
	// TargetDir is the root of all installed state.
	TargetDir string `yaml:"target_dir" env:"BOOTSTRAP_TARGET_DIR"`
	// SourceSubpath is the top-level folder produced by the archive.
	SourceSubpath string `yaml:"source_subpath" env:"BOOTSTRAP_SOURCE_SUBPATH"`
	// DestSubpath is the folder name the runtime expects.
	DestSubpath string `yaml:"dest_subpath" env:"BOOTSTRAP_DEST_SUBPATH"`
	// MarkerFile is the success marker name inside TargetDir.
	MarkerFile string `yaml:"marker_file" env:"BOOTSTRAP_MARKER_FILE"`
	// RuntimeExecutable is the runtime binary, relative to TargetDir.
	RuntimeExecutable string `yaml:"runtime_executable" env:"BOOTSTRAP_RUNTIME_EXECUTABLE"`
	// DependencyArgs are passed to the runtime to install dependencies.
	DependencyArgs []string `yaml:"dependency_args" env:"BOOTSTRAP_DEPENDENCY_ARGS" envSeparator:" "`
	// EntrypointArgs are passed to the runtime on hand-off.
	EntrypointArgs []string `yaml:"entrypoint_args" env:"BOOTSTRAP_ENTRYPOINT_ARGS" envSeparator:" "`
	// Transports are the download tools tried for every mirror, in order.
	Transports []string `yaml:"transports" env:"BOOTSTRAP_TRANSPORTS" envSeparator:","`
	// Retries is the number of extra attempts per mirror and transport.
	Retries uint64 `yaml:"retries" env:"BOOTSTRAP_RETRIES"`
	// RetryInterval is the pause between attempts against the same mirror.
	RetryInterval time.Duration `yaml:"retry_interval" env:"BOOTSTRAP_RETRY_INTERVAL"`
	// Timeout bounds a single HTTP download attempt.
	Timeout time.Duration `yaml:"timeout" env:"BOOTSTRAP_TIMEOUT"`
	// Checksum is the optional base64 SHA-512 digest of the archive.
	Checksum string `yaml:"checksum,omitempty" env:"BOOTSTRAP_CHECKSUM"`
	// CollisionPolicy handles a target directory without a success marker.
	CollisionPolicy CollisionPolicy `yaml:"collision_policy" env:"BOOTSTRAP_COLLISION_POLICY"`
	// SkipNetwork uses ArchivePath (or a bundled archive) instead of downloading.
	SkipNetwork bool `yaml:"skip_network" env:"BOOTSTRAP_SKIP_NETWORK"`
	// SkipExtraction assumes the archive tree is already present in TargetDir.
	SkipExtraction bool `yaml:"skip_extraction" env:"BOOTSTRAP_SKIP_EXTRACTION"`
	// ArchivePath is a local archive used when SkipNetwork is set.
	ArchivePath string `yaml:"archive_path,omitempty" env:"BOOTSTRAP_ARCHIVE_PATH"`
	// DownloadDir holds the transient download; empty means the OS temp dir.
	DownloadDir string `yaml:"download_dir,omitempty" env:"BOOTSTRAP_DOWNLOAD_DIR"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"BOOTSTRAP_LOG_LEVEL"`
	// LogFile optionally mirrors logs into a rotated file.
	LogFile string `yaml:"log_file,omitempty" env:"BOOTSTRAP_LOG_FILE"`
}

const (
	// DefaultConfigFilename is the default filename for install settings.
	DefaultConfigFilename = "bootstrap-settings.yaml"

	// DefaultMarkerFilename is the success marker written after a complete install.
	DefaultMarkerFilename = "success.txt"

	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 10 * time.Minute

	// DefaultRetryInterval is the pause between attempts against one mirror.
	DefaultRetryInterval = 2 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	defaultArtifactSuffix = "github.com/ncatbot/NcatBot-Plugins/releases/download/v1.0.0/package.zip"
	defaultTargetDir      = "ncatbot"
	defaultSourceSubpath  = "package"
	defaultDestSubpath    = "python"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoMirrors is returned when the mirror list is empty.
	errNoMirrors = errors.New("at least one mirror must be configured")
	// errNoCanonicalMirror is returned when no mirror points at the origin.
	errNoCanonicalMirror = errors.New("mirror list must contain the canonical origin (empty prefix)")
	// errArtifactSuffixRequired is returned when the artifact path is missing.
	errArtifactSuffixRequired = errors.New("artifact suffix must be provided")
	// errTargetDirRequired is returned when the target directory is missing.
	errTargetDirRequired = errors.New("target directory must be provided")
	// errBadSubpath is returned for absolute or escaping subpaths.
	errBadSubpath = errors.New("subpath must be relative and stay inside the target directory")
	// errMarkerNotFilename is returned for marker names that contain a directory.
	errMarkerNotFilename = errors.New("marker file must be a plain file name")
	// errUnknownPolicy is returned for unsupported collision policies.
	errUnknownPolicy = errors.New("unknown collision policy")
	// errUnknownTransport is returned for unsupported transports.
	errUnknownTransport = errors.New("unknown transport")
	// errArchivePathRequired is returned when the network is skipped without a local archive.
	errArchivePathRequired = errors.New("archive path must be provided when network is skipped")
)

// Default returns the configuration of the stock runtime installer.
func Default() *Config {
	return &Config{
		Mirrors: []string{
			"https://ghfast.top/",
			"https://",
		},
		ArtifactSuffix:    defaultArtifactSuffix,
		TargetDir:         defaultTargetDir,
		SourceSubpath:     defaultSourceSubpath,
		DestSubpath:       defaultDestSubpath,
		MarkerFile:        DefaultMarkerFilename,
		RuntimeExecutable: DefaultRuntimeExecutable(runtime.GOOS),
		DependencyArgs:    []string{"-m", "pip", "install", "ncatbot"},
		EntrypointArgs:    []string{"-m", "ncatbot.cli.main"},
		Transports:        DefaultTransports(runtime.GOOS),
		RetryInterval:     DefaultRetryInterval,
		Timeout:           DefaultTimeout,
		CollisionPolicy:   CollisionRefuse,
		LogLevel:          "info",
	}
}

// DefaultRuntimeExecutable returns the runtime binary path for the platform.
func DefaultRuntimeExecutable(goos string) string {
	if goos == "windows" {
		return path.Join(defaultDestSubpath, "python.exe")
	}

	return path.Join(defaultDestSubpath, "bin", "python3")
}

// DefaultTransports returns the download tools tried per mirror on the platform:
// the built-in HTTP client first, then the tools the host usually ships with.
func DefaultTransports(goos string) []string {
	if goos == "windows" {
		return []string{TransportHTTP, TransportPowerShell}
	}

	return []string{TransportHTTP, TransportWget, TransportCurl}
}

// Load reads configuration from path on top of the defaults, applies
// BOOTSTRAP_* environment overrides and validates the result.
// A missing file is not an error: the defaults are used instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
//
//nolint:cyclop // A flat list of checks reads better than helpers here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validateMirrors(cfg.Mirrors); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.ArtifactSuffix) == "" {
		return errArtifactSuffixRequired
	}

	if strings.TrimSpace(cfg.TargetDir) == "" {
		return errTargetDirRequired
	}

	for _, subpath := range []string{cfg.SourceSubpath, cfg.DestSubpath, cfg.RuntimeExecutable} {
		if !isLocalSubpath(subpath) {
			return fmt.Errorf("%q: %w", subpath, errBadSubpath)
		}
	}

	if cfg.MarkerFile == "" {
		cfg.MarkerFile = DefaultMarkerFilename
	}

	if !isLocalSubpath(cfg.MarkerFile) {
		return fmt.Errorf("%q: %w", cfg.MarkerFile, errBadSubpath)
	}

	// The marker must sit directly in the target so the directory that
	// holds it is never created by the archive.
	if marker := filepath.FromSlash(cfg.MarkerFile); filepath.Base(marker) != marker {
		return fmt.Errorf("%q: %w", cfg.MarkerFile, errMarkerNotFilename)
	}

	switch cfg.CollisionPolicy {
	case "":
		cfg.CollisionPolicy = CollisionRefuse
	case CollisionRefuse, CollisionRebuild:
	default:
		return fmt.Errorf("%q: %w", cfg.CollisionPolicy, errUnknownPolicy)
	}

	if len(cfg.Transports) == 0 {
		cfg.Transports = DefaultTransports(runtime.GOOS)
	}

	for _, name := range cfg.Transports {
		if !slices.Contains(knownTransports(), name) {
			return fmt.Errorf("%q: %w", name, errUnknownTransport)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	if cfg.SkipNetwork && !cfg.SkipExtraction && cfg.ArchivePath == "" {
		return errArchivePathRequired
	}

	return nil
}

// RuntimePath returns the runtime executable path inside the target directory.
func (c *Config) RuntimePath() string {
	return filepath.Join(c.TargetDir, filepath.FromSlash(c.RuntimeExecutable))
}

// MarkerPath returns the success marker path inside the target directory.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.TargetDir, filepath.FromSlash(c.MarkerFile))
}

// IsCanonicalMirror reports whether prefix points at the origin itself:
// either empty or a bare scheme such as "https://".
func IsCanonicalMirror(prefix string) bool {
	if prefix == "" {
		return true
	}

	scheme, rest, found := strings.Cut(prefix, "://")

	return found && rest == "" && scheme != ""
}

func validateMirrors(mirrors []string) error {
	if len(mirrors) == 0 {
		return errNoMirrors
	}

	hasCanonical := false

	for _, mirror := range mirrors {
		if IsCanonicalMirror(mirror) {
			hasCanonical = true
			continue
		}

		if _, err := url.ParseRequestURI(mirror); err != nil {
			return fmt.Errorf("invalid mirror %q: %w", mirror, err)
		}
	}

	if !hasCanonical {
		return errNoCanonicalMirror
	}

	return nil
}

func isLocalSubpath(p string) bool {
	if p == "" {
		return false
	}

	return filepath.IsLocal(filepath.FromSlash(p))
}

func knownTransports() []string {
	return []string{TransportHTTP, TransportWget, TransportCurl, TransportPowerShell}
}
