package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/runner"
)

// Transport downloads one URL into a local file.
type Transport interface {
	// Name identifies the transport in logs and errors.
	Name() string
	// Download writes the body found at url into destination.
	Download(ctx context.Context, url, destination string) error
}

var (
	// ErrBadHTTPStatus is returned when the server answers with a non-200 status.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrToolFailed is returned when a download tool exits with a non-zero status.
	ErrToolFailed = errors.New("download tool failed")
	// errUnknownTransport is returned for names NewTransports does not know.
	errUnknownTransport = errors.New("unknown transport")
)

// downloadFileMode is used for the transient archive.
const downloadFileMode = 0o600

// HTTPTransport downloads with the built-in HTTP client.
type HTTPTransport struct {
	// client performs the requests.
	client *http.Client
	// progress receives the progress bar; nil disables it.
	progress io.Writer
}

// NewHTTPTransport creates an HTTP transport whose attempts are bounded by timeout.
// Progress is drawn to progress when it is not nil.
func NewHTTPTransport(timeout time.Duration, progress io.Writer) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
		},
		progress: progress,
	}
}

// Name returns the transport name.
func (t *HTTPTransport) Name() string {
	return config.TransportHTTP
}

// Download performs a GET request and streams the body into destination.
func (t *HTTPTransport) Download(ctx context.Context, rawURL, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := t.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrBadHTTPStatus)
	}

	out, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, downloadFileMode)
	if err != nil {
		return err
	}

	body := io.Reader(response.Body)

	if t.progress != nil {
		bar := pb.New64(response.ContentLength)
		bar.SetWriter(t.progress)
		bar.Set(pb.Bytes, true)
		bar.Start()

		defer bar.Finish()

		body = bar.NewProxyReader(response.Body)
	}

	written, err := io.Copy(out, body)
	if err != nil {
		_ = out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	//nolint:gosec // io.Copy never reports a negative count.
	logger.DebugKV(ctx, "Response body saved", "size", humanize.Bytes(uint64(written)))

	return nil
}

// CommandTransport downloads by running an external tool through a runner.
type CommandTransport struct {
	// name is the tool name used in logs.
	name string
	// runner starts the tool.
	runner runner.Runner
	// argv builds the command line for url and destination.
	argv func(url, destination string) []string
}

// Name returns the transport name.
func (t *CommandTransport) Name() string {
	return t.name
}

// Argv returns the command line used to fetch url into destination.
func (t *CommandTransport) Argv(url, destination string) []string {
	return t.argv(url, destination)
}

// Download runs the tool and treats any non-zero exit status as failure.
func (t *CommandTransport) Download(ctx context.Context, url, destination string) error {
	argv := t.argv(url, destination)

	code, err := t.runner.Run(ctx, argv)
	if err != nil {
		return err
	}

	if code != 0 {
		return fmt.Errorf("%s exited with status %d: %w", argv[0], code, ErrToolFailed)
	}

	return nil
}

// NewWgetTransport downloads with wget.
func NewWgetTransport(r runner.Runner) *CommandTransport {
	return &CommandTransport{
		name:   config.TransportWget,
		runner: r,
		argv: func(url, destination string) []string {
			return []string{"wget", "-O", destination, url}
		},
	}
}

// NewCurlTransport downloads with curl, following redirects and failing on HTTP errors.
func NewCurlTransport(r runner.Runner) *CommandTransport {
	return &CommandTransport{
		name:   config.TransportCurl,
		runner: r,
		argv: func(url, destination string) []string {
			return []string{"curl", "-fL", "-o", destination, url}
		},
	}
}

// NewPowerShellTransport downloads with PowerShell's Invoke-WebRequest.
func NewPowerShellTransport(r runner.Runner) *CommandTransport {
	return &CommandTransport{
		name:   config.TransportPowerShell,
		runner: r,
		argv: func(url, destination string) []string {
			script := fmt.Sprintf("Invoke-WebRequest -Uri %s -OutFile %s",
				powerShellQuote(url), powerShellQuote(destination))

			return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", script}
		},
	}
}

// NewTransports builds transports by name in the given order.
func NewTransports(names []string, r runner.Runner, timeout time.Duration, progress io.Writer) ([]Transport, error) {
	transports := make([]Transport, 0, len(names))

	for _, name := range names {
		switch name {
		case config.TransportHTTP:
			transports = append(transports, NewHTTPTransport(timeout, progress))
		case config.TransportWget:
			transports = append(transports, NewWgetTransport(r))
		case config.TransportCurl:
			transports = append(transports, NewCurlTransport(r))
		case config.TransportPowerShell:
			transports = append(transports, NewPowerShellTransport(r))
		default:
			return nil, fmt.Errorf("%q: %w", name, errUnknownTransport)
		}
	}

	return transports, nil
}

// powerShellQuote wraps s in single quotes, doubling embedded ones.
func powerShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
