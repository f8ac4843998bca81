package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/checksum"
)

var (
	// ErrAllMirrorsExhausted is returned when no mirror produced a usable artifact.
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")
	// ErrMissingArtifact is returned when a transport succeeded but left no file.
	ErrMissingArtifact = errors.New("downloaded artifact is missing")
	// errNoTransports is returned when a fetcher is built without transports.
	errNoTransports = errors.New("at least one transport is required")
	// errNoMirrors is returned when Fetch is called with an empty mirror list.
	errNoMirrors = errors.New("mirror list is empty")
)

// Options configures a Fetcher.
type Options struct {
	// Transports are tried in order for every mirror.
	Transports []Transport
	// Verify accepts or rejects a downloaded artifact; nil only checks it is non-empty.
	Verify func(path string) error
	// Retries is the number of extra attempts per mirror and transport.
	Retries uint64
	// RetryInterval is the pause between those attempts.
	RetryInterval time.Duration
}

// Fetcher downloads one artifact from the first mirror that serves it.
type Fetcher struct {
	// transports are the download tools tried per mirror.
	transports []Transport
	// verify validates a candidate artifact before it is accepted.
	verify func(path string) error
	// retries is the number of extra attempts per mirror and transport.
	retries uint64
	// retryInterval is the pause between attempts.
	retryInterval time.Duration
}

// Result describes where the accepted artifact came from.
type Result struct {
	// Path is the local artifact file.
	Path string
	// URL is the full URL that produced it.
	URL string
	// Mirror is the prefix of the mirror that succeeded.
	Mirror string
	// MirrorIndex is the zero-based position of that mirror in the list.
	MirrorIndex int
	// Transport is the name of the transport that succeeded.
	Transport string
	// Size is the artifact size in bytes.
	Size int64
}

// New creates a fetcher from options.
func New(opts Options) (*Fetcher, error) {
	if len(opts.Transports) == 0 {
		return nil, errNoTransports
	}

	verify := opts.Verify
	if verify == nil {
		verify = checksum.Verifier(nil)
	}

	return &Fetcher{
		transports:    opts.Transports,
		verify:        verify,
		retries:       opts.Retries,
		retryInterval: opts.RetryInterval,
	}, nil
}

// Fetch tries mirror+suffix for every mirror in order and returns as soon as one
// yields a verified, non-empty file at destination. Later mirrors are never
// contacted after a success. On failure no file is left at destination.
func (f *Fetcher) Fetch(ctx context.Context, suffix string, mirrors []string, destination string) (*Result, error) {
	if len(mirrors) == 0 {
		return nil, errNoMirrors
	}

	var errs error

	for index, mirror := range mirrors {
		rawURL := mirror + suffix

		for _, transport := range f.transports {
			if err := ctx.Err(); err != nil {
				removePartial(destination)

				return nil, fmt.Errorf("fetch interrupted: %w", err)
			}

			logger.InfoKV(ctx, "Trying download",
				"mirror", index+1, "url", rawURL, "transport", transport.Name())

			err := backoff.Retry(func() error {
				return f.attempt(ctx, transport, rawURL, destination)
			}, f.backoff(ctx))
			if err == nil {
				return f.result(destination, rawURL, mirror, index, transport.Name())
			}

			logger.WarnKV(ctx, "Download attempt failed",
				"mirror", index+1, "url", rawURL, "transport", transport.Name(), "error", err)

			errs = multierr.Append(errs,
				fmt.Errorf("mirror %d (%s) via %s: %w", index+1, rawURL, transport.Name(), err))
		}
	}

	removePartial(destination)

	return nil, fmt.Errorf("%w: %w", ErrAllMirrorsExhausted, errs)
}

// attempt runs a single download and validates what it produced.
// Any partial output is removed before returning an error.
func (f *Fetcher) attempt(ctx context.Context, transport Transport, rawURL, destination string) error {
	removePartial(destination)

	if err := transport.Download(ctx, rawURL, destination); err != nil {
		removePartial(destination)

		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		return err
	}

	if _, err := os.Stat(destination); err != nil {
		return fmt.Errorf("%s: %w", destination, ErrMissingArtifact)
	}

	if err := f.verify(destination); err != nil {
		removePartial(destination)

		// Another attempt would fetch the same bytes.
		if errors.Is(err, checksum.ErrMismatch) {
			return backoff.Permanent(err)
		}

		return err
	}

	return nil
}

func (f *Fetcher) result(destination, rawURL, mirror string, index int, transport string) (*Result, error) {
	info, err := os.Stat(destination)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", destination, ErrMissingArtifact)
	}

	return &Result{
		Path:        destination,
		URL:         rawURL,
		Mirror:      mirror,
		MirrorIndex: index,
		Transport:   transport,
		Size:        info.Size(),
	}, nil
}

//nolint:ireturn // backoff.Retry consumes the interface.
func (f *Fetcher) backoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryInterval), f.retries),
		ctx,
	)
}

// removePartial deletes whatever a failed attempt left behind.
func removePartial(path string) {
	_ = os.Remove(path)
}
