package extractor

import (
	"os"
	"path/filepath"
	"strings"
)

// Option adjusts an extraction.
type Option func(*options)

type options struct {
	// reserved are destination-relative paths no entry may write.
	reserved []string
}

// WithReserved rejects entries whose path, relative to the destination,
// equals one of names. Names are compared case-insensitively so that
// case-folding filesystems cannot be used to sidestep the check.
func WithReserved(names ...string) Option {
	return func(o *options) {
		for _, name := range names {
			if name == "" {
				continue
			}

			o.reserved = append(o.reserved, filepath.Clean(filepath.FromSlash(name)))
		}
	}
}

func newOptions(opts []Option) *options {
	o := new(options)

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *options) isReserved(name string) bool {
	for _, reserved := range o.reserved {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}

	return false
}

// present returns the reserved paths that currently exist under root.
func (o *options) present(root *os.Root) map[string]bool {
	found := make(map[string]bool, len(o.reserved))

	for _, reserved := range o.reserved {
		if _, err := root.Lstat(reserved); err == nil {
			found[reserved] = true
		}
	}

	return found
}
