package layout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oshokin/runtime-bootstrap/internal/logger"
)

var (
	// ErrSourceMissing is returned when the extracted tree has an unexpected shape.
	ErrSourceMissing = errors.New("extracted source folder is missing")
	// ErrRenameFailed is returned when the source folder cannot be moved into place.
	ErrRenameFailed = errors.New("rename failed")
	// errDestinationExists is returned when the destination folder is already occupied.
	errDestinationExists = errors.New("destination already exists")
)

// executeBits are added to the runtime executable after extraction.
const executeBits = 0o111

// Normalize renames root/source to root/destination. Both subpaths are
// relative to root. The destination must not exist yet.
func Normalize(ctx context.Context, root, source, destination string) error {
	from := filepath.Join(root, filepath.FromSlash(source))
	to := filepath.Join(root, filepath.FromSlash(destination))

	info, err := os.Stat(from)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", from, ErrSourceMissing)
	case err != nil:
		return fmt.Errorf("%s: %w: %w", from, ErrRenameFailed, err)
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory: %w", from, ErrSourceMissing)
	}

	if _, err = os.Lstat(to); err == nil {
		return fmt.Errorf("%s: %w: %w", to, ErrRenameFailed, errDestinationExists)
	}

	if err = os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("%s: %w: %w", to, ErrRenameFailed, err)
	}

	if err = os.Rename(from, to); err != nil {
		return fmt.Errorf("%s -> %s: %w: %w", from, to, ErrRenameFailed, err)
	}

	logger.InfoKV(ctx, "Layout normalized", "from", from, "to", to)

	return nil
}

// EnsureExecutable adds execute permissions to path on platforms that use them.
// Archives built on Windows often lose the bits.
func EnsureExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Mode().Perm()&executeBits == executeBits {
		return nil
	}

	return os.Chmod(path, info.Mode().Perm()|executeBits)
}
