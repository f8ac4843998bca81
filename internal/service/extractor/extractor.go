package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/runtime-bootstrap/internal/logger"
	"github.com/oshokin/runtime-bootstrap/internal/service/checksum"
)

var (
	// ErrOpenFailed is returned when the archive cannot be opened or parsed.
	ErrOpenFailed = errors.New("archive cannot be opened")
	// ErrEntryReadFailed is returned when an entry's metadata or content cannot be read.
	ErrEntryReadFailed = errors.New("archive entry cannot be read")
	// ErrWriteFailed is returned when a destination file cannot be created or written.
	ErrWriteFailed = errors.New("extracted file cannot be written")
	// errUnsafePath is returned for entries that would land outside the destination.
	errUnsafePath = errors.New("entry path escapes the destination")
	// errReservedName is returned for entries that would overwrite a reserved file.
	errReservedName = errors.New("entry name is reserved")
)

const (
	// dirMode is used for every directory created during extraction.
	dirMode = 0o755
	// defaultFileMode is used for entries that carry no permission bits.
	defaultFileMode = 0o644
	// bufferFileMode is used for the temporary copy of an in-memory archive.
	bufferFileMode = 0o600
	// maxLinkTarget bounds the size of a symlink entry's body.
	maxLinkTarget = 4096
)

// Summary counts what an extraction produced.
type Summary struct {
	// Files is the number of regular files written.
	Files int
	// Directories is the number of directory entries created.
	Directories int
	// Symlinks is the number of symbolic links created.
	Symlinks int
	// Bytes is the total uncompressed size of the written files.
	Bytes uint64
}

// ExtractFile extracts the zip archive at archivePath into destination.
// The first failing entry aborts the extraction; entries written before it
// stay on disk.
func ExtractFile(ctx context.Context, archivePath, destination string, opts ...Option) (*Summary, error) {
	reader, err := zip.OpenReader(filepath.Clean(archivePath))
	// Insecure names are rejected per entry by extract.
	if err != nil && (reader == nil || !errors.Is(err, zip.ErrInsecurePath)) {
		return nil, fmt.Errorf("%s: %w: %w", archivePath, ErrOpenFailed, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	return extract(ctx, &reader.Reader, destination, newOptions(opts))
}

// ExtractBytes extracts an in-memory zip archive into destination.
// The bytes are written to a private temporary file first, verifying them
// against expected when it is not nil. The temporary file is always removed.
func ExtractBytes(
	ctx context.Context,
	data []byte,
	destination string,
	expected []byte,
	opts ...Option,
) (*Summary, error) {
	path, err := materialize(data, expected)
	if path != "" {
		defer func() {
			_ = os.Remove(path)
		}()
	}

	if err != nil {
		return nil, err
	}

	return ExtractFile(ctx, path, destination, opts...)
}

// materialize writes data into a fresh temporary file and returns its path.
// The path is returned even on failure so the caller can remove it.
func materialize(data []byte, expected []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("in-memory archive: %w: %w", ErrOpenFailed, checksum.ErrEmptyFile)
	}

	file, err := os.CreateTemp("", "bootstrap-archive-*.zip")
	if err != nil {
		return "", fmt.Errorf("buffer archive: %w: %w", ErrWriteFailed, err)
	}

	path := file.Name()
	if err = file.Close(); err != nil {
		return path, fmt.Errorf("buffer archive: %w: %w", ErrWriteFailed, err)
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: bufferFileMode,
		Checksum:   expected,
		Hash:       checksum.Hash,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if expected != nil {
			if sum, sumErr := checksum.Reader(bytes.NewReader(data)); sumErr == nil && !bytes.Equal(sum, expected) {
				return path, fmt.Errorf("in-memory archive: %w: %w", checksum.ErrMismatch, err)
			}
		}

		return path, fmt.Errorf("buffer archive: %w: %w", ErrWriteFailed, err)
	}

	return path, nil
}

func extract(ctx context.Context, archive *zip.Reader, destination string, settings *options) (*Summary, error) {
	if err := os.MkdirAll(destination, dirMode); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", destination, ErrWriteFailed, err)
	}

	// Every entry is written through root, so no path or link can leave it.
	root, err := os.OpenRoot(destination)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", destination, ErrWriteFailed, err)
	}

	defer func() {
		_ = root.Close()
	}()

	reservedBefore := settings.present(root)
	summary := new(Summary)

	for _, entry := range archive.File {
		if err = ctx.Err(); err != nil {
			return summary, fmt.Errorf("extraction interrupted: %w", err)
		}

		name, err := entryName(entry.Name)
		if err != nil {
			return summary, fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, err)
		}

		if settings.isReserved(name) {
			return summary, fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, errReservedName)
		}

		mode := entry.Mode()

		switch {
		case mode.IsDir():
			if err = root.MkdirAll(name, dirMode); err != nil {
				return summary, fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
			}

			summary.Directories++
		case mode&os.ModeSymlink != 0:
			if err = writeSymlink(root, name, entry); err != nil {
				return summary, err
			}

			summary.Symlinks++
		default:
			written, err := writeFile(root, name, entry)
			if err != nil {
				return summary, err
			}

			summary.Files++
			summary.Bytes += written
		}
	}

	// Links can alias a reserved path under another name.
	for reserved := range settings.present(root) {
		if !reservedBefore[reserved] {
			_ = root.Remove(reserved)

			return summary, fmt.Errorf("%s: %w: %w", reserved, ErrEntryReadFailed, errReservedName)
		}
	}

	logger.InfoKV(ctx, "Archive extracted",
		"destination", destination,
		"files", summary.Files,
		"directories", summary.Directories,
		"size", humanize.Bytes(summary.Bytes))

	return summary, nil
}

// entryName turns an entry name into a clean path relative to the destination,
// rejecting absolute and escaping names.
func entryName(name string) (string, error) {
	local := filepath.Clean(filepath.FromSlash(strings.TrimSuffix(name, "/")))
	if !filepath.IsLocal(local) {
		return "", errUnsafePath
	}

	return local, nil
}

func writeFile(root *os.Root, name string, entry *zip.File) (uint64, error) {
	if err := mkdirParent(root, name); err != nil {
		return 0, err
	}

	source, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, err)
	}

	defer func() {
		_ = source.Close()
	}()

	// A symlink left by a previous run must not redirect the write.
	if info, statErr := root.Lstat(name); statErr == nil && info.Mode()&os.ModeSymlink != 0 {
		_ = root.Remove(name)
	}

	perm := entry.Mode().Perm()
	if perm == 0 {
		perm = defaultFileMode
	}

	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	reader := &trackingReader{reader: source}

	written, err := io.Copy(out, reader)
	if err != nil {
		_ = out.Close()

		if reader.err != nil {
			return 0, fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, err)
		}

		return 0, fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	if err = out.Close(); err != nil {
		return 0, fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	// OpenFile is subject to the umask and ignores the mode of existing files.
	if err = root.Chmod(name, perm); err != nil {
		return 0, fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	//nolint:gosec // io.Copy never reports a negative count.
	return uint64(written), nil
}

func writeSymlink(root *os.Root, name string, entry *zip.File) error {
	source, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, err)
	}

	defer func() {
		_ = source.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(source, maxLinkTarget))
	if err != nil {
		return fmt.Errorf("%s: %w: %w", entry.Name, ErrEntryReadFailed, err)
	}

	// Lexical check only; links reached through earlier links are stopped by root.
	link := filepath.FromSlash(string(body))
	if filepath.IsAbs(link) || !filepath.IsLocal(filepath.Join(filepath.Dir(name), link)) {
		return fmt.Errorf("%s -> %s: %w: %w", entry.Name, link, ErrEntryReadFailed, errUnsafePath)
	}

	if err = mkdirParent(root, name); err != nil {
		return err
	}

	if err = root.RemoveAll(name); err != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	if err = root.Symlink(link, name); err != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrWriteFailed, err)
	}

	return nil
}

func mkdirParent(root *os.Root, name string) error {
	parent := filepath.Dir(name)
	if parent == "." {
		return nil
	}

	if err := root.MkdirAll(parent, dirMode); err != nil {
		return fmt.Errorf("%s: %w: %w", parent, ErrWriteFailed, err)
	}

	return nil
}

// trackingReader remembers read failures so they can be told apart from write failures.
type trackingReader struct {
	reader io.Reader
	err    error
}

func (r *trackingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}

	return n, err
}
