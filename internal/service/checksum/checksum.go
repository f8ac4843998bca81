package checksum

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// Hash is the digest used for archive checksums.
const Hash crypto.Hash = crypto.SHA512

var (
	// ErrMismatch is returned when a file does not match the expected digest.
	ErrMismatch = errors.New("checksum mismatch")
	// ErrEmptyFile is returned when the verified file has no content.
	ErrEmptyFile = errors.New("file is empty")
	// errHashUnavailable is returned when the hash is not linked into the binary.
	errHashUnavailable = errors.New("hash function unavailable")
)

// File returns the digest of the file at path.
func File(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	return Reader(f)
}

// Reader returns the digest of everything read from r.
func Reader(r io.Reader) ([]byte, error) {
	if !Hash.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := Hash.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// Encode renders a digest the way it is written in the settings file.
func Encode(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// Decode parses a base64 digest from the settings file. Empty input yields nil.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	sum, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	if len(sum) != Hash.Size() {
		return nil, fmt.Errorf("decode checksum: want %d bytes, got %d", Hash.Size(), len(sum))
	}

	return sum, nil
}

// Verify checks that path is a non-empty file and, when expected is set,
// that its digest matches.
func Verify(path string, expected []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	if expected == nil {
		return nil
	}

	actual, err := File(path)
	if err != nil {
		return err
	}

	if !bytes.Equal(actual, expected) {
		return fmt.Errorf("%s: expected %s, got %s: %w", path, Encode(expected), Encode(actual), ErrMismatch)
	}

	return nil
}

// Verifier returns a function that verifies files against expected.
func Verifier(expected []byte) func(path string) error {
	return func(path string) error {
		return Verify(path, expected)
	}
}
