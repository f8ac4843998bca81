// Package extractortest builds zip archives for tests.
package extractortest

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry describes one archive member. Names ending in "/" are directories.
// A non-empty Link makes the entry a symbolic link pointing at Link.
type Entry struct {
	Name string
	Body string
	Mode fs.FileMode
	Link string
}

// Build returns the bytes of a zip archive holding entries in order.
func Build(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buffer bytes.Buffer

	writer := zip.NewWriter(&buffer)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.Name,
			Method: zip.Deflate,
		}

		switch {
		case entry.Link != "":
			header.SetMode(fs.ModeSymlink | 0o777)
		case entry.Mode != 0:
			header.SetMode(entry.Mode)
		}

		w, err := writer.CreateHeader(header)
		require.NoError(t, err)

		body := entry.Body
		if entry.Link != "" {
			body = entry.Link
		}

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

// Write stores a zip archive holding entries at path.
func Write(t testing.TB, path string, entries ...Entry) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, Build(t, entries...), 0o600))
}

// Runtime returns the entries of a minimal runtime package: a "package"
// folder holding an executable named by runtimeExecutable plus a library file.
func Runtime(runtimeExecutable string) []Entry {
	return []Entry{
		{Name: "package/"},
		{Name: "package/" + runtimeExecutable, Body: "#!/bin/sh\nexit 0\n", Mode: 0o755},
		{Name: "package/lib/site.py", Body: "print('site')\n"},
	}
}
