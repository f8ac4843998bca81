// Package extractor materializes a zip archive under a destination directory.
//
// Entries are written in archive order. Parent directories are created as
// needed, existing files are overwritten and file modes are preserved.
// Archives can be read from disk or from an in-memory buffer; the buffer is
// first written to a private temporary file so both sources share one code path.
package extractor
