// Package checksum computes and verifies SHA-512 digests of downloaded archives.
// Digests are written base64-encoded in the settings file.
package checksum
