// Package packager prepares the settings a release is installed with.
//
// It fingerprints a runtime archive with the same SHA-512 digest the
// installer verifies, optionally pins the digest in the settings file,
// and writes the default settings for a fresh deployment.
package packager
