// Package fetcher downloads the runtime archive from an ordered mirror list.
//
// Mirrors are tried strictly in order and the first verified download wins.
// For each mirror the configured transports (the built-in HTTP client and
// external tools such as wget, curl or PowerShell) are tried in turn, each
// with a bounded number of retries. Failed attempts never leave a partial
// file behind.
package fetcher
