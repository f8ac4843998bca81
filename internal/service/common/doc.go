// Package common holds helpers shared by several services.
//
// It detects the current system actor (hostname/username) for the install
// record and looks for other running copies of the bootstrapper.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
