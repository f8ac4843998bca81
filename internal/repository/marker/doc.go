// Package marker persists the "installation completed" fact.
//
// The FileTracker stores it as a sentinel file directly under the install
// target. Presence of the file is the only source of truth; the YAML record
// inside it is informational and never validated.
package marker
