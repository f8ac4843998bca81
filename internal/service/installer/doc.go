// Package installer drives the install state machine:
//
//	START -> CHECK_INSTALLED -> HANDOFF                         (already installed)
//	START -> CHECK_INSTALLED -> FETCHING -> VERIFYING ->
//	         EXTRACTING -> NORMALIZING -> DEP_INSTALL ->
//	         MARK_SUCCESS -> HANDOFF                            (fresh install)
//
// Every failure jumps straight to END with a stage-specific exit code and
// never reaches HANDOFF. The success marker is written only after all
// earlier steps returned, so an interrupted or failed run is retried from
// scratch on the next start, subject to the collision policy.
package installer
