// Package runner is the single capability the bootstrapper uses to start
// external programs: download tools, the dependency installer and the
// runtime entry point. Only the exit status is consulted; output goes
// straight to the console.
package runner
