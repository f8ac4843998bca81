// Package install contains the core domain types of the bootstrapper.
//
// State enumerates the steps of the install state machine, TargetState
// classifies what is on disk, and Record is the token kept in the success
// marker together with the Actor who ran the install.
package install
