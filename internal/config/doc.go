// Package config defines the install configuration and provides helpers to
// load, validate and save it in YAML format.
//
// Values are layered: built-in defaults, then the YAML file, then BOOTSTRAP_*
// environment variables. The CLI applies its flags on top of the result.
package config
