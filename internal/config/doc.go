// Package config loads the mailcal server configuration.
//
// Values come, in increasing precedence, from built-in defaults, an optional
// YAML file, environment variables and command line flags bound by the serve
// command.
package config
