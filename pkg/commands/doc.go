// Package commands implements the dotstate commands on top of the services.
//
// Each command takes an Env, which wires the services for one storage root
// and user config, plus an Options struct, and returns a Result struct that
// the CLI renders. Commands never print.
package commands
