// Package cli wires together the Cobra command tree for the aicr binary.
//
// It defines the root command and its subcommands (review, config,
// providers, cache, hook, serve, version), binds flags, loads configuration,
// runs the review pipeline, and maps outcomes onto the exit codes used for
// CI gating.
package cli
