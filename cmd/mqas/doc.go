// Package main hosts the mqas CLI entrypoint and command graph.
//
// The Cobra-based command tree enqueues jobs, runs workers against the
// configured store, inspects and releases jobs, serves the HTTP API, and
// scaffolds configuration. Configuration resolution, global store overrides,
// and logger setup live in the shared command context so subcommands only
// translate flags into calls on the internal packages.
package main
