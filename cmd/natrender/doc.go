// Package main hosts the natrender CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon, runs blocking renders in the foreground (including the
// child mode the daemon spawns for out-of-process renders) and scaffolds
// configuration. Scheduling lives in internal/render; commands here only
// resolve configuration, pick a transport and format output.
package main
