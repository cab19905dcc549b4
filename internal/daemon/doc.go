// Package daemon coordinates the long-running natrender process.
//
// It loads the configured project, wires the render dispatcher to the render
// journal and the notifier, and guards the whole lifecycle with a flock-based
// lock so only one daemon renders a given log directory at a time. Startup
// settles journal records a crashed daemon left active or pending and logs
// failed preflight checks.
//
// Scheduling decisions belong to the render package; the daemon only starts,
// stops and forwards requests.
package daemon
