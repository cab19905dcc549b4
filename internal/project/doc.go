// Package project loads the TOML project documents natrender renders from.
//
// A project declares a global frame range and a flat list of nodes. Writer
// and disk cache nodes are output nodes and satisfy render.Writer; their
// pixel work is delegated to a FrameRenderer supplied at load time. The
// package also writes the project snapshots handed to child render
// processes.
package project
