// Package engine runs in-process renders by invoking the configured frame
// command once per frame.
//
// The engine walks a validated range, expands the writer's output pattern
// for each frame and substitutes it into the command line. Cancellation is
// checked between frames; a running frame command is killed with its
// context.
package engine
