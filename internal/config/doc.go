// Package config loads, normalizes, and validates natrender configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NATRENDER_NTFY_TOPIC. The Config type centralizes every knob the daemon,
// the dispatcher and the CLI need, from the render policy flags to the frame
// command template.
package config
