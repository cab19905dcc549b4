// Package notifications delivers render events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each event kind can be switched off individually. Observer adapts
// dispatcher events to notifications on a background worker so a slow ntfy
// server never holds a render back.
package notifications
