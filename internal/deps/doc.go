// Package deps reports whether the external binaries natrender invokes are
// installed.
package deps
