// Package deps checks that the external binaries loom shells out to are
// installed.
package deps
