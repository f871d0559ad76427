// Package preflight provides readiness checks for the binaries, directories,
// and credentials loom depends on.
//
// The run command calls RunAll before touching the input so a missing
// ffmpeg or an unwritable state directory fails in seconds rather than after
// splitting an hour of audio. The check command renders the same results,
// plus a live Gemini health check, as a table.
package preflight
