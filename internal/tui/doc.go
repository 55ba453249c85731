// Package tui is a read-only terminal viewer for a finished minutes job.
//
// The minutes panel lists one row per labeled sentence with the speaker and
// start time; tab switches to the full transcript. Both panels scroll with
// j/k or the arrow keys and wrap to the terminal width.
package tui
