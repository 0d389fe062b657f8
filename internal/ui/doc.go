// Package ui implements a live terminal view for sync runs using bubbletea's Elm architecture.
//
// The watch [Model] renders one run of the sync engine: a spinner while the
// source is fetched, a progress bar as items are searched and attached, and a
// final summary with counters and the resume index when the run pauses.
//
// Progress updates flow through a channel from the engine, providing
// non-blocking status reporting; the engine drops updates the view is too slow
// to consume, so the view treats the stream as lossy.
package ui
