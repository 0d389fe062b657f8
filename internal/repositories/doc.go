// Package repositories implements sqlite persistence for run history and the
// match cache.
//
// [RunRepository] records one row per engine invocation: terminal status,
// counters, and the resume index at the time the run stopped. The rows exist
// for operator diagnosis ("when did this pause, and why"), not for
// resumption; the progress record in internal/state owns that.
//
// [MatchRepository] caches resolved search keys so a fresh sync of an
// overlapping playlist skips repeat destination searches.
// [MatchCacheAdapter] narrows it to the engine's MatchCacher interface.
package repositories
