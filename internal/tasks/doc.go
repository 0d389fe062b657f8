// Package tasks orchestrates the resumable playlist sync with real-time progress reporting.
//
// # Core Operation
//
// [SyncEngine.Run] performs one Spotify → YouTube sync session:
//   - Loads the durable progress record (fresh start when absent, resume otherwise)
//   - Reuses the recorded destination playlist, or creates one and persists its id
//     before any item is processed
//   - Walks the work list from the resume point: resolve, attach, persist index
//   - Classifies failures: transient errors retry with bounded exponential
//     backoff, exhaustion or permanent errors pause the run at the failing item
//
// The persist-then-advance ordering is the correctness core: after a crash at
// most one item (the one in flight) can be reprocessed, and none can be
// skipped. A paused run keeps the failing item as the resume point; the next
// invocation retries it first.
//
// # Progress Reporting
//
// All phases emit [ProgressUpdate] values on a caller-supplied channel using
// select with default, so a slow or absent consumer never blocks the sync.
//
// # Match Caching and Run History
//
// The optional [MatchCacher] short-circuits repeat searches across runs, and
// the optional [RunRecorder] appends a history row per run. Both are best
// effort: their failures are logged and ignored.
package tasks
