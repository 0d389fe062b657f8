// package tasks implements the resumable playlist sync engine.
//
// The core abstraction is SyncEngine, which walks the source work list
// exactly once per item, persists progress after each item, and classifies
// failures into retry-now / pause / fail. Operations emit progress updates
// via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/services"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/state"
	"golang.org/x/time/rate"
)

// ItemResult is the per-item outcome of one loop iteration.
type ItemResult struct {
	Index     int             // Position in the work list
	Item      models.WorkItem // The processed item
	VideoID   string          // Resolved destination reference, empty when no match
	Added     bool            // True when the item was attached to the playlist
	FromCache bool            // True when the match came from the cache, not a search
	Err       error           // Terminal error for this item (run paused here)
}

// SyncResult contains all data from one engine run.
type SyncResult struct {
	Status      models.RunStatus // Terminal status: completed, paused, failed
	PlaylistID  string           // Destination playlist the run wrote to
	TotalItems  int              // Length of the work list
	Processed   int              // Items processed this run (match, no-match, or skip)
	Matched     int              // Items attached to the destination playlist
	Missed      int              // Items with no destination candidate
	ResumeIndex int              // Next unprocessed index at the time the run stopped
	Cause       error            // Why the run paused or failed, nil when completed
	Items       []ItemResult     // Per-item outcomes for this run
}

// RunOpts identify the source playlist and describe the destination.
type RunOpts struct {
	SourcePlaylistID string
	Title            string // Destination playlist title, required on first run
	Description      string
}

// Options tune the engine's failure policy.
type Options struct {
	MaxAttempts    int     // Attempts per remote call before pausing (default 3)
	BackoffBaseMS  int     // Initial retry delay in milliseconds (default 2000)
	RateLimit      float64 // Search requests per second, 0 disables limiting
	SkipDuplicates bool    // Treat duplicate playlist membership as success
}

// MatchCacher caches resolved search keys across runs.
// Cache failures never disrupt a transfer; they are logged and ignored.
type MatchCacher interface {
	Lookup(searchKey string) (string, error)
	Store(searchKey, videoID, displayName string) error
}

// RunRecorder persists run history rows for operator diagnosis.
type RunRecorder interface {
	Create(run *models.Run) error
}

// SyncEngine defines the resumable sync operation.
type SyncEngine interface {
	// Run loads or creates the progress record, walks the work list from the
	// resume point, and returns the terminal result. Paused and completed
	// runs return a result and nil error; a non-nil error means the run
	// failed (corrupted state, setup failure, or an unwritable progress
	// record) and nothing further should be assumed.
	Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*SyncResult, error)
}

// PlaylistEngine implements [SyncEngine].
type PlaylistEngine struct {
	source      services.SourceReader
	resolver    services.MatchResolver
	writer      services.DestinationWriter
	provisioner services.PlaylistProvisioner
	store       state.Store
	cache       MatchCacher // optional
	history     RunRecorder // optional
	limiter     *rate.Limiter
	retry       retryPolicy
	skipDups    bool
	logger      *log.Logger
}

// Deps are the capability providers the engine orchestrates.
type Deps struct {
	Source      services.SourceReader
	Resolver    services.MatchResolver
	Writer      services.DestinationWriter
	Provisioner services.PlaylistProvisioner
	Store       state.Store
	Cache       MatchCacher
	History     RunRecorder
	Logger      *log.Logger
}

// NewPlaylistEngine creates a PlaylistEngine with the provided capabilities.
func NewPlaylistEngine(deps Deps, opts Options) *PlaylistEngine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBaseMS <= 0 {
		opts.BackoffBaseMS = 2000
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PlaylistEngine{
		source:      deps.Source,
		resolver:    deps.Resolver,
		writer:      deps.Writer,
		provisioner: deps.Provisioner,
		store:       deps.Store,
		cache:       deps.Cache,
		history:     deps.History,
		limiter:     limiter,
		retry:       newRetryPolicy(opts.MaxAttempts, opts.BackoffBaseMS),
		skipDups:    opts.SkipDuplicates,
		logger:      logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes one resumable sync.
func (e *PlaylistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*SyncResult, error) {
	if e.source == nil || e.resolver == nil || e.writer == nil || e.provisioner == nil {
		return nil, fmt.Errorf("%w: engine capabilities not initialized", shared.ErrServiceUnavailable)
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: progress store not initialized", shared.ErrServiceUnavailable)
	}
	if opts.SourcePlaylistID == "" {
		return nil, fmt.Errorf("%w: source playlist id", shared.ErrMissingArgument)
	}

	// Init: the progress record decides between a fresh start and a resume.
	// Corruption is fatal; guessing a safe index could skip or redo work.
	record, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	logger := shared.WithLogger(e.logger, "source", opts.SourcePlaylistID)
	if record == nil {
		record = &state.Record{}
		logger.Info("starting new sync")
		e.sendProgress(progress, startingUpdate())
	} else {
		logger.Info("resuming sync", "next_index", record.NextIndex, "playlist", record.PlaylistID)
		e.sendProgress(progress, resumingUpdate(record.NextIndex))
	}

	run := models.NewRun(opts.SourcePlaylistID)

	// Setup failures abort before any progress is recorded.
	e.sendProgress(progress, fetchSourceUpdate())
	items, err := e.source.Tracks(ctx, opts.SourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source playlist: %w", err)
	}

	playlistID, err := e.ensurePlaylist(ctx, progress, record, opts)
	if err != nil {
		return nil, err
	}
	run.SetDestPlaylistID(playlistID)

	result := &SyncResult{
		Status:     models.RunCompleted,
		PlaylistID: playlistID,
		TotalItems: len(items),
	}

	for i := record.NextIndex; i < len(items); i++ {
		outcome := e.processItem(ctx, progress, record, playlistID, i, len(items), items[i])
		result.Items = append(result.Items, outcome)

		if outcome.Err != nil {
			// Pause: keep the failing item as the resume point so the next
			// run retries it. NextIndex is already i; the save refreshes the
			// timestamp and persists a playlist id created this run.
			record.NextIndex = i
			if saveErr := e.store.Save(record); saveErr != nil {
				result.Status = models.RunFailed
				result.Cause = saveErr
				result.ResumeIndex = i
				e.recordRun(run, result)
				return result, saveErr
			}

			result.Status = models.RunPaused
			result.Cause = outcome.Err
			result.ResumeIndex = i
			logger.Warn("sync paused", "index", i, "item", items[i].DisplayName, "cause", outcome.Err)
			e.sendProgress(progress, pausedUpdate(i, items[i], outcome.Err))
			e.recordRun(run, result)
			return result, nil
		}

		// Persist-then-advance: the record moves past item i only after its
		// side effects are durable. An unwritable record fails the run; the
		// engine cannot guarantee forward progress without it.
		record.NextIndex = i + 1
		if err := e.store.Save(record); err != nil {
			result.Status = models.RunFailed
			result.Cause = err
			result.ResumeIndex = i
			e.recordRun(run, result)
			return result, fmt.Errorf("failed to persist progress at index %d: %w", i, err)
		}

		result.Processed++
		if outcome.Added {
			result.Matched++
		} else {
			result.Missed++
		}
	}

	result.ResumeIndex = len(items)
	if record.NextIndex > len(items) {
		// The source shrank since the record was written. Nothing left to
		// process; completing with zero items is defined behavior.
		result.ResumeIndex = record.NextIndex
	}

	logger.Info("sync completed", "total", result.TotalItems, "matched", result.Matched, "missed", result.Missed)
	e.sendProgress(progress, completedUpdate(result.Processed, result.TotalItems))
	e.recordRun(run, result)
	return result, nil
}

// ensurePlaylist reuses the recorded destination playlist or creates one,
// persisting the new id before any item is processed so a crash between
// creation and the first write cannot orphan-create a second playlist.
func (e *PlaylistEngine) ensurePlaylist(ctx context.Context, progress chan<- ProgressUpdate, record *state.Record, opts RunOpts) (string, error) {
	if record.PlaylistID != "" {
		e.sendProgress(progress, reusePlaylistUpdate(record.PlaylistID))
		return record.PlaylistID, nil
	}

	e.sendProgress(progress, createPlaylistUpdate(opts.Title))
	playlistID, err := e.provisioner.Ensure(ctx, opts.Title, opts.Description, "")
	if err != nil {
		return "", fmt.Errorf("failed to provision destination playlist: %w", err)
	}

	record.PlaylistID = playlistID
	if err := e.store.Save(record); err != nil {
		return "", fmt.Errorf("failed to persist playlist id: %w", err)
	}

	e.logger.Info("created destination playlist", "playlist", playlistID)
	return playlistID, nil
}

// processItem resolves and attaches one work item. A returned ItemResult with
// a non-nil Err pauses the run at this index.
func (e *PlaylistEngine) processItem(ctx context.Context, progress chan<- ProgressUpdate, record *state.Record, playlistID string, index, total int, item models.WorkItem) ItemResult {
	result := ItemResult{Index: index, Item: item}

	e.sendProgress(progress, searchUpdate(index, total, item))

	videoID, fromCache, err := e.resolve(ctx, item)
	if err != nil {
		result.Err = fmt.Errorf("resolve %q (item %d): %w", item.DisplayName, index+1, err)
		return result
	}
	result.VideoID = videoID
	result.FromCache = fromCache

	if videoID == "" {
		// Not an error: log, count, and let the index advance past it.
		e.logger.Info("no match found", "index", index, "item", item.DisplayName)
		e.sendProgress(progress, notFoundUpdate(index, total, item))
		return result
	}

	if err := e.attach(ctx, playlistID, videoID); err != nil {
		result.Err = fmt.Errorf("attach %q (item %d): %w", item.DisplayName, index+1, err)
		return result
	}

	result.Added = true
	e.logger.Info("added to playlist", "index", index, "item", item.DisplayName, "video", videoID)
	e.sendProgress(progress, addedUpdate(index, total, item, videoID))
	return result
}

// resolve consults the cache first, then searches the destination with the
// retry policy applied to transport failures.
func (e *PlaylistEngine) resolve(ctx context.Context, item models.WorkItem) (videoID string, fromCache bool, err error) {
	if e.cache != nil {
		cached, cacheErr := e.cache.Lookup(item.SearchKey)
		if cacheErr != nil {
			e.logger.Debug("match cache lookup failed", "error", cacheErr)
		} else if cached != "" {
			return cached, true, nil
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", false, err
		}
	}

	err = e.retry.do(ctx, func() error {
		var resolveErr error
		videoID, resolveErr = e.resolver.Resolve(ctx, item.SearchKey)
		return resolveErr
	})
	if err != nil {
		return "", false, err
	}

	if videoID != "" && e.cache != nil {
		if cacheErr := e.cache.Store(item.SearchKey, videoID, item.DisplayName); cacheErr != nil {
			e.logger.Debug("match cache store failed", "error", cacheErr)
		}
	}

	return videoID, false, nil
}

// attach writes the reference to the playlist under the retry policy.
// Duplicate membership counts as success when configured; otherwise the
// conflict retries like any other transient failure.
func (e *PlaylistEngine) attach(ctx context.Context, playlistID, videoID string) error {
	return e.retry.do(ctx, func() error {
		err := e.writer.Attach(ctx, playlistID, videoID)
		if err == nil {
			return nil
		}

		if e.skipDups {
			var apiErr *shared.APIError
			if errors.As(err, &apiErr) && apiErr.IsDuplicate() {
				e.logger.Info("already in playlist, skipping", "video", videoID)
				return nil
			}
		}

		return err
	})
}

// recordRun appends the run to history. Best effort: history failures are
// logged, never surfaced, so diagnostics cannot break a transfer.
func (e *PlaylistEngine) recordRun(run *models.Run, result *SyncResult) {
	if e.history == nil {
		return
	}

	run.Finish(result.Status, result.TotalItems, result.Processed, result.Matched, result.Missed, result.ResumeIndex, result.Cause)
	if err := e.history.Create(run); err != nil {
		e.logger.Debug("failed to record run history", "error", err)
	}
}
