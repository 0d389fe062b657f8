// package models defines the data model for the playlist converter
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error     // Create inserts a new model into the database
	Get(id string) (T, error) // Get retrieves a model by its ID
	Delete(id string) error   // Delete removes a model from the database by its ID
}

// Track represents a music track from the source service.
type Track struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration int // Duration in seconds
	ISRC     string
}

// WorkItem is one unit of migration work: a source track reduced to the text
// used to search the destination. Identity is its position in the work list.
type WorkItem struct {
	DisplayName string // Human-readable label for logs and status lines
	SearchKey   string // Query text for the destination catalog
}

// WorkItemFromTrack derives a work item the same way the source export
// labels tracks: "title artist".
func WorkItemFromTrack(t Track) WorkItem {
	name := t.Title
	if t.Artist != "" {
		name = fmt.Sprintf("%s %s", t.Title, t.Artist)
	}
	return WorkItem{DisplayName: name, SearchKey: name}
}

// Playlist represents a playlist on either service.
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
}

// RunStatus is the terminal status of one engine run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPaused    RunStatus = "paused"
	RunFailed    RunStatus = "failed"
)

// Run is a persisted record of one sync engine invocation.
type Run struct {
	id               string
	sequence         int
	sourcePlaylistID string
	destPlaylistID   string
	status           RunStatus
	totalItems       int
	processed        int
	matched          int
	missed           int
	resumeIndex      int
	errMessage       string
	startedAt        time.Time
	finishedAt       time.Time
}

// NewRun creates a run record for the given source playlist, started now.
func NewRun(sourcePlaylistID string) *Run {
	return &Run{
		sourcePlaylistID: sourcePlaylistID,
		startedAt:        time.Now().UTC(),
	}
}

func (r *Run) ID() string               { return r.id }
func (r *Run) Sequence() int            { return r.sequence }
func (r *Run) SourcePlaylistID() string { return r.sourcePlaylistID }
func (r *Run) DestPlaylistID() string   { return r.destPlaylistID }
func (r *Run) Status() RunStatus        { return r.status }
func (r *Run) TotalItems() int          { return r.totalItems }
func (r *Run) Processed() int           { return r.processed }
func (r *Run) Matched() int             { return r.matched }
func (r *Run) Missed() int              { return r.missed }
func (r *Run) ResumeIndex() int         { return r.resumeIndex }
func (r *Run) ErrMessage() string       { return r.errMessage }
func (r *Run) CreatedAt() time.Time     { return r.startedAt }
func (r *Run) StartedAt() time.Time     { return r.startedAt }
func (r *Run) FinishedAt() time.Time    { return r.finishedAt }

func (r *Run) SetID(id string)             { r.id = id }
func (r *Run) SetSequence(seq int)         { r.sequence = seq }
func (r *Run) SetDestPlaylistID(id string) { r.destPlaylistID = id }

// MarshalJSON exposes the run's fields for CLI output.
func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":                 r.id,
		"sequence":           r.sequence,
		"source_playlist_id": r.sourcePlaylistID,
		"dest_playlist_id":   r.destPlaylistID,
		"status":             r.status,
		"total_items":        r.totalItems,
		"processed":          r.processed,
		"matched":            r.matched,
		"missed":             r.missed,
		"resume_index":       r.resumeIndex,
		"error":              r.errMessage,
		"started_at":         r.startedAt,
		"finished_at":        r.finishedAt,
	})
}

// Finish marks the run terminal with its outcome counters.
func (r *Run) Finish(status RunStatus, totalItems, processed, matched, missed, resumeIndex int, cause error) {
	r.status = status
	r.totalItems = totalItems
	r.processed = processed
	r.matched = matched
	r.missed = missed
	r.resumeIndex = resumeIndex
	if cause != nil {
		r.errMessage = cause.Error()
	}
	r.finishedAt = time.Now().UTC()
}

func (r *Run) Validate() error {
	if r.sourcePlaylistID == "" {
		return fmt.Errorf("run requires a source playlist id")
	}
	if r.status == "" {
		return fmt.Errorf("run requires a status")
	}
	switch r.status {
	case RunCompleted, RunPaused, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	return nil
}

// RunFromRow rehydrates a run from database columns.
func RunFromRow(id string, sequence int, sourceID, destID string, status RunStatus, total, processed, matched, missed, resumeIndex int, errMessage string, startedAt, finishedAt time.Time) *Run {
	return &Run{
		id:               id,
		sequence:         sequence,
		sourcePlaylistID: sourceID,
		destPlaylistID:   destID,
		status:           status,
		totalItems:       total,
		processed:        processed,
		matched:          matched,
		missed:           missed,
		resumeIndex:      resumeIndex,
		errMessage:       errMessage,
		startedAt:        startedAt,
		finishedAt:       finishedAt,
	}
}

// Match is a persisted search result: a source search key resolved to a
// destination video id. Used as a cache to avoid repeat searches.
type Match struct {
	id          string
	sequence    int
	searchKey   string
	videoID     string
	displayName string
	createdAt   time.Time
}

// NewMatch creates a cacheable match for a resolved search key.
func NewMatch(searchKey, videoID, displayName string) *Match {
	return &Match{
		searchKey:   searchKey,
		videoID:     videoID,
		displayName: displayName,
		createdAt:   time.Now().UTC(),
	}
}

func (m *Match) ID() string           { return m.id }
func (m *Match) Sequence() int        { return m.sequence }
func (m *Match) SearchKey() string    { return m.searchKey }
func (m *Match) VideoID() string      { return m.videoID }
func (m *Match) DisplayName() string  { return m.displayName }
func (m *Match) CreatedAt() time.Time { return m.createdAt }

func (m *Match) SetID(id string)     { m.id = id }
func (m *Match) SetSequence(seq int) { m.sequence = seq }

// MarshalJSON exposes the match's fields for CLI output.
func (m *Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":           m.id,
		"sequence":     m.sequence,
		"search_key":   m.searchKey,
		"video_id":     m.videoID,
		"display_name": m.displayName,
		"created_at":   m.createdAt,
	})
}

func (m *Match) Validate() error {
	if m.searchKey == "" {
		return fmt.Errorf("match requires a search key")
	}
	if m.videoID == "" {
		return fmt.Errorf("match requires a video id")
	}
	return nil
}

// MatchFromRow rehydrates a match from database columns.
func MatchFromRow(id string, sequence int, searchKey, videoID, displayName string, createdAt time.Time) *Match {
	return &Match{
		id:          id,
		sequence:    sequence,
		searchKey:   searchKey,
		videoID:     videoID,
		displayName: displayName,
		createdAt:   createdAt,
	}
}
