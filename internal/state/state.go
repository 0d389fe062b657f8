// package state persists sync progress across process restarts.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
)

const (
	recordFile = "progress.json"
	lockFile   = "sync.lock"
)

// Record is the durable progress of one playlist sync.
//
// NextIndex is the single source of truth for what has been done: it is the
// index of the next unprocessed work item, never decremented by the engine.
// PlaylistID caches the destination playlist so resumed runs do not create a
// second one.
type Record struct {
	NextIndex  int       `json:"next_index"`
	PlaylistID string    `json:"playlist_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store is the engine's durable progress record.
//
// Save must be atomic: a reader after a crash sees either the old record or
// the new one, never a partial write.
type Store interface {
	// Load returns the stored record, or nil when none exists. An unreadable
	// or unparseable record returns [shared.ErrStateCorrupted].
	Load() (*Record, error)

	// Save durably replaces the record.
	Save(record *Record) error

	// Reset deletes the record. Deleting a record that does not exist is not
	// an error.
	Reset() error
}

// FileStore implements [Store] as a single JSON file replaced wholesale via
// temp-file-plus-rename on every save.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, recordFile)
}

// Load reads the progress record. A missing file returns (nil, nil); a
// present but unreadable record is corruption, not a fresh start.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrStateCorrupted, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStateCorrupted, err)
	}

	if record.NextIndex < 0 {
		return nil, fmt.Errorf("%w: negative next_index %d", shared.ErrStateCorrupted, record.NextIndex)
	}

	return &record, nil
}

// Save writes the record to a temp file and renames it over the current one.
func (s *FileStore) Save(record *Record) error {
	record.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress record: %w", err)
	}

	tmpFile := s.path() + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path()); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename progress record: %w", err)
	}

	return nil
}

// Reset removes the stored record.
func (s *FileStore) Reset() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove progress record: %w", err)
	}
	return nil
}

// Lock is an advisory lock ensuring a single engine instance per state
// directory.
type Lock struct {
	flock *flock.Flock
}

// NewLock creates a lock file handle inside the state directory.
func NewLock(dir string) *Lock {
	return &Lock{flock: flock.New(filepath.Join(dir, lockFile))}
}

// Acquire takes the lock without blocking. A held lock returns
// [shared.ErrRunLocked]: the caller should exit rather than wait, because the
// other instance owns the progress record.
func (l *Lock) Acquire() error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return shared.ErrRunLocked
	}
	return nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
