package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
)

// MatchRepository implements models.Repository[*models.Match] for the
// search-result cache.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a match into the cache with generated ID and sequence
func (r *MatchRepository) Create(match *models.Match) error {
	sequence, err := NextSequence(r.db, "matches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	match.SetID(id)
	match.SetSequence(sequence)

	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO matches (id, sequence, search_key, video_id, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, match.SearchKey(), match.VideoID(), match.DisplayName(), match.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	return nil
}

// Get retrieves a match by ID
func (r *MatchRepository) Get(id string) (*models.Match, error) {
	query := `
		SELECT id, sequence, search_key, video_id, display_name, created_at
		FROM matches
		WHERE id = ?
	`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySearchKey retrieves a cached match for a search key, or nil when the
// key has never been resolved.
func (r *MatchRepository) GetBySearchKey(searchKey string) (*models.Match, error) {
	query := `
		SELECT id, sequence, search_key, video_id, display_name, created_at
		FROM matches
		WHERE search_key = ?
	`

	match, err := r.scan(r.db.QueryRow(query, searchKey))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return match, nil
}

// Delete removes a match from the cache
func (r *MatchRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM matches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("match %s not found", id)
	}

	return nil
}

// List retrieves all cached matches, oldest first.
func (r *MatchRepository) List() ([]*models.Match, error) {
	query := `
		SELECT id, sequence, search_key, video_id, display_name, created_at
		FROM matches
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		var (
			id, searchKey, videoID, displayName string
			sequence                            int
			createdAt                           time.Time
		)
		if err := rows.Scan(&id, &sequence, &searchKey, &videoID, &displayName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, models.MatchFromRow(id, sequence, searchKey, videoID, displayName, createdAt))
	}

	return matches, rows.Err()
}

// Clear empties the cache and returns the number of removed entries.
func (r *MatchRepository) Clear() (int, error) {
	result, err := r.db.Exec("DELETE FROM matches")
	if err != nil {
		return 0, fmt.Errorf("failed to clear matches: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared matches: %w", err)
	}

	return int(affected), nil
}

func (r *MatchRepository) scan(row *sql.Row) (*models.Match, error) {
	var (
		id, searchKey, videoID, displayName string
		sequence                            int
		createdAt                           time.Time
	)

	err := row.Scan(&id, &sequence, &searchKey, &videoID, &displayName, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("match not found")
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	return models.MatchFromRow(id, sequence, searchKey, videoID, displayName, createdAt), nil
}

// MatchCacheAdapter implements tasks.MatchCacher over MatchRepository.
//
// Lookups key on the normalized search key; duplicate inserts are silently
// ignored (UNIQUE constraint violations), so concurrent re-runs never fail a
// transfer over cache contention.
type MatchCacheAdapter struct {
	repo *MatchRepository
}

// NewMatchCacheAdapter creates a new MatchCacheAdapter with the given repository
func NewMatchCacheAdapter(repo *MatchRepository) *MatchCacheAdapter {
	return &MatchCacheAdapter{repo: repo}
}

// Lookup returns the cached video id for the search key, or "" on a miss.
func (a *MatchCacheAdapter) Lookup(searchKey string) (string, error) {
	match, err := a.repo.GetBySearchKey(normalizeKey(searchKey))
	if err != nil {
		return "", err
	}
	if match == nil {
		return "", nil
	}
	return match.VideoID(), nil
}

// Store caches a resolved search key.
// Returns nil if the key is already cached (deduplication).
func (a *MatchCacheAdapter) Store(searchKey, videoID, displayName string) error {
	match := models.NewMatch(normalizeKey(searchKey), videoID, displayName)

	if err := a.repo.Create(match); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache match: %w", err)
	}

	return nil
}

func normalizeKey(searchKey string) string {
	return strings.Join(strings.Fields(strings.ToLower(searchKey)), " ")
}
