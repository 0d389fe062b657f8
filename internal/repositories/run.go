package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
)

// RunRepository implements models.Repository[*models.Run] for run history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a finished run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (id, sequence, source_playlist_id, dest_playlist_id, status, total_items, processed, matched, missed, resume_index, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.SourcePlaylistID(),
		run.DestPlaylistID(),
		string(run.Status()),
		run.TotalItems(),
		run.Processed(),
		run.Matched(),
		run.Missed(),
		run.ResumeIndex(),
		run.ErrMessage(),
		run.StartedAt(),
		run.FinishedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, sequence, source_playlist_id, dest_playlist_id, status, total_items, processed, matched, missed, resume_index, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Delete removes a run from the history
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

// ListRecent retrieves the most recent runs, newest first.
func (r *RunRepository) ListRecent(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, sequence, source_playlist_id, dest_playlist_id, status, total_items, processed, matched, missed, resume_index, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *RunRepository) scanOne(row *sql.Row) (*models.Run, error) {
	run, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	return run, err
}

func (r *RunRepository) scanRow(row scannable) (*models.Run, error) {
	var (
		id, sourceID, status                                     string
		destID, errMessage                                       sql.NullString
		sequence, total, processed, matched, missed, resumeIndex int
		startedAt                                                time.Time
		finishedAt                                               sql.NullTime
	)

	err := row.Scan(&id, &sequence, &sourceID, &destID, &status, &total, &processed, &matched, &missed, &resumeIndex, &errMessage, &startedAt, &finishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return models.RunFromRow(
		id, sequence, sourceID, destID.String, models.RunStatus(status),
		total, processed, matched, missed, resumeIndex,
		errMessage.String, startedAt, finishedAt.Time,
	), nil
}
