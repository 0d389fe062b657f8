// package services defines the capability interfaces the sync engine calls
// through, and their HTTP API implementations.
//
// Spotify (source), YouTube Data API v3 (destination)
package services

import (
	"context"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
)

// SourceReader fetches the complete ordered work list from the source catalog.
type SourceReader interface {
	// Tracks returns every track of the playlist as work items, in playlist
	// order, fully paginated before returning.
	Tracks(ctx context.Context, playlistID string) ([]models.WorkItem, error)

	// Playlist retrieves playlist metadata (name, track count).
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)
}

// MatchResolver resolves one work item against the destination catalog.
type MatchResolver interface {
	// Resolve returns the destination video id for the search key, or an
	// empty string when the catalog has no candidate. "No match" is a normal
	// outcome, never an error; errors are transport-level failures only.
	Resolve(ctx context.Context, searchKey string) (string, error)
}

// DestinationWriter attaches one resolved reference to a destination playlist.
type DestinationWriter interface {
	// Attach performs a single insert call. Retry policy lives in the caller.
	Attach(ctx context.Context, playlistID, videoID string) error
}

// PlaylistProvisioner ensures a destination playlist exists.
type PlaylistProvisioner interface {
	// Ensure returns existingID unchanged when it is non-empty, without any
	// remote call or validation. Otherwise it creates a playlist and returns
	// the new id.
	Ensure(ctx context.Context, title, description, existingID string) (string, error)
}
