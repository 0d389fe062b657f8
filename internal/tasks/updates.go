package tasks

import (
	"fmt"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current item index within the work list (0 when not item-scoped)
	Total   int    // Work list length (0 when not item-scoped)
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResumeState Phase = iota
	FetchSource
	CreatePlaylist
	SearchTracks
	AttachTrack
	SyncPaused
	SyncComplete
)

func (p Phase) String() string {
	switch p {
	case ResumeState:
		return "resume_state"
	case FetchSource:
		return "fetch_source"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AttachTrack:
		return "attach_track"
	case SyncPaused:
		return "sync_paused"
	case SyncComplete:
		return "sync_complete"
	default:
		return ""
	}
}

func startingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResumeState,
		Message: "No progress record found, starting from the beginning...",
	}
}

func resumingUpdate(nextIndex int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResumeState,
		Step:    nextIndex,
		Message: fmt.Sprintf("Resuming from track %d", nextIndex+1),
	}
}

func fetchSourceUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Message: "Fetching source playlist from Spotify...",
	}
}

func createPlaylistUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Message: fmt.Sprintf("Creating YouTube playlist %q...", title),
	}
}

func reusePlaylistUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Message: fmt.Sprintf("Resuming with existing YouTube playlist ID: %s", playlistID),
		Data:    playlistID,
	}
}

func searchUpdate(index, total int, item models.WorkItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    index,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Processing: %s", index+1, total, item.DisplayName),
	}
}

func notFoundUpdate(index, total int, item models.WorkItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    index,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] No match found for %s", index+1, total, item.DisplayName),
	}
}

func addedUpdate(index, total int, item models.WorkItem, videoID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AttachTrack,
		Step:    index,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Added %s", index+1, total, item.DisplayName),
		Data:    videoID,
	}
}

func pausedUpdate(index int, item models.WorkItem, cause error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPaused,
		Step:    index,
		Message: fmt.Sprintf("Paused at track %d (%s): %v", index+1, item.DisplayName, cause),
		Data:    cause,
	}
}

func completedUpdate(processed, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncComplete,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Sync complete: %d of %d tracks processed this run", processed, total),
	}
}
