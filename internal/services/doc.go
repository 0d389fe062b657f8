// Package services implements the narrow capability interfaces the sync
// engine depends on.
//
// [SpotifyService] is the [SourceReader]: it fetches a playlist's full track
// list, following pagination, and reduces each track to a [models.WorkItem].
//
// [YouTubeService] covers the destination side: [MatchResolver] (search),
// [DestinationWriter] (playlist item insert) and, through [Provisioner],
// [PlaylistProvisioner] (playlist creation). Failed calls surface as
// [shared.APIError] so the engine can classify them as transient or
// permanent.
//
// Authentication is deliberately thin: both services accept an already
// acquired access token via Authenticate. Token acquisition and refresh are
// external concerns.
package services
