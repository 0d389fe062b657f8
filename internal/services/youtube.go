// YouTube Data API v3 implementations of [MatchResolver], [DestinationWriter]
// and [PlaylistProvisioner].
//
// Endpoints per https://developers.google.com/youtube/v3/docs
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
)

const defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTubeService implements the destination-side capabilities against the
// YouTube Data API.
type YouTubeService struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewYouTubeService creates a new YouTube service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Authenticate stores the bearer token for subsequent requests.
//
// Expects credentials["access_token"]; acquiring and refreshing the token
// happens outside this program.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	token, ok := credentials["access_token"]
	if !ok || token == "" {
		return fmt.Errorf("%w: missing access_token", shared.ErrMissingCredentials)
	}

	y.accessToken = token
	return nil
}

// googleErrorBody is the standard Google API error envelope.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := y.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+y.accessToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return &shared.APIError{Service: "youtube", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &shared.APIError{Service: "youtube", Status: resp.StatusCode}
		var errBody googleErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Message = errBody.Error.Message
			if len(errBody.Error.Errors) > 0 {
				apiErr.Reason = errBody.Error.Errors[0].Reason
			}
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Resolve searches the catalog and returns the first video id for the query,
// or an empty string when no candidate exists.
//
// Calls GET /search with type=video and maxResults=1.
func (y *YouTubeService) Resolve(ctx context.Context, searchKey string) (string, error) {
	endpoint := fmt.Sprintf("/search?part=snippet&type=video&maxResults=1&q=%s", url.QueryEscape(searchKey))

	var response struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}

	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return "", err
	}

	if len(response.Items) == 0 {
		return "", nil
	}

	return response.Items[0].ID.VideoID, nil
}

// Attach inserts the video into the playlist.
//
// Calls POST /playlistItems. One wire call per invocation; the engine owns
// retries.
func (y *YouTubeService) Attach(ctx context.Context, playlistID, videoID string) error {
	body := map[string]any{
		"snippet": map[string]any{
			"playlistId": playlistID,
			"resourceId": map[string]string{
				"kind":    "youtube#video",
				"videoId": videoID,
			},
		},
	}

	return y.doRequest(ctx, http.MethodPost, "/playlistItems?part=snippet", body, nil)
}

// CreatePlaylist creates a playlist and returns its id.
//
// Calls POST /playlists with the given privacy status ("private" by default).
func (y *YouTubeService) CreatePlaylist(ctx context.Context, title, description, privacyStatus string) (string, error) {
	if privacyStatus == "" {
		privacyStatus = "private"
	}

	body := map[string]any{
		"snippet": map[string]string{
			"title":       title,
			"description": description,
		},
		"status": map[string]string{
			"privacyStatus": privacyStatus,
		},
	}

	var response struct {
		ID string `json:"id"`
	}

	if err := y.doRequest(ctx, http.MethodPost, "/playlists?part=snippet,status", body, &response); err != nil {
		return "", err
	}

	return response.ID, nil
}

// Provisioner adapts the service to [PlaylistProvisioner] with a fixed privacy
// status.
type Provisioner struct {
	service       *YouTubeService
	privacyStatus string
}

// NewProvisioner wraps the service as a [PlaylistProvisioner].
func NewProvisioner(service *YouTubeService, privacyStatus string) *Provisioner {
	return &Provisioner{service: service, privacyStatus: privacyStatus}
}

// Ensure returns existingID without any remote call when it is non-empty, and
// creates a playlist otherwise. It does not validate that existingID still
// exists; relinking to a deleted playlist is the operator's responsibility.
func (p *Provisioner) Ensure(ctx context.Context, title, description, existingID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}

	id, err := p.service.CreatePlaylist(ctx, title, description, p.privacyStatus)
	if err != nil {
		return "", fmt.Errorf("failed to create destination playlist: %w", err)
	}

	return id, nil
}
