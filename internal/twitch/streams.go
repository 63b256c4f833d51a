package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Stream represents a live stream from the Twitch Helix streams endpoint.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"` // "live" or empty
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	Language     string    `json:"language"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Tags         []string  `json:"tags"`
	IsMature     bool      `json:"is_mature"`
}

type pagination struct {
	Cursor string `json:"cursor"`
}

type streamsResponse struct {
	Data       []Stream   `json:"data"`
	Pagination pagination `json:"pagination"`
}

// GetStreams fetches live streams for up to MaxBatch broadcaster IDs.
// Broadcasters that are offline are absent from the result.
func (c *Client) GetStreams(ctx context.Context, broadcasterIDs []string) ([]Stream, error) {
	ids := dedupeParams(broadcasterIDs)
	if len(ids) == 0 {
		return nil, errors.New("at least one broadcaster ID is required")
	}
	if len(ids) > MaxBatch {
		return nil, fmt.Errorf("too many broadcaster IDs: max %d", MaxBatch)
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("user_id", id)
	}
	q.Set("first", strconv.Itoa(MaxBatch))

	var body streamsResponse
	if err := c.get(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}

	live := body.Data[:0]
	for _, s := range body.Data {
		if s.Type == "live" {
			live = append(live, s)
		}
	}
	return live, nil
}
