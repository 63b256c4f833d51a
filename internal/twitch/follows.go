package twitch

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Follow is one edge of the follow graph.
type Follow struct {
	FromID     string    `json:"from_id"`
	FromLogin  string    `json:"from_login"`
	FromName   string    `json:"from_name"`
	ToID       string    `json:"to_id"`
	ToLogin    string    `json:"to_login"`
	ToName     string    `json:"to_name"`
	FollowedAt time.Time `json:"followed_at"`
}

// FollowsQuery selects follows to a broadcaster (ToID) or from a user (FromID).
type FollowsQuery struct {
	FromID string
	ToID   string
	First  int
	After  string
}

// FollowsPage is one page of the follows endpoint.
type FollowsPage struct {
	Total  int
	Data   []Follow
	Cursor string
}

type followsResponse struct {
	Total      int        `json:"total"`
	Data       []Follow   `json:"data"`
	Pagination pagination `json:"pagination"`
}

// GetFollows fetches a single page of follows.
func (c *Client) GetFollows(ctx context.Context, query FollowsQuery) (FollowsPage, error) {
	if query.FromID == "" && query.ToID == "" {
		return FollowsPage{}, errors.New("from_id or to_id is required")
	}
	q := url.Values{}
	if query.FromID != "" {
		q.Set("from_id", query.FromID)
	}
	if query.ToID != "" {
		q.Set("to_id", query.ToID)
	}
	first := query.First
	if first <= 0 || first > MaxBatch {
		first = MaxBatch
	}
	q.Set("first", strconv.Itoa(first))
	if query.After != "" {
		q.Set("after", query.After)
	}

	var body followsResponse
	if err := c.get(ctx, "/users/follows", q, &body); err != nil {
		return FollowsPage{}, err
	}
	return FollowsPage{Total: body.Total, Data: body.Data, Cursor: body.Pagination.Cursor}, nil
}

// CollectFollows pages through follows until limit entries are gathered or the
// cursor runs out. The returned page carries the reported total and the last cursor.
func (c *Client) CollectFollows(ctx context.Context, query FollowsQuery, limit int) (FollowsPage, error) {
	var out FollowsPage
	for {
		if limit > 0 {
			remaining := limit - len(out.Data)
			if remaining < MaxBatch {
				query.First = remaining
			}
		}
		page, err := c.GetFollows(ctx, query)
		if err != nil {
			return out, err
		}
		out.Total = page.Total
		out.Data = append(out.Data, page.Data...)
		out.Cursor = page.Cursor

		if page.Cursor == "" || len(page.Data) == 0 {
			return out, nil
		}
		if limit > 0 && len(out.Data) >= limit {
			out.Data = out.Data[:limit]
			return out, nil
		}
		query.After = page.Cursor
	}
}

// TotalFollowers reports how many accounts follow the broadcaster.
func (c *Client) TotalFollowers(ctx context.Context, broadcasterID string) (int, error) {
	page, err := c.GetFollows(ctx, FollowsQuery{ToID: broadcasterID, First: 1})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}
