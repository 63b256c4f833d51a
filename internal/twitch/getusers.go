package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// User represents a Twitch user record returned by the Helix users endpoint.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Type            string `json:"type"`
	BroadcasterType string `json:"broadcaster_type"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
	OfflineImageURL string `json:"offline_image_url"`
	CreatedAt       string `json:"created_at"`
}

type usersResponse struct {
	Data []User `json:"data"`
}

// GetUsers fetches user records by ID and/or login. At least one id/login is required.
func (c *Client) GetUsers(ctx context.Context, ids []string, logins []string) ([]User, error) {
	idParams := dedupeParams(ids)
	loginParams := dedupeParams(logins)
	if len(idParams) == 0 && len(loginParams) == 0 {
		return nil, errors.New("at least one id or login is required")
	}
	if len(idParams) > MaxBatch || len(loginParams) > MaxBatch {
		return nil, fmt.Errorf("too many ids/logins: max %d each", MaxBatch)
	}

	q := url.Values{}
	for _, id := range idParams {
		q.Add("id", id)
	}
	for _, login := range loginParams {
		q.Add("login", login)
	}

	var body usersResponse
	if err := c.get(ctx, "/users", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// UserByLogin resolves a single login. A nil user with a nil error means the
// login does not exist.
func (c *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	users, err := c.GetUsers(ctx, nil, []string{login})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}
