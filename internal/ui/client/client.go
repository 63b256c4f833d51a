// Package client talks to the raid finder backend: validate a username, then
// fetch the live channels related to it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Its-donkey/raidfinder/internal/ui/model"
)

// MaxResults is the most records FetchStreams hands to the renderer.
const MaxResults = 10

const maxBodyBytes = 1 << 20

// LogFunc receives problems that do not fail a lookup.
type LogFunc func(level, message string)

// Client issues the two backend lookups.
type Client struct {
	base string
	http *http.Client
	log  LogFunc
}

// New returns a client for baseURL. An empty base uses relative paths, which
// is what the browser build wants.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"), http: httpClient}
}

// WithLog sets the sink for non-fatal problems and returns c.
func (c *Client) WithLog(fn LogFunc) *Client {
	c.log = fn
	return c
}

func (c *Client) warn(format string, args ...any) {
	if c.log != nil {
		c.log("warn", fmt.Sprintf(format, args...))
	}
}

// Validate succeeds when the backend answers with a non-empty object for username.
func (c *Client) Validate(ctx context.Context, username string) (model.UserInfo, error) {
	const op = "validate"
	var info model.UserInfo
	if strings.TrimSpace(username) == "" {
		return info, &Error{Kind: KindNotFound, Op: op, Username: username}
	}

	body, err := c.get(ctx, "/validate/"+url.PathEscape(username))
	if err != nil {
		return info, &Error{Kind: KindNetworkFailure, Op: op, Username: username, Err: err}
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return info, &Error{Kind: KindNetworkFailure, Op: op, Username: username, Err: err}
	}
	if len(members) == 0 {
		return info, &Error{Kind: KindNotFound, Op: op, Username: username}
	}
	// Only non-emptiness decides validity.
	if err := json.Unmarshal(body, &info); err != nil {
		c.warn("%s %s: user info: %v", op, username, err)
	}
	return info, nil
}

// FetchStreams returns at most MaxResults records in the order the backend sent them.
func (c *Client) FetchStreams(ctx context.Context, username string) (model.Ranked, error) {
	const op = "fetch streams"
	body, err := c.get(ctx, "/user/"+url.PathEscape(username))
	if err != nil {
		return nil, &Error{Kind: KindNetworkFailure, Op: op, Username: username, Err: err}
	}
	records, err := model.DecodeOrdered(bytes.NewReader(body), MaxResults)
	if err != nil {
		return nil, &Error{Kind: KindNetworkFailure, Op: op, Username: username, Err: err}
	}
	if len(records) == 0 {
		return records, &Error{Kind: KindEmptyResult, Op: op, Username: username}
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return body, nil
}
