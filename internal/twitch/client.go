// Package twitch is a small Helix client covering the endpoints the follower
// network recommender needs: users, follows and live streams.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIBase is the Helix API root.
const DefaultAPIBase = "https://api.twitch.tv/helix"

// MaxBatch is the largest number of ids Helix accepts per lookup.
const MaxBatch = 100

// ErrUnauthorized is returned when Helix rejects the app token twice in a row.
var ErrUnauthorized = errors.New("twitch: unauthorized")

// StatusError reports a non-200 Helix response.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: status %d", e.Endpoint, e.Status)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	APIBase    string
	// RequestsPerSecond caps outbound Helix calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Client issues authenticated Helix requests.
type Client struct {
	http *http.Client
	auth *Authenticator
	base string
}

// NewClient wires an Authenticator into a Helix client.
func NewClient(auth *Authenticator, opts Options) *Client {
	base := strings.TrimSuffix(strings.TrimSpace(opts.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		httpClient = throttled(httpClient, rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst))
	}
	return &Client{http: httpClient, auth: auth, base: base}
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if c.auth == nil {
		return errors.New("twitch authenticator is required")
	}
	target := c.base + endpoint
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", endpoint, err)
		}
		if err := c.auth.Apply(ctx, req); err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("execute %s request: %w", endpoint, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.auth.Invalidate()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	}
	return ErrUnauthorized
}

func dedupeParams(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// Batches splits ids into chunks of at most size entries.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatch
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
