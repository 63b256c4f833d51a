// Package recommend finds live channels that a streamer's audience also
// follows, ranked by how strongly the two communities overlap.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Its-donkey/raidfinder/internal/cache"
	"github.com/Its-donkey/raidfinder/internal/twitch"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/Its-donkey/raidfinder/logging"
	"golang.org/x/sync/singleflight"
)

// ErrStreamerNotFound is returned when the searched login does not exist.
var ErrStreamerNotFound = errors.New("streamer not found")

// Helix is the part of the Twitch client the recommender drives.
type Helix interface {
	UserByLogin(ctx context.Context, login string) (*twitch.User, error)
	GetUsers(ctx context.Context, ids []string, logins []string) ([]twitch.User, error)
	GetFollows(ctx context.Context, query twitch.FollowsQuery) (twitch.FollowsPage, error)
	CollectFollows(ctx context.Context, query twitch.FollowsQuery, limit int) (twitch.FollowsPage, error)
	GetStreams(ctx context.Context, broadcasterIDs []string) ([]twitch.Stream, error)
	TotalFollowers(ctx context.Context, broadcasterID string) (int, error)
}

// Settings tune the follower-network walk.
type Settings struct {
	// SampleSize is how many of the streamer's followers are examined.
	SampleSize int
	// MaxFollowings skips followers that follow more channels than this.
	MaxFollowings int
	// MinMutual is how many sampled followers must share a channel.
	MinMutual int
	// MaxResults caps the ranked list.
	MaxResults int
	// Workers bounds concurrent follower lookups.
	Workers int
	// Language keeps only streams in this language when set.
	Language string
	// CacheTTL is how long a non-empty result is reused.
	CacheTTL time.Duration
	// WalkTimeout bounds one shared walk, independent of the callers waiting on it.
	WalkTimeout time.Duration
}

// DefaultSettings returns the tuned defaults.
func DefaultSettings() Settings {
	return Settings{
		SampleSize:    300,
		MaxFollowings: 150,
		MinMutual:     2,
		MaxResults:    10,
		Workers:       100,
		CacheTTL:      10 * time.Minute,
		WalkTimeout:   2 * time.Minute,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.SampleSize <= 0 {
		s.SampleSize = d.SampleSize
	}
	if s.MaxFollowings <= 0 {
		s.MaxFollowings = d.MaxFollowings
	}
	if s.MinMutual <= 0 {
		s.MinMutual = d.MinMutual
	}
	if s.MaxResults <= 0 {
		s.MaxResults = d.MaxResults
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.WalkTimeout <= 0 {
		s.WalkTimeout = d.WalkTimeout
	}
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	return s
}

// Recommender answers validate and recommendation lookups.
type Recommender struct {
	helix    Helix
	settings Settings
	cache    cache.Store
	logger   *logging.Logger
	group    singleflight.Group
	now      func() time.Time
}

// Option customizes a Recommender.
type Option func(*Recommender)

// WithCache puts store in front of the network walk.
func WithCache(store cache.Store) Option {
	return func(r *Recommender) { r.cache = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Recommender) { r.logger = logger }
}

// New builds a Recommender. Zero settings fields take their defaults.
func New(helix Helix, settings Settings, opts ...Option) *Recommender {
	r := &Recommender{
		helix:    helix,
		settings: settings.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the effective settings.
func (r *Recommender) Settings() Settings { return r.settings }

// Lookup resolves username for the validate endpoint. ok is false when the
// name is well formed but unknown; malformed names return twitch.ErrInvalidLogin.
func (r *Recommender) Lookup(ctx context.Context, username string) (info model.UserInfo, ok bool, err error) {
	login, err := twitch.NormalizeLogin(username)
	if err != nil {
		return info, false, err
	}
	user, err := r.helix.UserByLogin(ctx, strings.ToLower(login))
	if err != nil {
		return info, false, fmt.Errorf("lookup %s: %w", login, err)
	}
	if user == nil {
		return info, false, nil
	}
	return model.UserInfo{
		UID:             user.ID,
		Name:            user.Login,
		DisplayName:     user.DisplayName,
		ProfileImageURL: user.ProfileImageURL,
		BroadcasterType: user.BroadcasterType,
	}, true, nil
}

// Recommend returns the ranked live channels for username. Concurrent
// calls for the same login share one walk.
func (r *Recommender) Recommend(ctx context.Context, username string) (model.Ranked, error) {
	login, err := twitch.NormalizeLogin(username)
	if err != nil {
		return nil, err
	}
	key := cache.Key(login)

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("cache", "cache read failed", map[string]any{"login": key, "error": err.Error()})
		} else if ok {
			r.logger.Debug("cache", "cache hit", map[string]any{"login": key})
			return cached, nil
		}
	}

	// The walk outlives any single caller; each caller only stops waiting.
	ch := r.group.DoChan(key, func() (any, error) {
		walkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settings.WalkTimeout)
		defer cancel()
		ranked, err := r.walk(walkCtx, key)
		if err != nil {
			return nil, err
		}
		if r.cache != nil && len(ranked) > 0 {
			if err := r.cache.Set(walkCtx, key, ranked, r.settings.CacheTTL); err != nil {
				r.logger.Warn("cache", "cache write failed", map[string]any{"login": key, "error": err.Error()})
			}
		}
		return ranked, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	ranked := res.Val.(model.Ranked)
	if res.Shared {
		r.logger.Debug("recommend", "joined in-flight walk", map[string]any{"login": key})
		ranked = append(model.Ranked(nil), ranked...)
	}
	return ranked, nil
}
