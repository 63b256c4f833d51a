package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Its-donkey/raidfinder/internal/twitch"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// candidate is a channel followed by several sampled followers.
type candidate struct {
	id     string
	mutual int
	total  int
	stream twitch.Stream
	score  float64
	avatar string
}

func (r *Recommender) walk(ctx context.Context, login string) (model.Ranked, error) {
	start := r.now()
	streamer, err := r.helix.UserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", login, err)
	}
	if streamer == nil {
		return nil, ErrStreamerNotFound
	}

	followers, err := r.helix.CollectFollows(ctx, twitch.FollowsQuery{ToID: streamer.ID}, r.settings.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample followers of %s: %w", login, err)
	}
	sampled := len(followers.Data)
	r.logger.Info("recommend", fmt.Sprintf("sampled %s of %s followers of %s",
		humanize.Comma(int64(sampled)), humanize.Comma(int64(followers.Total)), login), nil)
	if sampled == 0 {
		return model.Ranked{}, nil
	}

	counts, skipped, err := r.mutualFollowings(ctx, followers.Data)
	if err != nil {
		return nil, err
	}

	candidates := make([]*candidate, 0, len(counts))
	for id, n := range counts {
		if id == streamer.ID || n < r.settings.MinMutual {
			continue
		}
		candidates = append(candidates, &candidate{id: id, mutual: n})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].mutual != candidates[j].mutual {
			return candidates[i].mutual > candidates[j].mutual
		}
		return candidates[i].id < candidates[j].id
	})
	r.logger.Info("recommend", fmt.Sprintf("%s channels shared by at least %d followers", humanize.Comma(int64(len(candidates))), r.settings.MinMutual),
		map[string]any{"login": login, "skipped_followers": skipped})

	live, err := r.liveCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}
	live, err = r.score(ctx, live, sampled)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].score != live[j].score {
			return live[i].score > live[j].score
		}
		if live[i].stream.ViewerCount != live[j].stream.ViewerCount {
			return live[i].stream.ViewerCount > live[j].stream.ViewerCount
		}
		return live[i].id < live[j].id
	})
	if len(live) > r.settings.MaxResults {
		live = live[:r.settings.MaxResults]
	}
	r.attachAvatars(ctx, live)

	now := r.now()
	ranked := make(model.Ranked, 0, len(live))
	for _, c := range live {
		ranked = append(ranked, record(c, now))
	}
	r.logger.Info("recommend", fmt.Sprintf("ranked %d live channels for %s", len(ranked), login),
		map[string]any{"duration_ms": now.Sub(start).Milliseconds()})
	return ranked, nil
}

// mutualFollowings counts, for every channel, how many sampled followers
// follow it. Followers following more than MaxFollowings channels are skipped.
func (r *Recommender) mutualFollowings(ctx context.Context, followers []twitch.Follow) (map[string]int, int64, error) {
	var (
		mu      sync.Mutex
		counts  = make(map[string]int)
		skipped atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)
	for _, f := range followers {
		followerID := f.FromID
		g.Go(func() error {
			followings, ok, err := r.followingsOf(gctx, followerID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("recommend", "followings lookup failed", map[string]any{"follower": followerID, "error": err.Error()})
				return nil
			}
			if !ok {
				skipped.Add(1)
				return nil
			}
			mu.Lock()
			for id := range followings {
				counts[id]++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return counts, skipped.Load(), nil
}

// followingsOf returns the set of channels followerID follows. ok is false
// for bot-like accounts over the MaxFollowings limit.
func (r *Recommender) followingsOf(ctx context.Context, followerID string) (map[string]struct{}, bool, error) {
	first, err := r.helix.GetFollows(ctx, twitch.FollowsQuery{FromID: followerID})
	if err != nil {
		return nil, false, err
	}
	if first.Total > r.settings.MaxFollowings {
		return nil, false, nil
	}
	set := make(map[string]struct{}, first.Total)
	for _, f := range first.Data {
		set[f.ToID] = struct{}{}
	}
	if first.Cursor != "" && len(first.Data) > 0 && len(first.Data) < first.Total {
		rest, err := r.helix.CollectFollows(ctx, twitch.FollowsQuery{FromID: followerID, After: first.Cursor}, r.settings.MaxFollowings-len(first.Data))
		if err != nil {
			return nil, false, err
		}
		for _, f := range rest.Data {
			set[f.ToID] = struct{}{}
		}
	}
	return set, true, nil
}

// liveCandidates checks candidates in batches and keeps the live ones, in
// candidate order.
func (r *Recommender) liveCandidates(ctx context.Context, candidates []*candidate) ([]*candidate, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	batches := twitch.Batches(ids, twitch.MaxBatch)
	streams := make([][]twitch.Stream, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			found, err := r.helix.GetStreams(gctx, batch)
			if err != nil {
				return fmt.Errorf("live check: %w", err)
			}
			streams[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]twitch.Stream)
	for _, batch := range streams {
		for _, s := range batch {
			if r.settings.Language != "" && !strings.EqualFold(s.Language, r.settings.Language) {
				continue
			}
			byID[s.UserID] = s
		}
	}
	live := make([]*candidate, 0, len(byID))
	for _, c := range candidates {
		if s, ok := byID[c.id]; ok {
			c.stream = s
			live = append(live, c)
		}
	}
	return live, nil
}

// score sets similarity = mutual / (sampled followers + candidate followers).
// Candidates whose follower total cannot be read are dropped.
func (r *Recommender) score(ctx context.Context, live []*candidate, sampled int) ([]*candidate, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)
	failed := make([]bool, len(live))
	for i, c := range live {
		g.Go(func() error {
			total, err := r.helix.TotalFollowers(gctx, c.id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("recommend", "follower total failed", map[string]any{"channel": c.id, "error": err.Error()})
				failed[i] = true
				return nil
			}
			c.total = total
			c.score = float64(c.mutual) / float64(sampled+total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	kept := make([]*candidate, 0, len(live))
	for i, c := range live {
		if !failed[i] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (r *Recommender) attachAvatars(ctx context.Context, live []*candidate) {
	if len(live) == 0 {
		return
	}
	ids := make([]string, len(live))
	for i, c := range live {
		ids[i] = c.id
	}
	users, err := r.helix.GetUsers(ctx, ids, nil)
	if err != nil {
		r.logger.Warn("recommend", "profile images unavailable", map[string]any{"error": err.Error()})
		return
	}
	avatars := make(map[string]string, len(users))
	for _, u := range users {
		avatars[u.ID] = u.ProfileImageURL
	}
	for _, c := range live {
		c.avatar = avatars[c.id]
	}
}

func record(c *candidate, now time.Time) model.StreamRecord {
	login := c.stream.UserLogin
	if login == "" {
		login = c.stream.UserName
	}
	return model.StreamRecord{
		Name:            c.stream.UserName,
		StreamTitle:     c.stream.Title,
		StreamURL:       "https://www.twitch.tv/" + login,
		ViewerCount:     c.stream.ViewerCount,
		ThumbnailURL:    c.stream.ThumbnailURL,
		ProfileImageURL: c.avatar,
		StreamDuration:  FormatDuration(now.Sub(c.stream.StartedAt)),
		Lang:            c.stream.Language,
		SimScore:        c.score,
	}
}

// FormatDuration renders d as "{h}hr {m}min".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dhr %dmin", minutes/60, minutes%60)
}
