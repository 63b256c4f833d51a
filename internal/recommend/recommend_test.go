package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Its-donkey/raidfinder/internal/cache"
	"github.com/Its-donkey/raidfinder/internal/twitch"
)

// fakeHelix serves a small follow graph from memory.
type fakeHelix struct {
	users      map[string]twitch.User // by login
	followings map[string][]string    // from id -> to ids
	streams    map[string]twitch.Stream
	totals     map[string]int

	lookups   atomic.Int32
	liveCalls atomic.Int32
	gate      chan struct{}
}

func (f *fakeHelix) UserByLogin(ctx context.Context, login string) (*twitch.User, error) {
	f.lookups.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	u, ok := f.users[login]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeHelix) GetUsers(ctx context.Context, ids []string, logins []string) ([]twitch.User, error) {
	var out []twitch.User
	for _, id := range ids {
		for _, u := range f.users {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeHelix) followersOf(id string) []string {
	var out []string
	for from, tos := range f.followings {
		for _, to := range tos {
			if to == id {
				out = append(out, from)
			}
		}
	}
	return out
}

func (f *fakeHelix) GetFollows(ctx context.Context, q twitch.FollowsQuery) (twitch.FollowsPage, error) {
	var edges []twitch.Follow
	if q.FromID != "" {
		for _, to := range f.followings[q.FromID] {
			edges = append(edges, twitch.Follow{FromID: q.FromID, ToID: to})
		}
	} else {
		for _, from := range f.followersOf(q.ToID) {
			edges = append(edges, twitch.Follow{FromID: from, ToID: q.ToID})
		}
	}
	first := q.First
	if first <= 0 || first > twitch.MaxBatch {
		first = twitch.MaxBatch
	}
	offset := 0
	if q.After != "" {
		offset, _ = strconv.Atoi(q.After)
	}
	page := twitch.FollowsPage{Total: len(edges)}
	end := min(offset+first, len(edges))
	if offset < end {
		page.Data = edges[offset:end]
	}
	if end < len(edges) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeHelix) CollectFollows(ctx context.Context, q twitch.FollowsQuery, limit int) (twitch.FollowsPage, error) {
	var out twitch.FollowsPage
	for {
		page, err := f.GetFollows(ctx, q)
		if err != nil {
			return out, err
		}
		out.Total = page.Total
		out.Data = append(out.Data, page.Data...)
		if page.Cursor == "" || (limit > 0 && len(out.Data) >= limit) {
			if limit > 0 && len(out.Data) > limit {
				out.Data = out.Data[:limit]
			}
			return out, nil
		}
		q.After = page.Cursor
	}
}

func (f *fakeHelix) GetStreams(ctx context.Context, ids []string) ([]twitch.Stream, error) {
	f.liveCalls.Add(1)
	if len(ids) > twitch.MaxBatch {
		return nil, fmt.Errorf("batch too large: %d", len(ids))
	}
	var out []twitch.Stream
	for _, id := range ids {
		if s, ok := f.streams[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHelix) TotalFollowers(ctx context.Context, id string) (int, error) {
	return f.totals[id], nil
}

var started = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// graph: alice (a) is followed by f1..f5. f4 is a bot following 200 channels.
func newGraph() *fakeHelix {
	bot := make([]string, 0, 200)
	bot = append(bot, "a", "b", "d")
	for i := len(bot); i < 200; i++ {
		bot = append(bot, "x"+strconv.Itoa(i))
	}
	return &fakeHelix{
		users: map[string]twitch.User{
			"alice": {ID: "a", Login: "alice", DisplayName: "Alice", BroadcasterType: "affiliate"},
			"bob":   {ID: "b", Login: "bob", DisplayName: "Bob", ProfileImageURL: "https://img/bob.png"},
			"carol": {ID: "c", Login: "carol", DisplayName: "Carol", ProfileImageURL: "https://img/carol.png"},
		},
		followings: map[string][]string{
			"f1": {"a", "b", "c"},
			"f2": {"a", "b", "c"},
			"f3": {"a", "b", "d"},
			"f4": bot,
			"f5": {"a", "c", "e"},
		},
		streams: map[string]twitch.Stream{
			"b": {UserID: "b", UserLogin: "bob", UserName: "Bob", Type: "live", Title: "b stream", ViewerCount: 50, Language: "en", StartedAt: started, ThumbnailURL: "https://t/b-{width}x{height}.jpg"},
			"c": {UserID: "c", UserLogin: "carol", UserName: "Carol", Type: "live", Title: "c stream", ViewerCount: 5, Language: "de", StartedAt: started},
			"d": {UserID: "d", UserLogin: "dave", UserName: "Dave", Type: "live", Language: "en", StartedAt: started},
		},
		totals: map[string]int{"b": 100, "c": 10, "d": 1},
	}
}

func newTestRecommender(h Helix, s Settings, opts ...Option) *Recommender {
	r := New(h, s, opts...)
	r.now = func() time.Time { return started.Add(90*time.Minute + 30*time.Second) }
	return r
}

func TestRecommendRanksBySimilarity(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{Workers: 4})
	ranked, err := r.Recommend(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// b: 3 mutual / (5 + 100); c: 3 mutual / (5 + 10); d only has 1 mutual once the bot is skipped.
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %+v", ranked)
	}
	if ranked[0].Name != "Carol" || ranked[1].Name != "Bob" {
		t.Fatalf("unexpected order: %q, %q", ranked[0].Name, ranked[1].Name)
	}
	if want := 3.0 / 15.0; ranked[0].SimScore != want {
		t.Fatalf("carol score = %v, want %v", ranked[0].SimScore, want)
	}
	bob := ranked[1]
	if bob.StreamURL != "https://www.twitch.tv/bob" || bob.ProfileImageURL != "https://img/bob.png" {
		t.Fatalf("unexpected bob record: %+v", bob)
	}
	if bob.StreamDuration != "1hr 30min" {
		t.Fatalf("duration = %q", bob.StreamDuration)
	}
	if bob.ThumbnailURL != "https://t/b-{width}x{height}.jpg" {
		t.Fatalf("thumbnail should stay a template, got %q", bob.ThumbnailURL)
	}
}

func TestRecommendLanguageFilter(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{Language: "EN"})
	ranked, err := r.Recommend(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Name != "Bob" {
		t.Fatalf("expected only Bob, got %+v", ranked)
	}
}

func TestRecommendCountsBotWhenLimitRaised(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{MaxFollowings: 500})
	ranked, err := r.Recommend(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	names := map[string]bool{}
	for _, rec := range ranked {
		names[rec.Name] = true
	}
	if !names["Dave"] {
		t.Fatalf("expected Dave once the bot counts, got %+v", ranked)
	}
}

func TestRecommendCapsResults(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{MaxResults: 1})
	ranked, err := r.Recommend(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Name != "Carol" {
		t.Fatalf("expected top result only, got %+v", ranked)
	}
}

func TestRecommendUnknownStreamer(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{})
	if _, err := r.Recommend(context.Background(), "nobody_here"); !errors.Is(err, ErrStreamerNotFound) {
		t.Fatalf("expected ErrStreamerNotFound, got %v", err)
	}
	if _, err := r.Recommend(context.Background(), "_bad"); !errors.Is(err, twitch.ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

func TestRecommendUsesCache(t *testing.T) {
	h := newGraph()
	r := newTestRecommender(h, Settings{}, WithCache(cache.NewMemory()))
	for i := 0; i < 3; i++ {
		if _, err := r.Recommend(context.Background(), "Alice"); err != nil {
			t.Fatalf("Recommend %d: %v", i, err)
		}
	}
	if got := h.lookups.Load(); got != 1 {
		t.Fatalf("expected one walk, got %d lookups", got)
	}
}

func TestRecommendCoalescesConcurrentCalls(t *testing.T) {
	h := newGraph()
	h.gate = make(chan struct{})
	r := newTestRecommender(h, Settings{})

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ranked, err := r.Recommend(context.Background(), "alice")
			if err != nil {
				t.Errorf("Recommend: %v", err)
				return
			}
			results[i] = len(ranked)
		}()
	}
	// Let the first walk block on the gate while the rest join it.
	for h.lookups.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(h.gate)
	wg.Wait()

	if got := h.lookups.Load(); got != 1 {
		t.Fatalf("expected concurrent calls to share one walk, got %d lookups", got)
	}
	for i, n := range results {
		if n != 2 {
			t.Fatalf("caller %d got %d results", i, n)
		}
	}
}

func TestLookup(t *testing.T) {
	r := newTestRecommender(newGraph(), Settings{})
	info, ok, err := r.Lookup(context.Background(), " ali ce ")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if info.UID != "a" || info.DisplayName != "Alice" || info.BroadcasterType != "affiliate" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, ok, err := r.Lookup(context.Background(), "ghost"); ok || err != nil {
		t.Fatalf("expected unknown user, got %v, %v", ok, err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                            "0hr 0min",
		59 * time.Second:             "0hr 0min",
		61 * time.Minute:             "1hr 1min",
		26*time.Hour + 5*time.Minute: "26hr 5min",
		-time.Minute:                 "0hr 0min",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestRecommendSharedWalkSurvivesFirstCallerCancel(t *testing.T) {
	h := newGraph()
	h.gate = make(chan struct{})
	store := cache.NewMemory()
	r := newTestRecommender(h, Settings{}, WithCache(store))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Recommend(firstCtx, "alice")
		firstErr <- err
	}()
	for h.lookups.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type outcome struct {
		n   int
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		ranked, err := r.Recommend(context.Background(), "alice")
		second <- outcome{len(ranked), err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller kept waiting on the shared walk")
	}

	close(h.gate)
	got := <-second
	if got.err != nil {
		t.Fatalf("second caller: %v", got.err)
	}
	if got.n != 2 {
		t.Fatalf("second caller got %d results", got.n)
	}
	if n := h.lookups.Load(); n != 1 {
		t.Fatalf("expected one walk, got %d lookups", n)
	}
	if _, ok, _ := store.Get(context.Background(), cache.Key("alice")); !ok {
		t.Fatalf("expected the shared walk to cache its result")
	}
}

func TestRecommendCallerDeadlineStopsWaiting(t *testing.T) {
	h := newGraph()
	h.gate = make(chan struct{})
	defer close(h.gate)
	r := newTestRecommender(h, Settings{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Recommend(ctx, "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRecommendWalkTimeoutEndsStuckWalk(t *testing.T) {
	h := newGraph()
	h.gate = make(chan struct{})
	defer close(h.gate)
	r := newTestRecommender(h, Settings{WalkTimeout: 20 * time.Millisecond})

	if _, err := r.Recommend(context.Background(), "alice"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
