package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Its-donkey/raidfinder/internal/cache"
	"github.com/Its-donkey/raidfinder/internal/recommend"
	"github.com/Its-donkey/raidfinder/internal/twitch"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/Its-donkey/raidfinder/internal/ui/page"
)

type stubRecommender struct {
	info      model.UserInfo
	found     bool
	lookupErr error
	ranked    model.Ranked
	err       error
	searched  string
}

func (s *stubRecommender) Lookup(ctx context.Context, username string) (model.UserInfo, bool, error) {
	if _, err := twitch.NormalizeLogin(username); err != nil {
		return model.UserInfo{}, false, err
	}
	return s.info, s.found, s.lookupErr
}

func (s *stubRecommender) Recommend(ctx context.Context, username string) (model.Ranked, error) {
	s.searched = username
	if _, err := twitch.NormalizeLogin(username); err != nil {
		return nil, err
	}
	return s.ranked, s.err
}

func newTestServer(rec Recommender, mutate ...func(*Options)) *Server {
	opts := Options{Recommender: rec, AssetsDir: "."}
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := get(t, newTestServer(&stubRecommender{}), "/healthz")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
}

func TestValidate(t *testing.T) {
	rec := &stubRecommender{found: true, info: model.UserInfo{UID: "1", Name: "alice", DisplayName: "Alice"}}
	rr := get(t, newTestServer(rec), "/validate/alice")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var info model.UserInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.UID != "1" || info.DisplayName != "Alice" {
		t.Fatalf("unexpected body: %+v", info)
	}
}

func TestValidateUnknownAndInvalidReturnEmptyObject(t *testing.T) {
	s := newTestServer(&stubRecommender{})
	for _, path := range []string{"/validate/ghost_user", "/validate/_x"} {
		rr := get(t, s, path)
		if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "{}" {
			t.Fatalf("%s = %d %q", path, rr.Code, rr.Body.String())
		}
	}
}

func TestValidateUpstreamFailure(t *testing.T) {
	rr := get(t, newTestServer(&stubRecommender{lookupErr: errors.New("helix down")}), "/validate/alice")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected error body, got %q", rr.Body.String())
	}
}

func TestUserReturnsOrderedRanking(t *testing.T) {
	rec := &stubRecommender{ranked: model.Ranked{
		{Name: "Zed", ViewerCount: 1},
		{Name: "Amy", ViewerCount: 2},
	}}
	rr := get(t, newTestServer(rec), "/user/alice")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, `{"1":{"name":"Zed"`) || !strings.Contains(body, `"2":{"name":"Amy"`) {
		t.Fatalf("unexpected order: %s", body)
	}
	if rec.searched != "alice" {
		t.Fatalf("searched %q", rec.searched)
	}
}

func TestUserNotFoundAndFailure(t *testing.T) {
	rr := get(t, newTestServer(&stubRecommender{err: recommend.ErrStreamerNotFound}), "/user/ghost_user")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "{}" {
		t.Fatalf("not found = %d %q", rr.Code, rr.Body.String())
	}
	rr = get(t, newTestServer(&stubRecommender{err: errors.New("rate limited")}), "/user/alice")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failure status = %d", rr.Code)
	}
}

func TestIndexPreRendersCachedResults(t *testing.T) {
	pages, err := page.Load("../../web/templates", nil)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	store := cache.NewMemory()
	ranked := model.Ranked{{Name: "bob", StreamTitle: "raid me", ViewerCount: 1200}}
	if err := store.Set(context.Background(), cache.Key("Alice"), ranked, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	s := newTestServer(&stubRecommender{}, func(o *Options) {
		o.Pages = pages
		o.Cache = store
	})

	rr := get(t, s, "/?id=Alice")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.Find("#content_results .result_card").Length(); got != 1 {
		t.Fatalf("expected 1 card, got %d", got)
	}
	if got := doc.Find("#content_results .stream_viewers").Text(); !strings.Contains(got, "1,200") {
		t.Fatalf("viewers = %q", got)
	}
	if got := doc.Find("#nav_results").Text(); got != "ALICE" {
		t.Fatalf("label = %q", got)
	}

	rr = get(t, s, "/index")
	doc, err = goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := doc.Find("#content_home").AttrOr("class", ""); got != "content_container content_active" {
		t.Fatalf("home class = %q", got)
	}
}

func TestStaticAssets(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "static"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "static", "styles.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write css: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.wasm"), []byte("\x00asm"), 0o644); err != nil {
		t.Fatalf("write wasm: %v", err)
	}
	s := newTestServer(&stubRecommender{}, func(o *Options) { o.AssetsDir = dir })

	if rr := get(t, s, "/static/styles.css"); rr.Code != http.StatusOK || rr.Body.String() != "body{}" {
		t.Fatalf("css = %d %q", rr.Code, rr.Body.String())
	}
	rr := get(t, s, "/main.wasm")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/wasm" {
		t.Fatalf("wasm = %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&stubRecommender{}, func(o *Options) { o.AllowOrigins = []string{"https://raids.example"} })
	req := httptest.NewRequest(http.MethodOptions, "/user/alice", nil)
	req.Header.Set("Origin", "https://raids.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://raids.example" {
		t.Fatalf("missing allow-origin, headers %v", rr.Header())
	}
}
