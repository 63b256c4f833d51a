package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type helixStub struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	apiCalls    atomic.Int32
	rejectFirst atomic.Bool
}

func newHelixStub(t *testing.T, api http.HandlerFunc) *helixStub {
	t.Helper()
	stub := &helixStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		n := stub.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "cid" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600,"token_type":"bearer"}`, n)
	})
	mux.HandleFunc("/helix/", func(w http.ResponseWriter, r *http.Request) {
		stub.apiCalls.Add(1)
		if stub.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Client-Id"); got != "cid" {
			t.Errorf("Client-Id = %q", got)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		api(w, r)
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *helixStub) client() *Client {
	auth := NewAuthenticator(s.server.Client(), "cid", "secret", AuthOptions{TokenURL: s.server.URL + "/oauth2/token"})
	return NewClient(auth, Options{HTTPClient: s.server.Client(), APIBase: s.server.URL + "/helix"})
}

func TestAuthenticatorCachesToken(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {})
	auth := NewAuthenticator(stub.server.Client(), "cid", "secret", AuthOptions{TokenURL: stub.server.URL + "/oauth2/token"})

	first, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	second, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("token again: %v", err)
	}
	if first != "tok-1" || second != "tok-1" {
		t.Fatalf("expected cached tok-1, got %q and %q", first, second)
	}
	if got := stub.tokenCalls.Load(); got != 1 {
		t.Fatalf("expected 1 token request, got %d", got)
	}

	auth.Invalidate()
	third, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if third != "tok-2" {
		t.Fatalf("expected fresh token after invalidate, got %q", third)
	}
}

func TestAuthenticatorRequiresCredentials(t *testing.T) {
	auth := NewAuthenticator(nil, "", "", AuthOptions{})
	if _, err := auth.Token(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestUserByLogin(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/helix/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("login") == "ghost" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"42","login":"alice","display_name":"Alice","profile_image_url":"https://img/alice.png"}]}`))
	})
	client := stub.client()

	user, err := client.UserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserByLogin: %v", err)
	}
	if user == nil || user.ID != "42" || user.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	missing, err := client.UserByLogin(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("UserByLogin ghost: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil user, got %+v", missing)
	}
}

func TestGetStreamsRejectsOversizedBatch(t *testing.T) {
	client := NewClient(NewAuthenticator(nil, "cid", "secret", AuthOptions{}), Options{})
	ids := make([]string, MaxBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i)
	}
	if _, err := client.GetStreams(context.Background(), ids); err == nil {
		t.Fatalf("expected error for %d ids", len(ids))
	}
}

func TestGetStreamsKeepsLiveOnly(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if len(q["user_id"]) != 2 || q.Get("first") != "100" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"user_id":"1","user_name":"One","type":"live","viewer_count":12,"started_at":"2024-01-02T03:04:05Z"},
			{"user_id":"2","user_name":"Two","type":"","viewer_count":3,"started_at":"2024-01-02T03:04:05Z"}
		]}`))
	})

	streams, err := stub.client().GetStreams(context.Background(), []string{"1", "2", "1"})
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if len(streams) != 1 || streams[0].UserID != "1" {
		t.Fatalf("expected only the live stream, got %+v", streams)
	}
}

func TestCollectFollowsPagesUntilLimit(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("to_id") != "42" {
			t.Errorf("to_id = %q", q.Get("to_id"))
		}
		switch q.Get("after") {
		case "":
			_, _ = w.Write([]byte(`{"total":5,"data":[{"from_id":"a","to_id":"42"},{"from_id":"b","to_id":"42"}],"pagination":{"cursor":"c1"}}`))
		case "c1":
			_, _ = w.Write([]byte(`{"total":5,"data":[{"from_id":"c","to_id":"42"},{"from_id":"d","to_id":"42"}],"pagination":{"cursor":"c2"}}`))
		default:
			t.Errorf("unexpected cursor %q", q.Get("after"))
			_, _ = w.Write([]byte(`{"total":5,"data":[]}`))
		}
	})

	page, err := stub.client().CollectFollows(context.Background(), FollowsQuery{ToID: "42"}, 3)
	if err != nil {
		t.Fatalf("CollectFollows: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected follows trimmed to the limit, got %d", len(page.Data))
	}
	if got := stub.apiCalls.Load(); got != 2 {
		t.Fatalf("expected 2 API calls, got %d", got)
	}
}

func TestGetRefreshesTokenOnUnauthorized(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":7,"data":[]}`))
	})
	stub.rejectFirst.Store(true)

	total, err := stub.client().TotalFollowers(context.Background(), "42")
	if err != nil {
		t.Fatalf("TotalFollowers: %v", err)
	}
	if total != 7 {
		t.Fatalf("total = %d, want 7", total)
	}
	if got := stub.tokenCalls.Load(); got != 2 {
		t.Fatalf("expected token refresh after 401, got %d token calls", got)
	}
}

func TestStatusErrorIsReturned(t *testing.T) {
	stub := newHelixStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := stub.client().GetUsers(context.Background(), []string{"1"}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	got := Batches(ids, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 || got[2][0] != "e" {
		t.Fatalf("unexpected batches: %v", got)
	}
	if Batches(nil, 2) != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestNormalizeLogin(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"alice", "alice", true},
		{"Bob Ross", "BobRoss", true},
		{"data_day_life", "data_day_life", true},
		{"_lead", "", false},
		{"abc", "", false},
		{"has-dash", "", false},
		{strings.Repeat("a", 26), "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeLogin(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("NormalizeLogin(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidLogin) {
			t.Fatalf("NormalizeLogin(%q) expected ErrInvalidLogin, got %q, %v", tc.in, got, err)
		}
	}
}
