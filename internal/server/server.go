// Package server exposes the recommender over HTTP and serves the front end.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/text/language"

	"github.com/Its-donkey/raidfinder/internal/cache"
	"github.com/Its-donkey/raidfinder/internal/recommend"
	"github.com/Its-donkey/raidfinder/internal/twitch"
	"github.com/Its-donkey/raidfinder/internal/ui/client"
	"github.com/Its-donkey/raidfinder/internal/ui/model"
	"github.com/Its-donkey/raidfinder/internal/ui/page"
	"github.com/Its-donkey/raidfinder/internal/ui/render"
	"github.com/Its-donkey/raidfinder/logging"
)

// Recommender is the part of recommend.Recommender the handlers use.
type Recommender interface {
	Lookup(ctx context.Context, username string) (model.UserInfo, bool, error)
	Recommend(ctx context.Context, username string) (model.Ranked, error)
}

// Options configures the HTTP server.
type Options struct {
	Recommender Recommender
	// Pages renders the index document; nil serves AssetsDir/index.html instead.
	Pages *page.Renderer
	// Cache, when set, lets deep links render cached results server side.
	Cache     cache.Store
	Renderer  *render.Renderer
	AssetsDir string
	// AllowOrigins lists CORS origins; empty allows local development hosts only.
	AllowOrigins []string
	Logger       *logging.Logger
	// RequestTimeout bounds how long one request waits for a recommendation.
	RequestTimeout time.Duration
}

// Server routes raid finder requests.
type Server struct {
	opts       Options
	router     chi.Router
	httpServer *http.Server
}

// New builds the router.
func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(language.English)
	}
	s := &Server{opts: opts}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(logging.NewHTTPLogger(s.opts.Logger, 0).Middleware)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders: []string{logging.RequestIDHeader},
		MaxAge:         300,
	}
	if len(s.opts.AllowOrigins) > 0 {
		corsOpts.AllowedOrigins = s.opts.AllowOrigins
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.handleIndex)
	r.Get("/index", s.handleIndex)
	r.Get("/validate/{username}", s.handleValidate)
	r.Get("/user/{username}", s.handleUser)

	r.Get("/main.wasm", s.assetHandler("main.wasm", "application/wasm"))
	r.Get("/wasm_exec.js", s.assetHandler("wasm_exec.js", "application/javascript"))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(s.opts.AssetsDir, "static")))))
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server", "listening", map[string]any{"addr": addr})
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.opts.Logger.Info("server", "shutting down", nil)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) assetHandler(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		http.ServeFile(w, r, filepath.Join(s.opts.AssetsDir, name))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pages == nil {
		http.ServeFile(w, r, filepath.Join(s.opts.AssetsDir, "index.html"))
		return
	}

	state := page.State{Query: strings.TrimSpace(r.URL.Query().Get("id"))}
	if state.Query != "" && s.opts.Cache != nil {
		if login, err := twitch.NormalizeLogin(state.Query); err == nil {
			cached, ok, err := s.opts.Cache.Get(r.Context(), cache.Key(login))
			if err != nil {
				s.opts.Logger.Warn("cache", "pre-render cache read failed", map[string]any{"login": login, "error": err.Error()})
			} else if ok && len(cached) > 0 {
				state.Results = s.opts.Renderer.Render(cached[:min(len(cached), client.MaxResults)])
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.opts.Pages.Render(w, state); err != nil {
		s.opts.Logger.Error("server", "render index", err, nil)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	info, ok, err := s.opts.Recommender.Lookup(r.Context(), username)
	switch {
	case errors.Is(err, twitch.ErrInvalidLogin):
		writeJSON(w, http.StatusOK, struct{}{})
	case err != nil:
		s.upstreamError(w, r, "validate", username, err)
	case !ok:
		writeJSON(w, http.StatusOK, struct{}{})
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	ranked, err := s.opts.Recommender.Recommend(ctx, username)
	switch {
	case errors.Is(err, twitch.ErrInvalidLogin), errors.Is(err, recommend.ErrStreamerNotFound):
		writeJSON(w, http.StatusOK, struct{}{})
	case err != nil:
		s.upstreamError(w, r, "recommend", username, err)
	default:
		writeJSON(w, http.StatusOK, ranked)
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, op, username string, err error) {
	s.opts.Logger.WithRequestID(logging.RequestID(r.Context())).
		WithCategory("server").
		WithField("op", op).
		WithField("username", username).
		Error("upstream request failed", err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "twitch request failed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
