package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Its-donkey/raidfinder/internal/cache"
	"github.com/Its-donkey/raidfinder/internal/config"
	"github.com/Its-donkey/raidfinder/internal/recommend"
	"github.com/Its-donkey/raidfinder/internal/server"
	"github.com/Its-donkey/raidfinder/internal/twitch"
	"github.com/Its-donkey/raidfinder/internal/ui/app"
	"github.com/Its-donkey/raidfinder/internal/ui/page"
	"github.com/Its-donkey/raidfinder/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		// A second signal skips the graceful shutdown.
		<-sigCh
		log.Println("second interrupt received, forcing shutdown")
		os.Exit(1)
	}()
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("raidfinder-server", flag.ContinueOnError)
	configPath := fs.String("config", "raidfinder.yaml", "path to the YAML configuration file")
	listen := fs.String("listen", "", "address to listen on (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *listen != "" {
		cfg.Server.Addr = *listen
	}
	if !cfg.HasTwitchCredentials() {
		return errors.New("twitch client id and secret are required (TWITCH_CLIENT_ID / TWITCH_CLIENT_SECRET)")
	}

	logger, closeLogs, err := newLogger(cfg.Logging, stdout)
	if err != nil {
		return err
	}
	defer closeLogs()

	store, closeStore, err := newStore(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	httpClient := &http.Client{Timeout: 15 * time.Second}
	auth := twitch.NewAuthenticator(httpClient, cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, twitch.AuthOptions{
		TokenURL: cfg.Twitch.TokenURL,
	})
	helix := twitch.NewClient(auth, twitch.Options{
		HTTPClient:        httpClient,
		APIBase:           cfg.Twitch.APIBase,
		RequestsPerSecond: cfg.Twitch.RequestsPerSecond,
		Burst:             cfg.Twitch.Burst,
	})

	recommender := recommend.New(helix, recommend.Settings{
		SampleSize:    cfg.Recommend.SampleSize,
		MaxFollowings: cfg.Recommend.MaxFollowings,
		MinMutual:     cfg.Recommend.MinMutual,
		MaxResults:    cfg.Recommend.MaxResults,
		Workers:       cfg.Recommend.Workers,
		Language:      cfg.Recommend.Language,
		CacheTTL:      cfg.Cache.TTL,
		WalkTimeout:   cfg.Recommend.WalkTimeout,
	}, recommend.WithCache(store), recommend.WithLogger(logger))

	templateRoot, err := filepath.Abs(cfg.Server.Templates)
	if err != nil {
		return fmt.Errorf("resolve templates dir: %w", err)
	}
	pages, err := page.Load(templateRoot, app.DefaultPanels)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	assetsPath, err := filepath.Abs(cfg.Server.Assets)
	if err != nil {
		return fmt.Errorf("resolve assets dir: %w", err)
	}

	srv := server.New(server.Options{
		Recommender:  recommender,
		Pages:        pages,
		Cache:        store,
		AssetsDir:    assetsPath,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       logger,
	})
	logger.Info("server", "starting raid finder", map[string]any{
		"addr":     cfg.Server.Addr,
		"api_base": cfg.Twitch.APIBase,
		"redis":    cfg.Cache.RedisURL != "",
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

// newLogger writes JSON lines to stdout and, when a log directory is set, to a
// rotating file there.
func newLogger(cfg config.LoggingConfig, stdout io.Writer) (*logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New("raidfinder", level, stdout)
	if cfg.Dir == "" {
		return logger, func() {}, nil
	}
	fw, err := logging.NewFileWriter(logging.FileOptions{Dir: cfg.Dir, Name: "raidfinder.log", Daily: true})
	if err != nil {
		return nil, nil, err
	}
	logger.AddWriter(fw)
	return logger, func() { _ = fw.Close() }, nil
}

// newStore connects to Redis when configured and keeps results in memory otherwise.
func newStore(ctx context.Context, cfg config.CacheConfig, logger *logging.Logger) (cache.Store, func(), error) {
	if cfg.RedisURL == "" {
		mem := cache.NewMemory()
		stop := make(chan struct{})
		go purgeLoop(mem, cfg.TTL, stop)
		return mem, func() { close(stop) }, nil
	}
	rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("cache", "using redis result cache", nil)
	return rdb, func() { _ = rdb.Close() }, nil
}

func purgeLoop(mem *cache.Memory, ttl time.Duration, stop <-chan struct{}) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mem.Purge()
		case <-stop:
			return
		}
	}
}
