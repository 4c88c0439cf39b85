// Command audiocache serves a caching audio proxy: given a (title, artist)
// pair it returns a locally cached Opus artifact or fetches and caches one,
// reports the currently-playing track on an external music provider, and
// streams cached artifacts with HTTP range support.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/config"
	"github.com/snapetech/audiocache/internal/coordinator"
	"github.com/snapetech/audiocache/internal/eviction"
	"github.com/snapetech/audiocache/internal/fetcher"
	"github.com/snapetech/audiocache/internal/health"
	"github.com/snapetech/audiocache/internal/server"
	"github.com/snapetech/audiocache/internal/spotify"
	"github.com/snapetech/audiocache/internal/store"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("load env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := health.CheckExtractorBinary(cfg.ExtractorBinary); err != nil {
		logger.Warn("extractor preflight failed; fetches will error until resolved", "error", err)
	}
	preflightCtx, cancelPreflight := context.WithTimeout(context.Background(), 5*time.Second)
	if err := health.CheckUpstream(preflightCtx, "https://accounts.spotify.com/api/token"); err != nil {
		logger.Warn("spotify upstream preflight failed; now-playing will error until resolved", "error", err)
	}
	cancelPreflight()

	st, err := store.Open(cfg.DataSource, cfg.DBMaxOpenConns)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ar, err := artifact.New(cfg.CacheDir)
	if err != nil {
		log.Fatalf("open artifact store: %v", err)
	}

	evictor := &eviction.Engine{
		Store:       st,
		Artifact:    ar,
		LimitBytes:  cfg.CacheLimitBytes,
		TargetBytes: cfg.CacheTargetBytes,
		Log:         logger,
	}

	fetch := &fetcher.Fetcher{
		Store:    st,
		Artifact: ar,
		Extractor: &fetcher.Extractor{
			BinaryPath:  cfg.ExtractorBinary,
			BitrateKbps: cfg.OpusBitrateKbps,
		},
		Log: logger,
		OnSuccess: func() {
			evictor.Trigger(context.Background())
		},
	}

	coord := &coordinator.Coordinator{
		Store:    st,
		Artifact: ar,
		Log:      logger,
		Dispatch: func(query, title, artist string) {
			go fetch.Run(context.Background(), query, title, artist)
		},
	}

	spotifyClient := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRefreshToken)

	srv := &server.Server{
		Addr:          ":" + strconv.Itoa(cfg.Port),
		APIKey:        cfg.APIKey,
		Coordinator:   coord,
		Artifact:      ar,
		Store:         st,
		Spotify:       spotifyClient,
		Log:           logger,
		ShutdownGrace: cfg.ShutdownGrace,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
