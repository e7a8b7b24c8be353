// Command catalogd: live-TV channel catalog daemon backed by iptv-org playlists.
//
//	run     Serve the HTTP API with periodic expired-cache sweeps. For systemd.
//	fetch   One-shot: resolve a browse key, fetch+cache its playlist, print a summary
//	sweep   One-shot: purge expired cache generations and old history entries
//	recent  Print the recently-watched history
//	index   Refresh the local iptv-org browse index (categories/countries/languages)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mylivetv/catalogd/internal/api"
	"github.com/mylivetv/catalogd/internal/catalog"
	"github.com/mylivetv/catalogd/internal/config"
	"github.com/mylivetv/catalogd/internal/fetch"
	"github.com/mylivetv/catalogd/internal/health"
	"github.com/mylivetv/catalogd/internal/httpclient"
	"github.com/mylivetv/catalogd/internal/log"
	"github.com/mylivetv/catalogd/internal/source"
	"github.com/mylivetv/catalogd/internal/store"
)

// historyRetention is how long recently-watched entries are kept.
const historyRetention = 30 * 24 * time.Hour

func main() {
	_ = config.LoadEnvFile(".env")
	cfg := config.Load()
	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("main")

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runServe(cfg, args)
	case "fetch":
		err = runFetch(cfg, args)
	case "sweep":
		err = runSweep(cfg)
	case "recent":
		err = runRecent(cfg, args)
	case "index":
		err = runIndex(cfg)
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: catalogd [run|fetch|sweep|index] [flags]

  run    serve the HTTP API (default)
  fetch  -category NAME | -language CODE | -country CODE | -url URL [-refresh]
  sweep  purge expired cache generations and old history
  recent [-limit N] [-key URL] print the recently-watched history
  index  refresh the local iptv-org browse index
`)
}

func openPipeline(cfg *config.Config) (*store.Store, *catalog.Service, *catalog.History, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	fetcher := fetch.New(httpclient.WithTimeout(cfg.FetchTimeout), cfg.PerHostRPS)
	svc := catalog.NewService(st, fetcher, cfg.CacheTTL)
	return st, svc, catalog.NewHistory(st), nil
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	listen := fs.String("listen", cfg.ListenAddr, "HTTP bind address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := log.WithComponent("serve")

	st, svc, history, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := source.NewBuilder(cfg.PlaylistBase)
	idx, err := source.LoadIndex(cfg.IndexPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.IndexPath).Msg("browse index unreadable; starting empty")
		idx = &source.Index{}
	}
	if idx.Empty() {
		// Best-effort: an empty index only disables key validation.
		go func() {
			rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := idx.Refresh(rctx, nil, cfg.APIBase); err != nil {
				logger.Warn().Err(err).Msg("browse index refresh failed")
				return
			}
			if err := idx.Save(cfg.IndexPath); err != nil {
				logger.Warn().Err(err).Msg("browse index save failed")
			}
			logger.Info().Int("categories", len(idx.AllCategories())).Msg("browse index refreshed")
		}()
	}

	// Startup probe: warn early when the playlist host is unreachable; stale
	// cache still serves reads, so this is not fatal.
	go func() {
		hctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		if err := health.CheckSource(hctx, builder.CategoryURL("news")); err != nil {
			logger.Warn().Err(err).Msg("playlist source unreachable at startup")
		}
	}()

	// Background sweep: expired cache generations plus old history entries.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sctx, cancel := context.WithTimeout(ctx, time.Minute)
				if err := svc.Sweep(sctx); err != nil {
					logger.Warn().Err(err).Msg("periodic cache sweep failed")
				}
				if err := history.PruneBefore(sctx, time.Now().Add(-historyRetention)); err != nil {
					logger.Warn().Err(err).Msg("history prune failed")
				}
				cancel()
			}
		}
	}()

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.NewServer(svc, history, builder, idx, st).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logger.Info().Str("listen", *listen).Str("db", cfg.DBPath).Msg("catalogd serving")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}

func runFetch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	category := fs.String("category", "", "category name, e.g. news")
	language := fs.String("language", "", "ISO language code, e.g. eng")
	country := fs.String("country", "", "ISO country code, e.g. us")
	rawURL := fs.String("url", "", "full playlist URL (overrides the key flags)")
	refresh := fs.Bool("refresh", false, "bypass the cache and refetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	builder := source.NewBuilder(cfg.PlaylistBase)
	var key string
	switch {
	case *rawURL != "":
		key = *rawURL
	case *category != "":
		key = builder.CategoryURL(*category)
	case *language != "":
		key = builder.LanguageURL(*language)
	case *country != "":
		key = builder.CountryURL(*country)
	default:
		return fmt.Errorf("fetch: one of -category, -language, -country or -url is required")
	}

	st, svc, _, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	channels, err := svc.Channels(ctx, key, *refresh)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d channels\n", key, len(channels))
	for _, ch := range channels {
		name := ch.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %-40s %s\n", name, ch.StreamURL)
	}
	return nil
}

func runSweep(cfg *config.Config) error {
	st, svc, history, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := svc.Sweep(ctx); err != nil {
		return fmt.Errorf("cache sweep: %w", err)
	}
	if err := history.PruneBefore(ctx, time.Now().Add(-historyRetention)); err != nil {
		return fmt.Errorf("history prune: %w", err)
	}
	logger := log.WithComponent("sweep")
	logger.Info().Msg("sweep complete")
	return nil
}

func runRecent(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	limit := fs.Int("limit", 0, "max entries (0 = default)")
	key := fs.String("key", "", "restrict to one category key (playlist URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, history, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var entries []catalog.WatchedChannel
	if *key != "" {
		entries, err = history.RecentByCategory(ctx, *key, *limit)
	} else {
		entries, err = history.Recent(ctx, *limit)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-30s %s\n", e.WatchedAt.Format(time.RFC3339), name, e.StreamURL)
	}
	return nil
}

func runIndex(cfg *config.Config) error {
	idx := &source.Index{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := idx.Refresh(ctx, nil, cfg.APIBase); err != nil {
		return err
	}
	if err := idx.Save(cfg.IndexPath); err != nil {
		return err
	}
	fmt.Printf("index: %d categories written to %s\n", len(idx.AllCategories()), cfg.IndexPath)
	return nil
}
