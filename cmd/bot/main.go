package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"rda_bot/internal/announce"
	"rda_bot/internal/bot"
	"rda_bot/internal/config"
	"rda_bot/internal/dedup"
	"rda_bot/internal/dispatch"
	"rda_bot/internal/fetcher"
	"rda_bot/internal/rda"
	"rda_bot/internal/scheduler"
	"rda_bot/internal/spot"
	"rda_bot/internal/storage"
	"rda_bot/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath, storage.WithSeenLimit(cfg.SeenLimit))
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var seen dedup.Store = dedup.NewMemory(cfg.SeenLimit)
	if cfg.DedupBackend == config.DedupSQLite {
		seen = store
	}

	var catalogue *rda.Catalogue
	if cfg.RDAListPath != "" {
		catalogue, err = rda.Load(cfg.RDAListPath)
		if err != nil {
			log.Error("load rda list", "path", cfg.RDAListPath, "error", err)
			os.Exit(1)
		}
		log.Info("rda list loaded", "codes", catalogue.Len())
	}

	differ := announce.NewDiffer()
	source := fetcher.New(http.DefaultClient, cfg.AnnouncementsURL)

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log,
		bot.WithAnnouncements(source, differ),
		bot.WithCatalogue(catalogue),
	)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}
	if err := b.RegisterCommands(); err != nil {
		log.Warn("register commands", "error", err)
	}

	disp := dispatch.New(store, b, dispatch.Config{
		DefaultTemplate: cfg.DefaultTemplate,
		MaxLen:          cfg.MaxMessageLen,
		Workers:         cfg.FanoutWorkers,
	}, log)

	client, err := stream.NewClient(cfg.ClusterURL, log)
	if err != nil {
		log.Error("create stream client", "url", cfg.ClusterURL, "error", err)
		os.Exit(1)
	}
	listener := stream.NewListener(client, spot.NewHandler(seen, disp, log), cfg.ReconnectDelay, log)
	// The listener depends on the bot through the dispatcher, so it is
	// attached after construction.
	bot.WithStreamStatus(listener)(b)

	sched := scheduler.New(source, differ, disp, log)
	sched.SetTickInterval(cfg.CheckInterval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot",
		"dedup_backend", cfg.DedupBackend,
		"check_interval", cfg.CheckInterval,
		"cluster_url", cfg.ClusterURL,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { sched.Run(ctx); return nil })
	g.Go(func() error { listener.Run(ctx); return nil })
	g.Go(func() error { b.Run(ctx); return nil })
	_ = g.Wait()

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
