package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/analyzer"
	"github.com/snarg/audiosift/internal/api"
	"github.com/snarg/audiosift/internal/config"
	"github.com/snarg/audiosift/internal/database"
	"github.com/snarg/audiosift/internal/ingest"
	"github.com/snarg/audiosift/internal/metrics"
	"github.com/snarg/audiosift/internal/notify"
	"github.com/snarg/audiosift/internal/segment"
	"github.com/snarg/audiosift/internal/storage"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.APIKey, "api-key", "", "analysis service API key")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "audio drop directory to watch")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("audiosift starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	// Database (optional)
	var db *database.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize schema")
		}
	}

	// Transcript archive (optional)
	storeLog := log.With().Str("component", "archive").Logger()
	archive, err := storage.New(cfg.ArchiveBackend, cfg.ArchiveDir, cfg.S3, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize transcript archive")
	}
	if archive != nil {
		log.Info().Str("backend", archive.Type()).Msg("transcript archive enabled")
	}

	// MQTT completion events (optional)
	var events []analyzer.EventPublisher
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		pub, err := notify.Connect(notify.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer pub.Close()
		events = append(events, pub)
	}
	if db != nil {
		events = append(events, &dbSink{db: db, log: log.With().Str("component", "db-sink").Logger()})
	}

	// Analyzer
	anaLog := log.With().Str("component", "analyzer").Logger()
	client := analyzer.NewClient(cfg.AnalysisBaseURL, cfg.AnalysisAPIKey, anaLog)
	ana := analyzer.New(client, analyzer.Options{
		PollInterval:    cfg.PollInterval,
		PollTimeout:     cfg.PollTimeout,
		MaxPollFailures: cfg.PollMaxFailures,
	}, archive, fanout(events), anaLog)

	// Shared matcher working set
	matcher := api.NewMatcherState()

	if db != nil {
		prometheus.MustRegister(metrics.NewCollector(db.Pool, matcher))
	} else {
		prometheus.MustRegister(metrics.NewCollector(nil, matcher))
	}

	// Drop-directory watcher (optional)
	if cfg.WatchDir != "" {
		watcher := ingest.NewWatcher(cfg.WatchDir, ana, func(path string, segs []segment.Segment) {
			matcher.Add(segs)
		}, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.WatchDir).Msg("failed to start drop directory watcher")
		}
		defer watcher.Stop()
	}

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Analyzer:  ana,
		Matcher:   matcher,
		DB:        db,
		Version:   version,
		StartTime: startTime,
	}, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("audiosift stopped")
}

// fanout broadcasts completion events to every configured publisher.
// Returns nil when there are none so the analyzer skips the hook entirely.
func fanout(pubs []analyzer.EventPublisher) analyzer.EventPublisher {
	if len(pubs) == 0 {
		return nil
	}
	if len(pubs) == 1 {
		return pubs[0]
	}
	return eventFanout(pubs)
}

type eventFanout []analyzer.EventPublisher

func (f eventFanout) AnalysisCompleted(source, jobID string, segs []segment.Segment) {
	for _, p := range f {
		p.AnalysisCompleted(source, jobID, segs)
	}
}

// dbSink persists each completed analysis run's segments.
type dbSink struct {
	db  *database.DB
	log zerolog.Logger
}

func (s *dbSink) AnalysisCompleted(source, jobID string, segs []segment.Segment) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.db.InsertSegments(ctx, jobID, source, segs); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("failed to persist segments")
	}
}
