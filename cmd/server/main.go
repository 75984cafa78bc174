package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cmml-outcomes-server/internal/api"
	"github.com/cmml-outcomes-server/internal/config"
	"github.com/cmml-outcomes-server/internal/feedback"
	"github.com/cmml-outcomes-server/internal/service"
	"github.com/cmml-outcomes-server/pkg/source"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Redis document cache is optional; the client fetches directly without it
	var docCache *source.DocumentCache
	if cfg.Cache.Enabled {
		docCache, err = source.NewDocumentCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Document cache unavailable, fetching without cache")
			docCache = nil
		} else {
			defer docCache.Close()
		}
	}

	client := source.NewClient(source.Config{
		DetailedURL:   cfg.Sources.DetailedURL,
		SummarizedURL: cfg.Sources.SummarizedURL,
		Timeout:       cfg.Sources.Timeout,
		RateLimit:     cfg.Sources.RateLimit,
	}, docCache, logger)

	dashboard := service.NewDashboard(client, cfg.Cache.AggregateCacheSize, logger)

	flagStore, err := newFlagStore(cfg.Feedback.Backend, cfg.Feedback.SQLitePath, cfg.Feedback.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to open flag store: %v", err)
	}
	if flagStore != nil {
		defer flagStore.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sources.RefreshOnBoot {
		result := dashboard.Refresh(ctx)
		if !result.DetailedLoaded && !result.SummarizedLoaded {
			logger.Warn("No outcome documents loaded at boot; sections stay empty until a refresh succeeds")
		}
	}

	server := api.NewServer(cfg, dashboard, flagStore, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CMML outcomes server")

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if strings.ToLower(format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newFlagStore(backend, sqlitePath, databaseURL string) (feedback.Store, error) {
	switch strings.ToLower(backend) {
	case "sqlite":
		return feedback.NewSQLiteStore(sqlitePath)
	case "postgres":
		return feedback.NewPostgresStoreFromURL(databaseURL)
	}
	return nil, nil
}
