package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"lostfound/internal/matchpipe"
	"lostfound/internal/util"
	"lostfound/pkg/report"
	"lostfound/pkg/storage"
	"lostfound/pkg/store"
	"lostfound/services/intake/internal/config"
	"lostfound/services/intake/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	docs, err := store.NewFirestoreStore(context.Background(), cfg.FirestoreProjectID)
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}
	defer docs.Close()

	images, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicBase, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	submitter := report.NewSubmitter(docs, images, matchpipe.NewClient(cfg.MatchServiceURL, logger), logger)

	httpServer, err := server.New(server.Config{
		Submitter:                submitter,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		ReportRateLimitPerMinute: cfg.ReportRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		AllowedOrigins:           cfg.AllowedOrigins,
		TrustedProxies:           trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("intake server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
