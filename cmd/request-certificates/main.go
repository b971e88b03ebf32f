package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caasmo/restinpieces"
	"github.com/lmittmann/tint"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
	"github.com/caasmo/restinpieces-letsencrypt/host"
	"github.com/caasmo/restinpieces-letsencrypt/zombiezen"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel}))

	configPath := flag.String("config", "config.toml", "Path to the charm config TOML file")
	dbPath := flag.String("db", "lets-encrypt.db", "Path to the SQLite state database")
	requestsPath := flag.String("requests", "", "Path to the certificate requests TOML file (required)")
	register := flag.Bool("register", true, "Run the registration workflow after storing the requests")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -requests <requests-file> [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Replaces the stored certificate requests. Each entry yields one certificate.\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *requestsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*requestsPath)
	if err != nil {
		logger.Error("Failed to read requests file", "path", *requestsPath, "error", err)
		os.Exit(1)
	}
	requests, err := letsencrypt.DecodeRequests(data)
	if err != nil {
		logger.Error("Failed to parse requests file", "path", *requestsPath, "error", err)
		os.Exit(1)
	}

	cfg, err := letsencrypt.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	pool, err := restinpieces.NewZombiezenPool(*dbPath)
	if err != nil {
		logger.Error("Failed to open state database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("Failed to close state database", "error", err)
		}
	}()

	ctx := context.Background()
	store := zombiezen.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Failed to prepare state database", "error", err)
		os.Exit(1)
	}

	system := host.NewUbuntu(host.NewExecutor(10*time.Minute, logger), logger)
	client := host.NewCertbot(host.NewExecutor(0, logger), cfg.Client)
	charm := letsencrypt.NewCharm(letsencrypt.ConfigFile(*configPath), store, system, client, logger)

	if err := charm.SetRequestedCertificates(ctx, requests); err != nil {
		logger.Error("Failed to store certificate requests", "error", err)
		os.Exit(1)
	}
	logger.Info("Certificate requests stored", "requests", len(requests))

	if !*register {
		return
	}
	if err := charm.Handle(ctx, letsencrypt.Event{Kind: letsencrypt.EventUpdateStatus}); err != nil {
		logger.Error("Registration failed", "error", err)
		os.Exit(1)
	}
}
