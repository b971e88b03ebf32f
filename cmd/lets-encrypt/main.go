package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caasmo/restinpieces"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
	"github.com/caasmo/restinpieces-letsencrypt/host"
	"github.com/caasmo/restinpieces-letsencrypt/zombiezen"
)

// commandTimeout bounds host commands other than the ACME client, which runs unbounded.
const commandTimeout = 10 * time.Minute

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel, TimeFormat: time.DateTime}))
	logger = logger.With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.toml", "Path to the charm config TOML file")
	dbPath := flag.String("db", "lets-encrypt.db", "Path to the SQLite state database")
	lsbRelease := flag.String("lsb-release", host.DefaultLSBRelease, "Path to the lsb-release file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [event]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Handles one lifecycle event. Without an event argument the program name is used,\n")
		fmt.Fprintf(os.Stderr, "so the binary can be linked as hooks/install, hooks/config-changed, ...\n\n")
		fmt.Fprintf(os.Stderr, "Events: install, config-changed, start, upgrade-charm, update-status, disable, enable\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	name := flag.Arg(0)
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	event, err := letsencrypt.ParseEvent(name)
	if err != nil {
		logger.Error("Cannot determine event", "name", name, "error", err)
		flag.Usage()
		os.Exit(1)
	}
	logger = logger.With("event", string(event.Kind))

	// --- Configuration ---
	cfg, err := letsencrypt.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger.Debug("Config loaded",
		"path", *configPath,
		"fqdn", cfg.FQDN,
		"contact_email_set", cfg.ContactEmail != "",
		"package", cfg.Package,
		"client", cfg.Client,
		"web_server", cfg.WebServer,
	)

	// --- State Store ---
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
		logger.Error("Failed to prepare state database", "path", *dbPath, "error", err)
		os.Exit(1)
	}

	// --- Host ---
	system := host.NewUbuntu(host.NewExecutor(commandTimeout, logger), logger, host.WithLSBRelease(*lsbRelease))
	client := host.NewCertbot(host.NewExecutor(0, logger), cfg.Client)

	charm := letsencrypt.NewCharm(letsencrypt.ConfigFile(*configPath), store, system, client, logger)

	if err := charm.Handle(ctx, event); err != nil {
		logger.Error("Event handling failed", "error", err)
		os.Exit(1)
	}

	state, err := charm.State(ctx)
	if err != nil {
		logger.Error("Failed to read state", "error", err)
		os.Exit(1)
	}
	flags, err := store.Flags(ctx)
	if err != nil {
		logger.Error("Failed to read flags", "error", err)
		os.Exit(1)
	}
	logger.Info("Event handled", "state", state, "flags", flags)
}
