package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/caasmo/restinpieces"
	"github.com/lmittmann/tint"
	"github.com/pelletier/go-toml/v2"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
	"github.com/caasmo/restinpieces-letsencrypt/zombiezen"
)

// certificateOutput is one domain's entry in the printed TOML document.
type certificateOutput struct {
	letsencrypt.CertificatePaths
	Info *letsencrypt.CertificateInfo `toml:"info,omitempty"`
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	}))

	configPath := flag.String("config", "config.toml", "Path to the charm config TOML file")
	dbPath := flag.String("db", "lets-encrypt.db", "Path to the SQLite state database (used with -all)")
	all := flag.Bool("all", false, "List every requested domain whose certificate exists on disk")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -config <config-file> [-all -db <db-file>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Prints certificate and key paths as TOML.\n")
		fmt.Fprintf(os.Stderr, "Without -all only the configured fqdn is printed and its files are not checked.\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := letsencrypt.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	output := make(map[string]certificateOutput)

	if !*all {
		paths := letsencrypt.Live(cfg)
		if paths == nil {
			logger.Warn("no fqdn configured")
			os.Exit(1)
		}
		output[cfg.FQDN] = describe(*paths, logger)
	} else {
		pool, err := restinpieces.NewZombiezenPool(*dbPath)
		if err != nil {
			logger.Error("failed to create database pool", "db_path", *dbPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Error("error closing database pool", "error", err)
			}
		}()

		ctx := context.Background()
		store := zombiezen.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to prepare database", "error", err)
			os.Exit(1)
		}

		certificates, err := letsencrypt.LiveAll(ctx, store, cfg.CertDir)
		if err != nil {
			logger.Error("failed to list certificates", "error", err)
			os.Exit(1)
		}
		if certificates == nil {
			logger.Warn("no certificate requests stored")
			os.Exit(1)
		}
		for domain, paths := range certificates {
			output[domain] = describe(paths, logger)
		}
	}

	tomlBytes, err := toml.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal certificate paths to TOML", "error", err)
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(tomlBytes); err != nil {
		logger.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

func describe(paths letsencrypt.CertificatePaths, logger *slog.Logger) certificateOutput {
	out := certificateOutput{CertificatePaths: paths}
	info, err := letsencrypt.Inspect(paths)
	if err != nil {
		logger.Debug("certificate not inspected", "path", paths.Fullchain, "error", err)
		return out
	}
	out.Info = info
	return out
}
