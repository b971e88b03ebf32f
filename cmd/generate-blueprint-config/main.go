package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/pelletier/go-toml/v2"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

func generateBlueprintConfig() letsencrypt.Config {
	cfg := letsencrypt.Config{
		FQDN:         "example.com",
		ContactEmail: "admin@example.com",
	}
	cfg.ApplyDefaults()
	return cfg
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	}))

	outputFileFlag := flag.String("output", "config.blueprint.toml", "Output file path for the blueprint TOML configuration")
	flag.StringVar(outputFileFlag, "o", "config.blueprint.toml", "Output file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generates a blueprint charm TOML configuration file with example values.\n")
		fmt.Fprintf(os.Stderr, "Every key can be overridden at runtime with %s<KEY>, e.g. %sFQDN.\n", letsencrypt.EnvPrefix, letsencrypt.EnvPrefix)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	logger.Info("Generating charm blueprint configuration...")
	blueprintCfg := generateBlueprintConfig()

	if err := blueprintCfg.Validate(); err != nil {
		logger.Warn("Generated blueprint configuration has validation issues", "error", err)
	}

	logger.Info("Marshalling configuration to TOML...")
	tomlBytes, err := toml.Marshal(blueprintCfg)
	if err != nil {
		logger.Error("Failed to marshal blueprint config to TOML", "error", err)
		os.Exit(1)
	}

	logger.Info("Writing blueprint configuration", "path", *outputFileFlag)
	err = os.WriteFile(*outputFileFlag, tomlBytes, 0644)
	if err != nil {
		logger.Error("Failed to write blueprint config file",
			"path", *outputFileFlag,
			"error", err)
		os.Exit(1)
	}

	logger.Info("Charm blueprint configuration generated successfully", "path", *outputFileFlag)
	logger.Warn("Review the generated file and replace the example fqdn and contact email before deploying.")
}
