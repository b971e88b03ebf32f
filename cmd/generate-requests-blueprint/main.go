package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

// generateBlueprintRequests creates a request list populated with example data.
func generateBlueprintRequests() []letsencrypt.CertificateRequest {
	return []letsencrypt.CertificateRequest{
		{
			Domains:      []string{"example.com", "www.example.com"},
			ContactEmail: "admin@example.com",
		},
		{
			Domains: []string{"blog.example.com"},
		},
	}
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	}))

	outputFileFlag := flag.String("output", "requests.blueprint.toml", "Output file path for the blueprint requests TOML")
	flag.StringVar(outputFileFlag, "o", "requests.blueprint.toml", "Output file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generates a blueprint certificate requests TOML file with example values.\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	logger.Info("Generating certificate requests blueprint...")
	requests := generateBlueprintRequests()

	for i, r := range requests {
		if err := r.Validate(); err != nil {
			logger.Error("Blueprint request is invalid", "index", i, "error", err)
			os.Exit(1)
		}
	}

	tomlBytes, err := letsencrypt.EncodeRequests(requests)
	if err != nil {
		logger.Error("Failed to marshal blueprint requests to TOML", "error", err)
		os.Exit(1)
	}

	logger.Info("Writing blueprint requests", "path", *outputFileFlag)
	if err := os.WriteFile(*outputFileFlag, tomlBytes, 0644); err != nil {
		logger.Error("Failed to write blueprint requests file",
			"path", *outputFileFlag,
			"error", err)
		os.Exit(1)
	}

	logger.Info("Certificate requests blueprint generated successfully", "path", *outputFileFlag)
}
