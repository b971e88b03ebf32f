package letsencrypt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

// PathsFor returns where the ACME client keeps fqdn's files under certDir.
// Nothing is checked on disk.
func PathsFor(certDir, fqdn string) CertificatePaths {
	live := filepath.Join(certDir, "live", fqdn)
	return CertificatePaths{
		Fullchain: filepath.Join(live, "fullchain.pem"),
		Chain:     filepath.Join(live, "chain.pem"),
		Cert:      filepath.Join(live, "cert.pem"),
		Privkey:   filepath.Join(live, "privkey.pem"),
		DHParam:   filepath.Join(certDir, "dhparam.pem"),
	}
}

// Live returns the paths for the configured fqdn, or nil when none is set.
func Live(cfg *Config) *CertificatePaths {
	if cfg == nil || cfg.FQDN == "" {
		return nil
	}
	paths := PathsFor(cfg.CertDir, cfg.FQDN)
	return &paths
}

func (c *Charm) Live() (*CertificatePaths, error) {
	cfg, err := c.config.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Live(cfg), nil
}

// LiveAll returns paths keyed by domain for every requested domain whose
// fullchain exists.
func (c *Charm) LiveAll(ctx context.Context) (map[string]CertificatePaths, error) {
	cfg, err := c.config.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return LiveAll(ctx, c.store, cfg.CertDir)
}

// LiveAll reads the stored requests and returns paths keyed by domain for
// every domain whose fullchain exists under certDir. Domains sharing one SAN
// certificate each get their own key. The result is nil when no requests
// are stored.
func LiveAll(ctx context.Context, store Store, certDir string) (map[string]CertificatePaths, error) {
	requests, err := LoadRequests(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}

	certificates := make(map[string]CertificatePaths)
	for _, req := range requests {
		for _, domain := range req.Domains {
			paths := PathsFor(certDir, domain)
			if _, err := os.Stat(paths.Fullchain); err == nil {
				certificates[domain] = paths
			}
		}
	}
	return certificates, nil
}

// CertificateInfo describes the leaf certificate of an issued chain.
type CertificateInfo struct {
	Domains  []string  `toml:"domains"`
	NotAfter time.Time `toml:"not_after"`
}

// Inspect parses the leaf of paths.Fullchain.
func Inspect(paths CertificatePaths) (*CertificateInfo, error) {
	data, err := os.ReadFile(paths.Fullchain)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCertificate, paths.Fullchain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", paths.Fullchain, err)
	}

	cert, err := certcrypto.ParsePEMCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", paths.Fullchain, err)
	}

	return &CertificateInfo{
		Domains:  certcrypto.ExtractDomains(cert),
		NotAfter: cert.NotAfter.UTC(),
	}, nil
}
