package letsencrypt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ChallengePorts must be reachable for the standalone challenge responder.
var ChallengePorts = []int{80, 443}

const registrationFailedMessage = "letsencrypt registration failed"

// CertOnlyArgs builds the non-interactive standalone invocation for req.
func CertOnlyArgs(req CertificateRequest) []string {
	// Agreement already captured by the charm terms.
	args := []string{"certonly", "--standalone", "--agree-tos", "--non-interactive"}
	for _, domain := range req.Domains {
		args = append(args, "-d", domain)
	}
	if req.ContactEmail != "" {
		args = append(args, "--email", req.ContactEmail)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}
	return args
}

// registerServer obtains certificates for the configured fqdn and every
// stored request. The web server is stopped for the duration and started
// again whatever the outcome.
func (c *Charm) registerServer(ctx context.Context) (err error) {
	cfg, err := c.config.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.FQDN == "" {
		c.logger.Info("No fqdn configured, nothing to register")
		_, err := c.transition(ctx, TriggerDomainMissing)
		return err
	}

	requests, err := c.pendingRequests(ctx, cfg)
	if err != nil {
		return err
	}

	if _, err := c.transition(ctx, TriggerRegister); err != nil {
		return err
	}
	logger := c.logger.With("fqdn", cfg.FQDN)
	logger.Info("Attempting certificate registration", "requests", len(requests))
	if err := c.system.SetStatus(ctx, Status{Level: StatusMaintenance, Message: "requesting certificate for " + cfg.FQDN}); err != nil {
		return err
	}

	running, err := c.system.ServiceRunning(ctx, cfg.WebServer)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", cfg.WebServer, err)
	}
	if running {
		logger.Info("Stopping web server for standalone challenge", "service", cfg.WebServer)
		if err := c.system.ServiceStop(ctx, cfg.WebServer); err != nil {
			return fmt.Errorf("failed to stop %s: %w", cfg.WebServer, err)
		}
		defer func() {
			logger.Info("Starting web server", "service", cfg.WebServer)
			if startErr := c.system.ServiceStart(ctx, cfg.WebServer); startErr != nil {
				logger.Error("Failed to start web server", "service", cfg.WebServer, "error", startErr)
				err = errors.Join(err, fmt.Errorf("failed to start %s: %w", cfg.WebServer, startErr))
			}
		}()
	}

	for _, port := range ChallengePorts {
		if err := c.system.OpenPort(ctx, port); err != nil {
			return fmt.Errorf("failed to open port %d: %w", port, err)
		}
	}

	if obtainErr := c.obtain(ctx, requests, logger); obtainErr != nil {
		logger.Error("Certificate registration failed", "error", obtainErr)
		if _, err := c.transition(ctx, TriggerRegisterFailed); err != nil {
			return err
		}
		return c.system.SetStatus(ctx, Status{Level: StatusBlocked, Message: registrationFailedMessage})
	}

	if err := c.system.SetStatus(ctx, Status{Level: StatusActive, Message: fmt.Sprintf("registered %s", cfg.FQDN)}); err != nil {
		return err
	}
	if _, err := c.transition(ctx, TriggerRegisterSucceeded); err != nil {
		return err
	}

	c.logIssued(cfg, logger)
	return nil
}

// pendingRequests puts the configured fqdn first, followed by every stored
// request that asks for something else.
func (c *Charm) pendingRequests(ctx context.Context, cfg *Config) ([]CertificateRequest, error) {
	primary := CertificateRequest{Domains: []string{cfg.FQDN}, ContactEmail: cfg.ContactEmail}
	requests := []CertificateRequest{primary}

	stored, err := LoadRequests(ctx, c.store)
	if err != nil {
		return nil, err
	}
	for _, r := range stored {
		if r.ContactEmail == "" {
			r.ContactEmail = cfg.ContactEmail
		}
		if r.Equal(primary) {
			continue
		}
		requests = append(requests, r)
	}
	return requests, nil
}

func (c *Charm) obtain(ctx context.Context, requests []CertificateRequest, logger *slog.Logger) error {
	for _, req := range requests {
		logger.Debug("Running ACME client", "domains", req.Domains, "email", req.ContactEmail != "")
		if err := c.client.Run(ctx, CertOnlyArgs(req)); err != nil {
			return fmt.Errorf("failed to obtain certificate for %v: %w", req.Domains, err)
		}
		logger.Info("Obtained certificate", "domains", req.Domains)
	}
	return nil
}

func (c *Charm) logIssued(cfg *Config, logger *slog.Logger) {
	info, err := Inspect(PathsFor(cfg.CertDir, cfg.FQDN))
	if err != nil {
		logger.Warn("Could not inspect issued certificate", "error", err)
		return
	}
	logger.Info("Certificate on disk", "domains", info.Domains, "expires", info.NotAfter)
}
