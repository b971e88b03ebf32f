package letsencrypt

import (
	"context"
	"fmt"
	"slices"
)

// MinimumSeries is the oldest release the ACME client package supports.
const MinimumSeries = "xenial"

// ubuntuSeries lists release codenames oldest first.
var ubuntuSeries = []string{
	"warty", "hoary", "breezy", "dapper", "edgy", "feisty", "gutsy", "hardy",
	"intrepid", "jaunty", "karmic", "lucid", "maverick", "natty", "oneiric",
	"precise", "quantal", "raring", "saucy", "trusty", "utopic", "vivid",
	"wily", "xenial", "yakkety", "zesty", "artful", "bionic", "cosmic",
	"disco", "eoan", "focal", "groovy", "hirsute", "impish", "jammy",
	"kinetic", "lunar", "mantic", "noble", "oracular", "plucky", "questing",
}

// SeriesSupported reports whether series is MinimumSeries or newer.
// Known codenames are ordered by release; anything else falls back to a
// plain string comparison, which is only a rough proxy for release age.
func SeriesSupported(series string) bool {
	if i := slices.Index(ubuntuSeries, series); i >= 0 {
		return i >= slices.Index(ubuntuSeries, MinimumSeries)
	}
	return series >= MinimumSeries
}

func (c *Charm) checkVersionAndInstall(ctx context.Context) error {
	cfg, err := c.config.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	series, err := c.system.Codename(ctx)
	if err != nil {
		return fmt.Errorf("failed to read OS release: %w", err)
	}

	if !SeriesSupported(series) {
		c.logger.Warn("ACME client not supported on series", "series", series, "minimum", MinimumSeries)
		if _, err := c.transition(ctx, TriggerSeriesUnsupported); err != nil {
			return err
		}
		return c.system.SetStatus(ctx, Status{Level: StatusBlocked, Message: "Unsupported series < Xenial"})
	}

	c.logger.Info("Installing ACME client", "package", cfg.Package, "series", series)
	if err := c.system.SetStatus(ctx, Status{Level: StatusMaintenance, Message: "installing " + cfg.Package}); err != nil {
		return err
	}
	if err := c.system.Install(ctx, cfg.Package); err != nil {
		return fmt.Errorf("failed to install %s: %w", cfg.Package, err)
	}

	_, err = c.transition(ctx, TriggerInstallSucceeded)
	return err
}
