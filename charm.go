package letsencrypt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pelletier/go-toml/v2"
)

// Charm sequences package installation and certificate registration in
// response to lifecycle events. The runtime delivers one event at a time.
type Charm struct {
	config ConfigReader
	store  Store
	system System
	client Client
	logger *slog.Logger
}

// NewCharm creates a charm over its collaborators.
// It requires a config reader, a state store, the host system, the ACME client and a logger.
func NewCharm(cfg ConfigReader, store Store, sys System, client Client, logger *slog.Logger) *Charm {
	if cfg == nil || store == nil || sys == nil || client == nil || logger == nil {
		panic("NewCharm: received nil config, store, system, client, or logger")
	}
	return &Charm{
		config: cfg,
		store:  store,
		system: sys,
		client: client,
		logger: logger.With("charm", "lets_encrypt"),
	}
}

// Handle runs the reaction specific to ev and then every workflow step whose
// guard holds in the resulting state.
func (c *Charm) Handle(ctx context.Context, ev Event) error {
	logger := c.logger.With("event", string(ev.Kind))
	logger.Debug("Handling event")

	switch ev.Kind {
	case EventConfigChanged:
		if err := c.configChanged(ctx); err != nil {
			return err
		}
	case EventDisable:
		if err := c.store.SetFlag(ctx, FlagDisable); err != nil {
			return fmt.Errorf("failed to set %s: %w", FlagDisable, err)
		}
		if _, err := c.transition(ctx, TriggerInvalidate); err != nil {
			return err
		}
		logger.Info("Registration disabled")
	case EventEnable:
		if err := c.store.ClearFlag(ctx, FlagDisable); err != nil {
			return fmt.Errorf("failed to clear %s: %w", FlagDisable, err)
		}
		logger.Info("Registration enabled")
	case EventInstall, EventStart, EventUpgradeCharm, EventUpdateStatus:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	return c.reconcile(ctx)
}

func (c *Charm) reconcile(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}

	if !state.Installed() {
		if err := c.checkVersionAndInstall(ctx); err != nil {
			return err
		}
		if state, err = c.State(ctx); err != nil {
			return err
		}
	}

	if !state.CanRegister() {
		return nil
	}

	disabled, err := c.store.HasFlag(ctx, FlagDisable)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", FlagDisable, err)
	}
	if disabled {
		c.logger.Debug("Registration disabled, skipping", "state", state)
		return nil
	}

	return c.registerServer(ctx)
}

// State returns the persisted lifecycle state. A fresh store is not-installed.
func (c *Charm) State(ctx context.Context) (State, error) {
	data, err := c.store.Get(ctx, KeyState)
	if errors.Is(err, ErrNotFound) {
		return StateNotInstalled, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state: %w", err)
	}
	s := State(data)
	if !s.Valid() {
		return "", fmt.Errorf("stored state %q is not a known state", data)
	}
	return s, nil
}

func (c *Charm) transition(ctx context.Context, t Trigger) (State, error) {
	from, err := c.State(ctx)
	if err != nil {
		return "", err
	}
	to, err := from.Next(t)
	if err != nil {
		return from, err
	}
	if to == from {
		return to, nil
	}
	if err := c.store.Set(ctx, KeyState, []byte(to)); err != nil {
		return from, fmt.Errorf("failed to save state %s: %w", to, err)
	}
	c.logger.Debug("State transition", "from", from, "to", to, "trigger", t)
	return to, nil
}

// configChanged re-arms registration when the fqdn was edited away from a
// previous value or when an fqdn is set at all.
func (c *Charm) configChanged(ctx context.Context) error {
	cfg, err := c.config.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	prev, err := c.previousConfig(ctx)
	if err != nil {
		return err
	}

	var prevFQDN string
	if prev != nil {
		prevFQDN = prev.FQDN
	}
	changed := prev == nil || prevFQDN != cfg.FQDN

	if (changed && prevFQDN != "") || cfg.FQDN != "" {
		c.logger.Info("Configuration changed, registration required", "fqdn", cfg.FQDN, "previous_fqdn", prevFQDN)
		if _, err := c.transition(ctx, TriggerInvalidate); err != nil {
			return err
		}
	}

	snapshot, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config snapshot: %w", err)
	}
	if err := c.store.Set(ctx, KeyPreviousConfig, snapshot); err != nil {
		return fmt.Errorf("failed to save config snapshot: %w", err)
	}
	return nil
}

func (c *Charm) previousConfig(ctx context.Context) (*Config, error) {
	data, err := c.store.Get(ctx, KeyPreviousConfig)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config snapshot: %w", err)
	}
	var prev Config
	if err := toml.Unmarshal(data, &prev); err != nil {
		return nil, fmt.Errorf("failed to parse config snapshot: %w", err)
	}
	return &prev, nil
}
