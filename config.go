package letsencrypt

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPackage   = "letsencrypt"
	DefaultClient    = "letsencrypt"
	DefaultWebServer = "nginx"
	DefaultCertDir   = "/etc/letsencrypt"

	// EnvPrefix is prepended to every environment override, e.g. LETS_ENCRYPT_FQDN.
	EnvPrefix = "LETS_ENCRYPT_"
)

var validEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Config holds the charm options an operator can set.
type Config struct {
	FQDN         string `toml:"fqdn" env:"FQDN" comment:"Domain to obtain a certificate for. Empty disables registration."`
	ContactEmail string `toml:"contact-email" env:"CONTACT_EMAIL" comment:"ACME account contact. Empty registers without email."`
	Package      string `toml:"package" env:"PACKAGE" comment:"OS package providing the ACME client"`
	Client       string `toml:"client" env:"CLIENT" comment:"ACME client executable"`
	WebServer    string `toml:"web-server" env:"WEB_SERVER" comment:"Service stopped while the standalone challenge runs"`
	CertDir      string `toml:"cert-dir" env:"CERT_DIR" comment:"Root of the ACME client's certificate layout"`
}

// ApplyDefaults fills every unset operational field.
func (c *Config) ApplyDefaults() {
	if c.Package == "" {
		c.Package = DefaultPackage
	}
	if c.Client == "" {
		c.Client = DefaultClient
	}
	if c.WebServer == "" {
		c.WebServer = DefaultWebServer
	}
	if c.CertDir == "" {
		c.CertDir = DefaultCertDir
	}
}

func (c *Config) Validate() error {
	if c.FQDN != "" {
		if err := validateDomain(c.FQDN); err != nil {
			return fmt.Errorf("config: fqdn: %w", err)
		}
	}
	if c.ContactEmail != "" && !validEmailRegex.MatchString(c.ContactEmail) {
		return fmt.Errorf("config: %w: %q", ErrInvalidEmail, c.ContactEmail)
	}
	if c.Package == "" {
		return errors.New("config: package cannot be empty")
	}
	if c.Client == "" {
		return errors.New("config: client cannot be empty")
	}
	if c.WebServer == "" {
		return errors.New("config: web-server cannot be empty")
	}
	if c.CertDir == "" {
		return errors.New("config: cert-dir cannot be empty")
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" || strings.ContainsAny(domain, " \t\r\n/") || strings.Contains(domain, "://") {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return nil
}

// LoadConfig reads the TOML file at path, applies LETS_ENCRYPT_* environment
// overrides and defaults, and validates the result. A missing file is not an
// error: the unit simply has no options set yet.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigReader supplies the current charm configuration to every event.
type ConfigReader interface {
	ReadConfig() (*Config, error)
}

// ConfigFile reads configuration from a TOML file path on every call.
type ConfigFile string

func (p ConfigFile) ReadConfig() (*Config, error) {
	return LoadConfig(string(p))
}
