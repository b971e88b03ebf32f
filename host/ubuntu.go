package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

const (
	DefaultLSBRelease = "/etc/lsb-release"

	codenameKey = "DISTRIB_CODENAME"
)

// aptEnv keeps debconf from prompting inside a hook.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Ubuntu implements letsencrypt.System with apt, systemd and the
// orchestration runtime's hook tools.
type Ubuntu struct {
	runner     Runner
	lsbRelease string
	logger     *slog.Logger
}

var _ letsencrypt.System = (*Ubuntu)(nil)

// UbuntuOption configures an Ubuntu host during initialization.
type UbuntuOption func(*Ubuntu)

// WithLSBRelease reads the release codename from path instead of /etc/lsb-release.
func WithLSBRelease(path string) UbuntuOption {
	return func(u *Ubuntu) {
		u.lsbRelease = path
	}
}

func NewUbuntu(runner Runner, logger *slog.Logger, opts ...UbuntuOption) *Ubuntu {
	if runner == nil || logger == nil {
		panic("host.NewUbuntu: received nil runner or logger")
	}
	u := &Ubuntu{
		runner:     runner,
		lsbRelease: DefaultLSBRelease,
		logger:     logger.With("host", "ubuntu"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Ubuntu) Codename(ctx context.Context) (string, error) {
	release, err := godotenv.Read(u.lsbRelease)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", u.lsbRelease, err)
	}
	codename := strings.TrimSpace(release[codenameKey])
	if codename == "" {
		return "", fmt.Errorf("%s has no %s", u.lsbRelease, codenameKey)
	}
	return codename, nil
}

func (u *Ubuntu) Install(ctx context.Context, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"install", "-y", "-qq", "-o", "Dpkg::Options::=--force-confold"}, packages...)
	if _, err := u.runner.RunEnv(ctx, aptEnv, "apt-get", args...); err != nil {
		return fmt.Errorf("apt-get install %s: %w", strings.Join(packages, " "), err)
	}
	u.logger.Info("Installed packages", "packages", packages)
	return nil
}

// ServiceRunning treats a non-zero exit from systemctl is-active as "not running".
func (u *Ubuntu) ServiceRunning(ctx context.Context, name string) (bool, error) {
	res, err := u.runner.RunQuiet(ctx, "systemctl", "is-active", name)
	if err != nil {
		if res != nil && res.ExitCode > 0 {
			return false, nil
		}
		return false, fmt.Errorf("systemctl is-active %s: %w", name, err)
	}
	return strings.TrimSpace(res.Stdout) == "active", nil
}

func (u *Ubuntu) ServiceStart(ctx context.Context, name string) error {
	if _, err := u.runner.Run(ctx, "systemctl", "start", name); err != nil {
		return fmt.Errorf("systemctl start %s: %w", name, err)
	}
	return nil
}

func (u *Ubuntu) ServiceStop(ctx context.Context, name string) error {
	if _, err := u.runner.Run(ctx, "systemctl", "stop", name); err != nil {
		return fmt.Errorf("systemctl stop %s: %w", name, err)
	}
	return nil
}

func (u *Ubuntu) OpenPort(ctx context.Context, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	spec := strconv.Itoa(port) + "/tcp"
	if _, err := u.runner.Run(ctx, "open-port", spec); err != nil {
		return fmt.Errorf("open-port %s: %w", spec, err)
	}
	return nil
}

func (u *Ubuntu) SetStatus(ctx context.Context, status letsencrypt.Status) error {
	if status.Level == "" {
		return errors.New("status level cannot be empty")
	}
	if _, err := u.runner.Run(ctx, "status-set", string(status.Level), status.Message); err != nil {
		return fmt.Errorf("status-set %s: %w", status.Level, err)
	}
	u.logger.Info("Status set", "status", status.String())
	return nil
}
