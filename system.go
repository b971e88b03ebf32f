package letsencrypt

import "context"

// System is the host the charm configures.
type System interface {
	// Codename returns the OS release codename, e.g. "xenial".
	Codename(ctx context.Context) (string, error)
	Install(ctx context.Context, packages ...string) error

	ServiceRunning(ctx context.Context, name string) (bool, error)
	ServiceStart(ctx context.Context, name string) error
	ServiceStop(ctx context.Context, name string) error

	// OpenPort opens an inbound TCP port.
	OpenPort(ctx context.Context, port int) error
	SetStatus(ctx context.Context, status Status) error
}

// Client runs the ACME client executable and blocks until it exits.
// A nil error means exit code 0.
type Client interface {
	Run(ctx context.Context, args []string) error
}
