package host

import (
	"context"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

// Certbot runs the ACME client binary with a prepared argument vector.
type Certbot struct {
	runner Runner
	binary string
}

var _ letsencrypt.Client = (*Certbot)(nil)

func NewCertbot(runner Runner, binary string) *Certbot {
	if runner == nil || binary == "" {
		panic("host.NewCertbot: received nil runner or empty binary")
	}
	return &Certbot{runner: runner, binary: binary}
}

func (c *Certbot) Run(ctx context.Context, args []string) error {
	_, err := c.runner.Run(ctx, c.binary, args...)
	return err
}
