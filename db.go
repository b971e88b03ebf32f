package letsencrypt

import "context"

const (
	KeyState          = "lets-encrypt.state"
	KeyRequests       = "certificate.requests"
	KeyRequestsHash   = "cert.requests"
	KeyPreviousConfig = "config.previous"
	FlagCertRequested = "lets-encrypt.certificate-requested"
	FlagDisable       = "lets-encrypt.disable"
)

// Store persists unit state between hook invocations.
// The runtime runs one hook at a time, so implementations need no
// cross-call coordination beyond what their backend provides.
type Store interface {
	// Get returns ErrNotFound when key was never set.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	SetFlag(ctx context.Context, name string) error
	ClearFlag(ctx context.Context, name string) error
	HasFlag(ctx context.Context, name string) (bool, error)
}
