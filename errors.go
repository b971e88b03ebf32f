package letsencrypt

import "errors"

var (
	// ErrNotFound is returned by a Store when a key has never been written.
	ErrNotFound = errors.New("letsencrypt: key not found")

	// ErrInvalidTransition is returned when a trigger is not allowed from the current state.
	ErrInvalidTransition = errors.New("letsencrypt: invalid state transition")

	// ErrUnknownEvent is returned when a hook name does not map to an event.
	ErrUnknownEvent = errors.New("letsencrypt: unknown event")

	// ErrInvalidEmail is returned when the contact email is malformed.
	ErrInvalidEmail = errors.New("letsencrypt: invalid contact email")

	// ErrInvalidDomain is returned when a domain name is empty or malformed.
	ErrInvalidDomain = errors.New("letsencrypt: invalid domain name")

	// ErrEmptyRequest is returned when a certificate request lists no domains.
	ErrEmptyRequest = errors.New("letsencrypt: certificate request has no domains")

	// ErrNoCertificate is returned when no issued certificate can be read from disk.
	ErrNoCertificate = errors.New("letsencrypt: no certificate on disk")
)
