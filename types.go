package letsencrypt

import (
	"fmt"
	"slices"
)

// CertificateRequest asks for one certificate covering every listed domain.
type CertificateRequest struct {
	Domains      []string `toml:"fqdn"`
	ContactEmail string   `toml:"contact-email"`
}

func (r CertificateRequest) Validate() error {
	if len(r.Domains) == 0 {
		return ErrEmptyRequest
	}
	for _, d := range r.Domains {
		if err := validateDomain(d); err != nil {
			return err
		}
	}
	if r.ContactEmail != "" && !validEmailRegex.MatchString(r.ContactEmail) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, r.ContactEmail)
	}
	return nil
}

func (r CertificateRequest) Equal(o CertificateRequest) bool {
	return r.ContactEmail == o.ContactEmail && slices.Equal(r.Domains, o.Domains)
}

// CertificatePaths are the files the ACME client maintains for one domain.
type CertificatePaths struct {
	Fullchain string `toml:"fullchain"`
	Chain     string `toml:"chain"`
	Cert      string `toml:"cert"`
	Privkey   string `toml:"privkey"`
	DHParam   string `toml:"dhparam"`
}

type StatusLevel string

const (
	StatusActive      StatusLevel = "active"
	StatusBlocked     StatusLevel = "blocked"
	StatusMaintenance StatusLevel = "maintenance"
)

// Status is what the unit reports to the orchestration runtime.
type Status struct {
	Level   StatusLevel
	Message string
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s", s.Level, s.Message)
}

type EventKind string

const (
	EventInstall       EventKind = "install"
	EventConfigChanged EventKind = "config-changed"
	EventStart         EventKind = "start"
	EventUpgradeCharm  EventKind = "upgrade-charm"
	EventUpdateStatus  EventKind = "update-status"
	EventDisable       EventKind = "disable"
	EventEnable        EventKind = "enable"
)

var eventKinds = []EventKind{
	EventInstall,
	EventConfigChanged,
	EventStart,
	EventUpgradeCharm,
	EventUpdateStatus,
	EventDisable,
	EventEnable,
}

// Event is one lifecycle notification delivered by the runtime.
type Event struct {
	Kind EventKind
}

// ParseEvent maps a hook or action name to an Event.
func ParseEvent(name string) (Event, error) {
	kind := EventKind(name)
	if !slices.Contains(eventKinds, kind) {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return Event{Kind: kind}, nil
}
