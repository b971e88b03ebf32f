package letsencrypt

import "fmt"

// State is the single source of truth for where the unit is in the
// install/register lifecycle.
type State string

const (
	StateNotInstalled State = "not-installed"
	StateUnsupported  State = "unsupported"
	StateInstalled    State = "installed"
	StateConfigured   State = "configured"
	StateRegistering  State = "registering"
	StateRegistered   State = "registered"
	StateBlocked      State = "blocked"
)

type Trigger string

const (
	TriggerInstallSucceeded  Trigger = "install-succeeded"
	TriggerSeriesUnsupported Trigger = "series-unsupported"
	TriggerDomainMissing     Trigger = "domain-missing"
	TriggerRegister          Trigger = "register"
	TriggerRegisterSucceeded Trigger = "register-succeeded"
	TriggerRegisterFailed    Trigger = "register-failed"
	TriggerInvalidate        Trigger = "invalidate"
)

var transitions = map[State]map[Trigger]State{
	StateNotInstalled: {
		TriggerInstallSucceeded:  StateInstalled,
		TriggerSeriesUnsupported: StateUnsupported,
		TriggerInvalidate:        StateNotInstalled,
	},
	StateUnsupported: {
		TriggerInstallSucceeded:  StateInstalled,
		TriggerSeriesUnsupported: StateUnsupported,
		TriggerInvalidate:        StateUnsupported,
	},
	StateInstalled: {
		TriggerDomainMissing: StateConfigured,
		TriggerRegister:      StateRegistering,
		TriggerInvalidate:    StateInstalled,
	},
	StateConfigured: {
		TriggerDomainMissing: StateConfigured,
		TriggerRegister:      StateRegistering,
		TriggerInvalidate:    StateInstalled,
	},
	// registering is only observed at rest when a previous run died mid-flight.
	StateRegistering: {
		TriggerDomainMissing:     StateConfigured,
		TriggerRegister:          StateRegistering,
		TriggerRegisterSucceeded: StateRegistered,
		TriggerRegisterFailed:    StateBlocked,
		TriggerInvalidate:        StateInstalled,
	},
	StateRegistered: {
		TriggerInvalidate: StateInstalled,
	},
	StateBlocked: {
		TriggerDomainMissing: StateConfigured,
		TriggerRegister:      StateRegistering,
		TriggerInvalidate:    StateInstalled,
	},
}

// Next returns the state reached from s on trigger t.
func (s State) Next(t Trigger) (State, error) {
	next, ok := transitions[s][t]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, t)
	}
	return next, nil
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Installed reports whether the ACME client package is on the host.
func (s State) Installed() bool {
	return s != StateNotInstalled && s != StateUnsupported
}

func (s State) Registered() bool {
	return s == StateRegistered
}

// CanRegister reports whether the registration workflow may run from s.
// The disable flag is checked separately.
func (s State) CanRegister() bool {
	switch s {
	case StateInstalled, StateConfigured, StateRegistering, StateBlocked:
		return true
	}
	return false
}
