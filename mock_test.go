package letsencrypt_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

// memStore is an in-memory letsencrypt.Store.
type memStore struct {
	values map[string][]byte
	flags  map[string]bool
	// flagOps records every SetFlag/ClearFlag call in order.
	flagOps []string
}

func newMemStore() *memStore {
	return &memStore{
		values: make(map[string][]byte),
		flags:  make(map[string]bool),
	}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, letsencrypt.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *memStore) SetFlag(_ context.Context, name string) error {
	s.flagOps = append(s.flagOps, "set "+name)
	s.flags[name] = true
	return nil
}

func (s *memStore) ClearFlag(_ context.Context, name string) error {
	s.flagOps = append(s.flagOps, "clear "+name)
	delete(s.flags, name)
	return nil
}

func (s *memStore) HasFlag(_ context.Context, name string) (bool, error) {
	return s.flags[name], nil
}

func (s *memStore) setState(state letsencrypt.State) {
	s.values[letsencrypt.KeyState] = []byte(state)
}

func (s *memStore) flagNames() []string {
	return slices.Sorted(maps.Keys(s.flags))
}

// fakeSystem records every host call into a shared log.
type fakeSystem struct {
	log *[]string

	codename    string
	codenameErr error
	installErr  error
	running     bool
	startErr    error
	openPortErr error

	statuses []letsencrypt.Status
}

func newFakeSystem(log *[]string) *fakeSystem {
	return &fakeSystem{log: log, codename: "xenial"}
}

func (f *fakeSystem) record(format string, args ...any) {
	*f.log = append(*f.log, fmt.Sprintf(format, args...))
}

func (f *fakeSystem) Codename(context.Context) (string, error) {
	return f.codename, f.codenameErr
}

func (f *fakeSystem) Install(_ context.Context, packages ...string) error {
	f.record("install %s", strings.Join(packages, " "))
	return f.installErr
}

func (f *fakeSystem) ServiceRunning(_ context.Context, name string) (bool, error) {
	return f.running, nil
}

func (f *fakeSystem) ServiceStart(_ context.Context, name string) error {
	f.record("start %s", name)
	if f.startErr == nil {
		f.running = true
	}
	return f.startErr
}

func (f *fakeSystem) ServiceStop(_ context.Context, name string) error {
	f.record("stop %s", name)
	f.running = false
	return nil
}

func (f *fakeSystem) OpenPort(_ context.Context, port int) error {
	f.record("open-port %d", port)
	return f.openPortErr
}

func (f *fakeSystem) SetStatus(_ context.Context, status letsencrypt.Status) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeSystem) lastStatus() letsencrypt.Status {
	if len(f.statuses) == 0 {
		return letsencrypt.Status{}
	}
	return f.statuses[len(f.statuses)-1]
}

// fakeClient records ACME client invocations into the same log as fakeSystem.
type fakeClient struct {
	log  *[]string
	runs [][]string
	err  error
}

func (c *fakeClient) Run(_ context.Context, args []string) error {
	c.runs = append(c.runs, slices.Clone(args))
	*c.log = append(*c.log, "client "+strings.Join(args, " "))
	return c.err
}

// staticConfig hands out a copy of cfg on every read.
type staticConfig struct {
	cfg letsencrypt.Config
	err error
}

func (s *staticConfig) ReadConfig() (*letsencrypt.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := s.cfg
	cfg.ApplyDefaults()
	return &cfg, nil
}

type fixture struct {
	config *staticConfig
	store  *memStore
	system *fakeSystem
	client *fakeClient
	log    *[]string
	charm  *letsencrypt.Charm
}

func newFixture(cfg letsencrypt.Config) *fixture {
	log := &[]string{}
	f := &fixture{
		config: &staticConfig{cfg: cfg},
		store:  newMemStore(),
		system: newFakeSystem(log),
		client: &fakeClient{log: log},
		log:    log,
	}
	f.charm = letsencrypt.NewCharm(f.config, f.store, f.system, f.client, discardLogger())
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
