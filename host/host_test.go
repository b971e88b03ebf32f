package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	letsencrypt "github.com/caasmo/restinpieces-letsencrypt"
)

type call struct {
	name  string
	args  []string
	env   []string
	quiet bool
}

// runnerMock records calls and answers from a per-command table.
type runnerMock struct {
	calls   []call
	results map[string]*Result
	errs    map[string]error
}

func newRunnerMock() *runnerMock {
	return &runnerMock{
		results: make(map[string]*Result),
		errs:    make(map[string]error),
	}
}

func (m *runnerMock) Run(_ context.Context, name string, args ...string) (*Result, error) {
	return m.record(call{name: name, args: args})
}

func (m *runnerMock) RunQuiet(_ context.Context, name string, args ...string) (*Result, error) {
	return m.record(call{name: name, args: args, quiet: true})
}

func (m *runnerMock) RunEnv(_ context.Context, env []string, name string, args ...string) (*Result, error) {
	return m.record(call{name: name, args: args, env: env})
}

func (m *runnerMock) record(c call) (*Result, error) {
	m.calls = append(m.calls, c)
	name, args := c.name, c.args
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	res := m.results[key]
	if res == nil {
		res = &Result{}
	}
	return res, m.errs[key]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUbuntuCodename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsb-release")
	require.NoError(t, os.WriteFile(path, []byte(
		"DISTRIB_ID=Ubuntu\nDISTRIB_RELEASE=18.04\nDISTRIB_CODENAME=bionic\nDISTRIB_DESCRIPTION=\"Ubuntu 18.04.6 LTS\"\n"), 0o644))

	u := NewUbuntu(newRunnerMock(), discardLogger(), WithLSBRelease(path))
	codename, err := u.Codename(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bionic", codename)

	t.Run("missing key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lsb-release")
		require.NoError(t, os.WriteFile(path, []byte("DISTRIB_ID=Ubuntu\n"), 0o644))
		_, err := NewUbuntu(newRunnerMock(), discardLogger(), WithLSBRelease(path)).Codename(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewUbuntu(newRunnerMock(), discardLogger(), WithLSBRelease(filepath.Join(t.TempDir(), "nope"))).Codename(context.Background())
		assert.Error(t, err)
	})
}

func TestUbuntuCommands(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerMock()
	u := NewUbuntu(runner, discardLogger())

	require.NoError(t, u.Install(ctx, "letsencrypt"))
	require.NoError(t, u.ServiceStop(ctx, "nginx"))
	require.NoError(t, u.ServiceStart(ctx, "nginx"))
	require.NoError(t, u.OpenPort(ctx, 80))
	require.NoError(t, u.SetStatus(ctx, letsencrypt.Status{Level: letsencrypt.StatusActive, Message: "registered x.com"}))

	assert.Equal(t, []call{
		{
			name: "apt-get",
			args: []string{"install", "-y", "-qq", "-o", "Dpkg::Options::=--force-confold", "letsencrypt"},
			env:  []string{"DEBIAN_FRONTEND=noninteractive"},
		},
		{name: "systemctl", args: []string{"stop", "nginx"}},
		{name: "systemctl", args: []string{"start", "nginx"}},
		{name: "open-port", args: []string{"80/tcp"}},
		{name: "status-set", args: []string{"active", "registered x.com"}},
	}, runner.calls)
}

func TestUbuntuInstallNothing(t *testing.T) {
	runner := newRunnerMock()
	require.NoError(t, NewUbuntu(runner, discardLogger()).Install(context.Background()))
	assert.Empty(t, runner.calls)
}

func TestUbuntuInstallFailure(t *testing.T) {
	runner := newRunnerMock()
	runner.errs["apt-get install -y -qq -o Dpkg::Options::=--force-confold letsencrypt"] = errors.New("exit status 100")

	err := NewUbuntu(runner, discardLogger()).Install(context.Background(), "letsencrypt")
	assert.ErrorContains(t, err, "apt-get install letsencrypt")
}

func TestUbuntuOpenPortInvalid(t *testing.T) {
	runner := newRunnerMock()
	u := NewUbuntu(runner, discardLogger())
	assert.Error(t, u.OpenPort(context.Background(), 0))
	assert.Error(t, u.OpenPort(context.Background(), 70000))
	assert.Empty(t, runner.calls)
}

func TestUbuntuServiceRunning(t *testing.T) {
	tests := []struct {
		name    string
		result  *Result
		err     error
		want    bool
		wantErr bool
	}{
		{"active", &Result{Stdout: "active\n"}, nil, true, false},
		{"inactive", &Result{ExitCode: 3, Stdout: "inactive\n"}, errors.New("exit status 3"), false, false},
		{"unexpected output", &Result{Stdout: "activating\n"}, nil, false, false},
		{"cannot run", &Result{}, errors.New("executable not found"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newRunnerMock()
			runner.results["systemctl is-active nginx"] = tt.result
			runner.errs["systemctl is-active nginx"] = tt.err

			running, err := NewUbuntu(runner, discardLogger()).ServiceRunning(context.Background(), "nginx")
			require.Len(t, runner.calls, 1)
			assert.True(t, runner.calls[0].quiet, "a stopped service is not logged as a failure")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, running)
		})
	}
}

func TestUbuntuSetStatusEmptyLevel(t *testing.T) {
	assert.Error(t, NewUbuntu(newRunnerMock(), discardLogger()).SetStatus(context.Background(), letsencrypt.Status{}))
}

func TestCertbotRun(t *testing.T) {
	runner := newRunnerMock()
	c := NewCertbot(runner, "letsencrypt")

	args := letsencrypt.CertOnlyArgs(letsencrypt.CertificateRequest{Domains: []string{"x.com"}, ContactEmail: "a@b.com"})
	require.NoError(t, c.Run(context.Background(), args))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "letsencrypt", runner.calls[0].name)
	assert.Equal(t, args, runner.calls[0].args)

	runner.errs["letsencrypt "+strings.Join(args, " ")] = errors.New("rate limited")
	assert.Error(t, c.Run(context.Background(), args))
}

func TestNewCertbotPanics(t *testing.T) {
	assert.Panics(t, func() { NewCertbot(nil, "letsencrypt") })
	assert.Panics(t, func() { NewCertbot(newRunnerMock(), "") })
}

func TestExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("captures output", func(t *testing.T) {
		res, err := NewExecutor(time.Minute, discardLogger()).Run(ctx, "sh", "-c", "echo out; echo err >&2")
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, "out\n", res.Stdout)
		assert.Equal(t, "err\n", res.Stderr)
	})

	t.Run("exit code", func(t *testing.T) {
		res, err := NewExecutor(0, discardLogger()).Run(ctx, "sh", "-c", "exit 3")
		require.Error(t, err)
		assert.Equal(t, 3, res.ExitCode)
		assert.Contains(t, err.Error(), "exit code 3")
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		_, err := NewExecutor(100*time.Millisecond, discardLogger()).Run(ctx, "sh", "-c", "sleep 5; echo done")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("timeout kills children holding output", func(t *testing.T) {
		start := time.Now()
		_, err := NewExecutor(100*time.Millisecond, discardLogger()).Run(ctx, "sh", "-c", "sleep 5 & sleep 5; wait")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("environment", func(t *testing.T) {
		res, err := NewExecutor(time.Minute, discardLogger()).RunEnv(ctx, []string{"CHARM_TEST_VALUE=42"}, "sh", "-c", "echo $CHARM_TEST_VALUE")
		require.NoError(t, err)
		assert.Equal(t, "42\n", res.Stdout)
	})

	t.Run("quiet still returns the exit code", func(t *testing.T) {
		res, err := NewExecutor(time.Minute, discardLogger()).RunQuiet(ctx, "sh", "-c", "exit 3")
		require.Error(t, err)
		assert.Equal(t, 3, res.ExitCode)
	})
}
