package transport

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/pkg/sshutil"
	sshtest "dockhand/pkg/sshutil/testing"
)

func newTestManager(dial DialFunc) *Manager {
	m := NewManager(sshutil.Options{Host: "tank"}, 5*time.Second, logger.Noop())
	m.SetDialFunc(dial)
	return m
}

func TestExecuteDialsLazily(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.On("echo hi", sshtest.CommandResponse{Stdout: "hi\n"})

	dials := 0
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		dials++
		return mock, nil
	})

	assert.Equal(t, 0, dials, "no dial before first command")

	result, err := m.Execute("echo hi", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Success())
	assert.Equal(t, 1, dials)
}

func TestExecuteReusesConnection(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.OnPattern(".*", sshtest.CommandResponse{Stdout: "ok"})

	dials := 0
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		dials++
		return mock, nil
	})

	for i := 0; i < 3; i++ {
		_, err := m.Execute("docker ps", time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dials, "live connection should not be redialed")
	assert.Equal(t, 3, mock.CallCount())
}

func TestExecuteRedialsStaleConnection(t *testing.T) {
	stale := sshtest.NewMockClient("tank")
	stale.OnPattern(".*", sshtest.CommandResponse{Stdout: "first"})
	fresh := sshtest.NewMockClient("tank")
	fresh.OnPattern(".*", sshtest.CommandResponse{Stdout: "second"})

	clients := []*sshtest.MockClient{stale, fresh}
	dials := 0
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		c := clients[dials]
		dials++
		return c, nil
	})

	result, err := m.Execute("docker ps", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Stdout)

	// Kill the first connection; the liveness probe should catch it
	stale.SetSessionErr(stderrors.New("session channel closed"))

	result, err = m.Execute("docker ps", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", result.Stdout)
	assert.Equal(t, 2, dials)
	assert.True(t, stale.Closed(), "stale client should be closed before redial")
}

func TestExecuteSurfacesRedialFailure(t *testing.T) {
	stale := sshtest.NewMockClient("tank")
	stale.OnPattern(".*", sshtest.CommandResponse{Stdout: "ok"})

	dials := 0
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		dials++
		if dials == 1 {
			return stale, nil
		}
		return nil, errors.New(errors.ErrTransport, "Can't reach 'tank'", "")
	})

	_, err := m.Execute("docker ps", time.Second)
	require.NoError(t, err)

	stale.SetSessionErr(stderrors.New("broken pipe"))

	_, err = m.Execute("docker ps", time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Equal(t, 2, dials)
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.On("docker stop nope", sshtest.CommandResponse{
		Stderr:   "Error response from daemon: No such container: nope",
		ExitCode: 1,
	})

	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return mock, nil
	})

	result, err := m.Execute("docker stop nope", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.Success())
	assert.Contains(t, result.Stderr, "No such container")
}

// slowClient blocks in Exec until released. Used to exercise the timeout path.
type slowClient struct {
	release chan struct{}
	closed  chan struct{}
}

func newSlowClient() *slowClient {
	return &slowClient{release: make(chan struct{}), closed: make(chan struct{})}
}

func (c *slowClient) Exec(cmd string) (string, string, int, error) {
	select {
	case <-c.release:
	case <-c.closed:
	}
	return "", "", -1, fmt.Errorf("connection closed")
}

func (c *slowClient) NewSession() (sshutil.Session, error) { return nopSession{}, nil }
func (c *slowClient) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
func (c *slowClient) GetHost() string    { return "tank" }
func (c *slowClient) GetAddress() string { return "tank:22" }

type nopSession struct{}

func (nopSession) Close() error { return nil }

func TestExecuteTimeout(t *testing.T) {
	slow := newSlowClient()
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return slow, nil
	})

	start := time.Now()
	_, err := m.Execute("docker ps", 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Less(t, elapsed, 2*time.Second)

	// The hung connection should be closed so it gets redialed
	select {
	case <-slow.closed:
	default:
		t.Fatal("hung client was not closed on timeout")
	}
}

func TestExecuteDefaultTimeout(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.On("docker ps", sshtest.CommandResponse{Stdout: "ok"})

	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return mock, nil
	})

	// Zero falls back to the default rather than timing out instantly
	result, err := m.Execute("docker ps", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Stdout)
}

func TestSetDefaultTimeout(t *testing.T) {
	slow := newSlowClient()
	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return slow, nil
	})
	m.SetDefaultTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := m.Execute("docker ps", 0)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Less(t, elapsed, 2*time.Second)

	// Values <= 0 are ignored
	m.SetDefaultTimeout(0)
	m.mu.Lock()
	assert.Equal(t, 50*time.Millisecond, m.defaultTimeout)
	m.mu.Unlock()
}

func TestTestConnection(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.On("true", sshtest.CommandResponse{})

	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return mock, nil
	})

	require.NoError(t, m.TestConnection())
}

func TestTestDockerAccess(t *testing.T) {
	tests := []struct {
		name     string
		resp     sshtest.CommandResponse
		wantErr  bool
		wantCode string
	}{
		{
			name: "docker available",
			resp: sshtest.CommandResponse{Stdout: "27.1.1\n"},
		},
		{
			name:     "docker missing",
			resp:     sshtest.CommandResponse{Stderr: "docker: command not found", ExitCode: 127},
			wantErr:  true,
			wantCode: errors.ErrCommand,
		},
		{
			name:     "permission denied",
			resp:     sshtest.CommandResponse{Stderr: "permission denied while trying to connect to the Docker daemon socket", ExitCode: 1},
			wantErr:  true,
			wantCode: errors.ErrCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := sshtest.NewMockClient("tank")
			mock.OnPattern("^docker version", tt.resp)

			m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
				return mock, nil
			})

			err := m.TestDockerAccess()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestClose(t *testing.T) {
	mock := sshtest.NewMockClient("tank")
	mock.OnPattern(".*", sshtest.CommandResponse{})

	m := newTestManager(func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
		return mock, nil
	})

	// Close with no connection is a no-op
	require.NoError(t, m.Close())

	_, err := m.Execute("true", time.Second)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.True(t, mock.Closed())
}
