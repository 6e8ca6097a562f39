// Package transport manages the SSH connection to the remote Docker host.
// A single Manager owns one connection, serializes commands over it, and
// transparently redials when the connection goes stale.
package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"dockhand/internal/errors"
	"dockhand/internal/logger"
	"dockhand/pkg/sshutil"
)

// DefaultCommandTimeout bounds a single remote command when the caller
// doesn't pass an explicit timeout.
const DefaultCommandTimeout = 30 * time.Second

// stderrLogLimit caps how much stderr makes it into the logs.
const stderrLogLimit = 200

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited zero.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// DialFunc establishes an SSH connection. Swapped out in tests.
type DialFunc func(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error)

func defaultDial(opts sshutil.Options, timeout time.Duration) (sshutil.SSHClient, error) {
	return sshutil.Dial(opts, timeout)
}

// Manager owns the SSH connection to one remote host. All commands are
// serialized through it; the remote Docker CLI doesn't benefit from
// concurrent sessions and serializing keeps reconnect logic simple.
type Manager struct {
	mu sync.Mutex

	opts           sshutil.Options
	dialTimeout    time.Duration
	defaultTimeout time.Duration
	dial           DialFunc
	log            logger.Logger

	client sshutil.SSHClient
}

// NewManager creates a manager for the given host. The connection is
// established lazily on the first Execute call.
func NewManager(opts sshutil.Options, dialTimeout time.Duration, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		opts:           opts,
		dialTimeout:    dialTimeout,
		defaultTimeout: DefaultCommandTimeout,
		dial:           defaultDial,
		log:            log,
	}
}

// SetDefaultTimeout overrides the fallback used when Execute is called
// with a zero timeout. Values <= 0 are ignored.
func (m *Manager) SetDefaultTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.defaultTimeout = d
	}
}

// SetDialFunc replaces the dialer. Intended for tests.
func (m *Manager) SetDialFunc(dial DialFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dial = dial
}

// Execute runs a command on the remote host, bounded by timeout.
// The connection is probed before the command is sent; a stale connection
// is redialed once, and a failed redial surfaces as a transport error.
// A timeout of zero falls back to DefaultCommandTimeout.
func (m *Manager) Execute(cmd string, timeout time.Duration) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	client, err := m.ensureConnected()
	if err != nil {
		return CommandResult{}, err
	}

	m.log.Debug("exec on %s: %s", m.opts.Host, cmd)

	result, err := runWithTimeout(client, cmd, timeout)
	if err != nil {
		return CommandResult{}, err
	}

	if result.ExitCode != 0 {
		m.log.Warn("exec on %s exited %d: %s (stderr: %s)",
			m.opts.Host, result.ExitCode, cmd, truncate(result.Stderr, stderrLogLimit))
	}
	return result, nil
}

// runWithTimeout runs the command in a goroutine so a hung session can't
// wedge the manager. On timeout the connection is abandoned; the next
// Execute redials.
func runWithTimeout(client sshutil.SSHClient, cmd string, timeout time.Duration) (CommandResult, error) {
	type outcome struct {
		result CommandResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		stdout, stderr, exitCode, err := client.Exec(cmd)
		done <- outcome{CommandResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(timeout):
		// The goroutine is stuck on a dead or slow session. Closing the
		// client unblocks it; the connection gets redialed next time.
		client.Close()
		return CommandResult{}, errors.New(errors.ErrTransport,
			fmt.Sprintf("Command timed out after %s: %s", timeout, cmd),
			"The host may be overloaded. Raise remote.command_timeout if this is routine.")
	}
}

// ensureConnected returns a live client, dialing or redialing as needed.
// Caller must hold m.mu.
func (m *Manager) ensureConnected() (sshutil.SSHClient, error) {
	if m.client != nil {
		if isAlive(m.client) {
			return m.client, nil
		}
		m.log.Info("connection to %s went stale, redialing", m.opts.Host)
		m.client.Close()
		m.client = nil
	}

	client, err := m.dial(m.opts, m.dialTimeout)
	if err != nil {
		return nil, err
	}
	m.client = client
	m.log.Debug("connected to %s (%s)", m.opts.Host, client.GetAddress())
	return m.client, nil
}

// isAlive probes the connection by opening and closing a session.
func isAlive(client sshutil.SSHClient) bool {
	session, err := client.NewSession()
	if err != nil {
		return false
	}
	session.Close()
	return true
}

// TestConnection verifies the host is reachable and accepts commands.
func (m *Manager) TestConnection() error {
	result, err := m.Execute("true", 10*time.Second)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.New(errors.ErrTransport,
			fmt.Sprintf("Host '%s' rejected a trivial command (exit %d)", m.opts.Host, result.ExitCode),
			"Check the remote shell isn't printing errors on login.")
	}
	return nil
}

// TestDockerAccess verifies the remote user can talk to the Docker daemon.
func (m *Manager) TestDockerAccess() error {
	result, err := m.Execute("docker version --format '{{.Server.Version}}'", 15*time.Second)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.New(errors.ErrCommand,
			fmt.Sprintf("Docker isn't usable on '%s': %s", m.opts.Host, truncate(result.Stderr, stderrLogLimit)),
			"Make sure Docker is installed and the user is in the docker group.")
	}
	return nil
}

// Host returns the configured host name or alias.
func (m *Manager) Host() string {
	return m.opts.Host
}

// Close shuts down the connection if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
