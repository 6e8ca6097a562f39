// Package testing provides a mock SSH client with canned command responses
// for exercising code that talks to a remote host without a real connection.
package testing

import (
	"fmt"
	"regexp"
	"sync"

	"dockhand/pkg/sshutil"
)

// CommandResponse is a canned response for a command.
type CommandResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error // transport-level failure, overrides the rest
}

// MockClient implements sshutil.SSHClient with canned responses.
// Responses are matched by exact command string first, then by regex
// patterns in registration order.
type MockClient struct {
	mu sync.Mutex

	host    string
	address string

	exact    map[string]CommandResponse
	patterns []patternResponse

	// SessionErr, when set, makes NewSession fail. Used to simulate a
	// dead connection for liveness probe tests.
	SessionErr error

	// Calls records every command passed to Exec, in order.
	Calls []string

	closed bool
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

type mockSession struct{}

func (mockSession) Close() error { return nil }

// NewMockClient creates a mock client for the given host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:    host,
		address: host + ":22",
		exact:   make(map[string]CommandResponse),
	}
}

// On registers a canned response for an exact command string.
func (m *MockClient) On(cmd string, resp CommandResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exact[cmd] = resp
	return m
}

// OnPattern registers a canned response for any command matching the
// regex pattern. Panics on an invalid pattern since this is test setup.
func (m *MockClient) OnPattern(pattern string, resp CommandResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patternResponse{
		re:   regexp.MustCompile(pattern),
		resp: resp,
	})
	return m
}

// Exec returns the canned response for cmd. Unregistered commands
// return exit code 127 with a command-not-found style stderr.
func (m *MockClient) Exec(cmd string) (string, string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, cmd)

	if resp, ok := m.exact[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Err
	}
	for _, p := range m.patterns {
		if p.re.MatchString(cmd) {
			return p.resp.Stdout, p.resp.Stderr, p.resp.ExitCode, p.resp.Err
		}
	}
	return "", fmt.Sprintf("mock: no response registered for %q", cmd), 127, nil
}

// NewSession returns a no-op session, or SessionErr if one is set.
func (m *MockClient) NewSession() (sshutil.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return mockSession{}, nil
}

// Close marks the client closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCount returns the number of Exec calls recorded so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// SetSessionErr sets or clears the NewSession failure.
func (m *MockClient) SetSessionErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionErr = err
}

// GetHost returns the mock's host.
func (m *MockClient) GetHost() string { return m.host }

// GetAddress returns the mock's host:22 address.
func (m *MockClient) GetAddress() string { return m.address }
