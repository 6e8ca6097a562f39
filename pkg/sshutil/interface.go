package sshutil

// Session is the subset of ssh.Session used for liveness probes.
type Session interface {
	Close() error
}

// SSHClient abstracts SSH operations for testing.
// The concrete Client implements this interface against a real connection,
// and testing.MockClient implements it with canned responses.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// A non-zero exit code is not an error; err is reserved for
	// transport failures.
	Exec(cmd string) (stdout, stderr string, exitCode int, err error)

	// NewSession opens a throwaway session. Used as a liveness probe:
	// a dead connection fails here before any command is sent.
	NewSession() (Session, error)

	// Close closes the underlying connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}
