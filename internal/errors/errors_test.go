package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrTransport,
		ErrCommand,
		ErrParse,
		ErrMetrics,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .dockhand.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "transport error",
			code:       ErrTransport,
			message:    "Cannot connect to the remote host",
			suggestion: "Run 'dockhand check' to diagnose connection issues",
		},
		{
			name:       "command error",
			code:       ErrCommand,
			message:    "docker start failed with exit code 1",
			suggestion: "Check the captured stderr for details",
		},
		{
			name:       "metrics error",
			code:       ErrMetrics,
			message:    "Metrics endpoint returned 503",
			suggestion: "Check the metrics agent is running on the remote host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, "SSH session failed")

	require.NotNil(t, err)
	assert.Equal(t, ErrTransport, err.Code)
	assert.Equal(t, "SSH session failed", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := WrapWithCode(cause, ErrParse, "Inspect output unusable", "Check the docker version on the remote host")

	assert.Equal(t, ErrParse, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, "Check the docker version on the remote host", err.Suggestion)
}

func TestErrorFormatting(t *testing.T) {
	err := WrapWithCode(errors.New("dial tcp: i/o timeout"), ErrTransport,
		"Can't reach the remote host",
		"Check the host is online")

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "✗ Can't reach the remote host"))
	assert.Contains(t, msg, "dial tcp: i/o timeout")
	assert.Contains(t, msg, "Check the host is online")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, "wrapped")

	assert.True(t, errors.Is(err, cause))
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{
			name: "matching code",
			err:  New(ErrTransport, "msg", ""),
			code: ErrTransport,
			want: true,
		},
		{
			name: "non-matching code",
			err:  New(ErrTransport, "msg", ""),
			code: ErrMetrics,
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("plain"),
			code: ErrTransport,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrTransport,
			want: false,
		},
		{
			name: "wrapped structured error",
			err:  wrapPlain(New(ErrCommand, "msg", "")),
			code: ErrCommand,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}

// wrapPlain wraps an error with the standard library to test errors.As traversal.
func wrapPlain(err error) error {
	return &wrapper{err}
}

type wrapper struct{ inner error }

func (w *wrapper) Error() string { return "outer: " + w.inner.Error() }
func (w *wrapper) Unwrap() error { return w.inner }

func TestCode(t *testing.T) {
	assert.Equal(t, ErrParse, Code(New(ErrParse, "msg", "")))
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}
