package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"dockhand/internal/errors"

	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and captures its output.
// A command that runs and exits non-zero returns that exit code with a nil
// error; err is only set when the command could not be run at all.
func (c *Client) Exec(cmd string) (stdout, stderr string, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return "", "", -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't open a session on '%s'", c.Host),
			"The connection may have dropped. It will be redialed on the next call.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	err = session.Run(cmd)
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			// The command ran and failed. That's the caller's problem.
			return stdout, stderr, exitErr.ExitStatus(), nil
		}
		return stdout, stderr, -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Command didn't complete on '%s'", c.Host),
			"The connection dropped mid-command. Retry the operation.")
	}

	return stdout, stderr, 0, nil
}

// ExecStream runs a command and streams its output to the given writers
// as it arrives. Used for long-running output like docker logs -f.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (int, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Couldn't open a session on '%s'", c.Host),
			"The connection may have dropped. It will be redialed on the next call.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Command didn't complete on '%s'", c.Host),
			"The connection dropped mid-command. Retry the operation.")
	}

	return 0, nil
}
