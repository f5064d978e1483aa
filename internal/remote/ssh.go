package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	defaultSSHPort        = 22
	defaultConnectTimeout = 10 * time.Second
)

// NewSSHClient opens an SSH connection to host using key
// authentication. It is used both for command sessions and as the
// carrier for tunneled hypervisor connections.
func NewSSHClient(host string, settings Settings) (*ssh.Client, error) {
	key, err := os.ReadFile(settings.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", settings.KeyFile, err)
	}

	timeout := defaultConnectTimeout
	if settings.ConnectTimeout > 0 {
		timeout = time.Duration(settings.ConnectTimeout) * time.Second
	}
	port := settings.Port
	if port == 0 {
		port = defaultSSHPort
	}

	cfg := &ssh.ClientConfig{
		User:            settings.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	raw, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(raw, addr, cfg)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

type sshConn struct {
	client *ssh.Client
}

func dialSSH(ctx context.Context, host string, settings Settings) (conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := NewSSHClient(host, settings)
	if err != nil {
		return nil, err
	}

	return &sshConn{client: client}, nil
}

// run executes one command over a fresh SSH channel. A non-zero exit
// comes back as a status, every other failure as a transport error.
func (c *sshConn) run(ctx context.Context, command string, stdin []byte) (string, int, error) {
	sess, err := c.client.NewSession()
	if err != nil {
		return "", -1, err
	}
	defer sess.Close()

	if stdin != nil {
		sess.Stdin = bytes.NewReader(stdin)
	}
	var output bytes.Buffer
	sess.Stdout = &output
	sess.Stderr = &output

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return output.String(), -1, ctx.Err()
	case err = <-done:
	}

	if err == nil {
		return output.String(), 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return output.String(), exitErr.ExitStatus(), nil
	}

	return output.String(), -1, err
}

func (c *sshConn) close() error {
	return c.client.Close()
}
