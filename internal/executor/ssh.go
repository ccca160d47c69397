package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/roach88/provcheck/internal/fault"
	"github.com/roach88/provcheck/internal/inventory"
)

// DefaultDialTimeout bounds TCP connect plus SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// SSHOptions configures the SSH transport.
type SSHOptions struct {
	// DialTimeout bounds connection establishment. Zero uses DefaultDialTimeout.
	DialTimeout time.Duration
}

// SSH runs commands on a remote host over a single multiplexed client.
// Each Run opens its own session, so concurrent checks are safe.
//
// Host keys are not verified: freshly provisioned hosts have no known_hosts
// entry and the harness has no trust anchor for them.
type SSH struct {
	conn inventory.Connection
	opts SSHOptions

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSH creates an SSH runner for conn. No connection is made until the
// first Run.
func NewSSH(conn inventory.Connection, opts SSHOptions) *SSH {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return &SSH{conn: conn, opts: opts}
}

// Run executes command in a new session. The session runs to completion;
// ctx only bounds connection establishment.
func (s *SSH) Run(ctx context.Context, command string) Result {
	start := time.Now()

	client, err := s.dial(ctx)
	if err != nil {
		slog.Debug("ssh dial failed", "target", s.conn.String(), "error", err)
		return TransportFailed(err)
	}

	session, err := client.NewSession()
	if err != nil {
		return TransportFailed(fault.Transport("open ssh session", err))
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	err = session.Run(command)
	stdout := limitOutput(stdoutBuf.Bytes(), maxOutputSize)
	stderr := limitOutput(stderrBuf.Bytes(), maxOutputSize)

	var result Result
	if err == nil {
		result = Succeeded(stdout)
	} else {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result = ExitedOutput(exitErr.ExitStatus(), stdout, stderr)
		} else {
			result = TransportFailed(fault.Transport("run remote command", err))
		}
	}

	slog.Debug("remote command completed",
		"target", s.conn.String(),
		"command", command,
		"exit", result.ExitCode,
		"duration", time.Since(start),
		"stdout", logSnippet(stdout),
		"stderr", logSnippet(stderr),
	)

	return result
}

// Close releases the underlying client, if one was established.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// dial returns the shared client, establishing it on first use.
// A failed dial is not cached; the next Run attempts its own connection.
func (s *SSH) dial(ctx context.Context) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	config, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := s.conn.Address()
	dialer := net.Dialer{Timeout: s.opts.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fault.Transport(fmt.Sprintf("dial %s", addr), err)
	}

	// Bound the handshake, then clear the deadline for command traffic.
	_ = netConn.SetDeadline(time.Now().Add(s.opts.DialTimeout))
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, fault.Transport(fmt.Sprintf("ssh handshake with %s", s.conn.String()), err)
	}
	_ = netConn.SetDeadline(time.Time{})

	s.client = ssh.NewClient(c, chans, reqs)
	slog.Debug("ssh connection established", "target", s.conn.String())
	return s.client, nil
}

func (s *SSH) clientConfig() (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(s.conn.KeyPath)
	if err != nil {
		return nil, fault.Transport("read private key", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fault.Transport(fmt.Sprintf("parse private key %s", s.conn.KeyPath), err)
	}

	return &ssh.ClientConfig{
		User:            s.conn.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // provisioned hosts have no known key
		Timeout:         s.opts.DialTimeout,
	}, nil
}
