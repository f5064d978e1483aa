// Package remote executes commands on managed hosts over SSH. A
// Session wraps one host and transparently reconnects when the
// transport drops between commands.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Settings carries the SSH connection parameters shared by all
// sessions of one tool invocation.
type Settings struct {
	User           string
	KeyFile        string
	Port           int
	ConnectTimeout int // seconds
}

// Result is the outcome of a completed remote command.
type Result struct {
	Output     string
	ExitStatus int
}

// runConfig is assembled from RunOptions per command.
type runConfig struct {
	sudo         bool
	silent       bool
	tolerateExit bool
	stdin        []byte
}

// RunOption adjusts how a single command is executed.
type RunOption func(*runConfig)

// NoSudo runs the command as the login user instead of through sudo.
func NoSudo() RunOption {
	return func(c *runConfig) { c.sudo = false }
}

// Silent suppresses the command log line, for commands run in tight
// polling loops.
func Silent() RunOption {
	return func(c *runConfig) { c.silent = true }
}

// TolerateExit returns a non-zero exit status in the Result instead of
// treating it as an error.
func TolerateExit() RunOption {
	return func(c *runConfig) { c.tolerateExit = true }
}

func withStdin(data []byte) RunOption {
	return func(c *runConfig) { c.stdin = data }
}

// conn is one established transport to the host. Errors returned from
// run are transport failures; command failures surface through the
// exit status instead.
type conn interface {
	run(ctx context.Context, command string, stdin []byte) (output string, exitStatus int, err error)
	close() error
}

type dialFunc func(ctx context.Context, host string, settings Settings) (conn, error)

// Session executes commands on one host. It is safe for concurrent
// use; commands are serialized over a single transport.
type Session struct {
	host     string
	settings Settings
	dial     dialFunc
	log      zerolog.Logger

	mu   sync.Mutex
	conn conn

	cpuOnce sync.Once
	cpu     int
	cpuErr  error

	netOnce sync.Once
	net     NetworkConfig
	netErr  error
}

// NewSession prepares a session for host. No connection is made until
// the first command runs.
func NewSession(host string, settings Settings, log zerolog.Logger) *Session {
	return &Session{
		host:     host,
		settings: settings,
		dial:     dialSSH,
		log:      log.With().Str("host", host).Logger(),
	}
}

func (s *Session) Host() string { return s.host }

// Run executes a command on the host. Commands run through sudo unless
// NoSudo is given. When the transport drops mid-command the session
// reconnects and retries exactly once; a command that exits non-zero
// is never retried.
func (s *Session) Run(ctx context.Context, command string, opts ...RunOption) (Result, error) {
	cfg := runConfig{sudo: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	wire := command
	if cfg.sudo {
		wire = "sudo -n -- sh -c " + shellQuote(command)
	}
	if !cfg.silent {
		s.log.Info().Str("command", command).Msg("running remote command")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	output, status, err := s.runLocked(ctx, wire, cfg.stdin)
	if err != nil {
		// Transport failure. Reconnect and retry the command once.
		s.log.Debug().Err(err).Msg("transport dropped, reconnecting")
		s.dropLocked()
		output, status, err = s.runLocked(ctx, wire, cfg.stdin)
	}
	if err != nil {
		s.dropLocked()
		return Result{}, &ExecError{Host: s.host, Command: command, ExitStatus: -1, cause: err}
	}

	if status != 0 && !cfg.tolerateExit {
		return Result{}, &ExecError{Host: s.host, Command: command, ExitStatus: status, Output: output}
	}

	return Result{Output: output, ExitStatus: status}, nil
}

func (s *Session) runLocked(ctx context.Context, wire string, stdin []byte) (string, int, error) {
	if s.conn == nil {
		c, err := s.dial(ctx, s.host, s.settings)
		if err != nil {
			return "", -1, err
		}
		s.conn = c
	}

	return s.conn.run(ctx, wire, stdin)
}

func (s *Session) dropLocked() {
	if s.conn != nil {
		_ = s.conn.close()
		s.conn = nil
	}
}

// Close tears down the transport. The session can be reused; the next
// command reconnects.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

// FileExists checks for a path on the host.
func (s *Session) FileExists(ctx context.Context, path string) (bool, error) {
	res, err := s.Run(ctx, "test -e "+shellQuote(path), Silent(), TolerateExit())
	if err != nil {
		return false, err
	}

	return res.ExitStatus == 0, nil
}

// ReadFile returns the content of one file. Glob characters are
// rejected so a pattern cannot silently concatenate multiple files.
func (s *Session) ReadFile(ctx context.Context, path string) (string, error) {
	if strings.ContainsAny(path, "*?[") {
		return "", fmt.Errorf("read %q: glob characters are not allowed", path)
	}

	res, err := s.Run(ctx, "cat "+shellQuote(path), Silent())
	if err != nil {
		return "", err
	}

	return res.Output, nil
}

// Upload writes content to path with the given mode. The data lands in
// a unique temporary file first and is moved and chmodded in a single
// privileged invocation, so the destination is never half-written.
func (s *Session) Upload(ctx context.Context, content []byte, path, mode string) error {
	tmp := "/tmp/" + uuid.NewString()

	if _, err := s.Run(ctx, "cat > "+tmp, NoSudo(), Silent(), withStdin(content)); err != nil {
		return err
	}

	install := fmt.Sprintf("mv %s %s && chmod %s %s", tmp, shellQuote(path), shellQuote(mode), shellQuote(path))
	if _, err := s.Run(ctx, install); err != nil {
		return err
	}

	return nil
}

// shellQuote wraps s in single quotes for safe interpolation into a
// remote shell command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
