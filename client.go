package sftpclient

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Client issues remote file-system operations over one SFTP session.
//
// A Client owns at most one live session. Calls may be made from several
// goroutines, but they share that session; recursive operations issue their
// steps one at a time.
type Client struct {
	config  Config
	logger  *zap.Logger
	metrics *metrics
	events  *emitter

	// dial establishes one session; nil selects the SSH dialer.
	dial func(ctx context.Context) (*session, error)

	mu      sync.Mutex
	state   SessionState
	session *session
}

// New creates a client for config without connecting.
func New(config Config) *Client {
	config = config.WithDefaults()
	return &Client{
		config:  config,
		logger:  config.Logger.With(zap.String("host", config.Host)),
		metrics: newMetrics(config.Registerer),
		events:  newEmitter(),
		state:   SessionAbsent,
	}
}

// Dial creates a client and connects it.
func Dial(ctx context.Context, config Config) (*Client, error) {
	c := New(config)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewClientWithSFTP creates a ready Client over an existing SFTP client.
// sshClient may be nil; when set, its termination ends the session.
func NewClientWithSFTP(sftpClient SFTPClientInterface, sshClient *ssh.Client) *Client {
	c := New(Config{})
	s := newSession(sftpClient, sshClient, nil)
	c.session = s
	c.state = SessionReady
	go c.watch(s)
	return c
}

// State returns the current session state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers handler for event on the underlying connection. Registering
// an EventError handler replaces the default handling of transport errors
// that occur outside any call. The handler stays registered until removed
// or until the client is closed.
func (c *Client) On(event Event, handler Handler) ListenerID {
	return c.events.add(event, handler, false)
}

// RemoveListener unregisters a handler added with On.
func (c *Client) RemoveListener(event Event, id ListenerID) bool {
	return c.events.remove(event, id)
}

// ListenerCount returns the number of handlers registered for event,
// including the ones the client holds for calls in flight.
func (c *Client) ListenerCount(event Event) int {
	return c.events.count(event, true)
}

// Close ends the session and releases every registered listener. Closing a
// closed client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.state = SessionClosed
	c.mu.Unlock()

	if s != nil {
		s.close()
		c.logger.Debug("session closed", zap.String("session", s.id))
		c.events.emit(EventEnd, nil)
		c.events.emit(EventClose, nil)
	}
	c.events.removeAll()
	return nil
}

// End is an alias for Close.
func (c *Client) End() error { return c.Close() }

// current returns the live session or nil.
func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != SessionReady {
		return nil
	}
	return c.session
}

// watch clears the session when its transport terminates on its own.
func (c *Client) watch(s *session) {
	if s.sshClient == nil {
		return
	}
	err := s.sshClient.Wait()

	c.mu.Lock()
	owned := c.session == s
	if owned {
		c.session = nil
		c.state = SessionAbsent
	}
	c.mu.Unlock()

	if !owned {
		return
	}
	s.close()

	if err != nil && !errors.Is(err, io.EOF) {
		c.handleTransportError(formatError("sftp.client", err, 0))
	} else {
		err = nil
	}
	c.logger.Debug("session ended", zap.String("session", s.id), zap.Error(err))
	c.events.emit(EventEnd, err)
	c.events.emit(EventClose, err)
}

// handleTransportError delivers an error that no call is waiting for. With
// no caller handler registered it is reported through DPanic, which panics
// under development loggers.
func (c *Client) handleTransportError(err error) {
	if handled := c.events.emit(EventError, err); handled {
		return
	}
	c.logger.DPanic("unhandled transport error", zap.Error(err))
}
