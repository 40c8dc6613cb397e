package sftpclient

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const opConnect = "sftp.connect"

// Connect establishes the session, retrying retryable failures according to
// the config's backoff policy. Connect on a ready client does nothing.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case SessionReady:
		c.mu.Unlock()
		return nil
	case SessionEstablishing:
		c.mu.Unlock()
		return validationError(opConnect, "connection already in progress")
	}
	if err := c.config.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = SessionEstablishing
	c.mu.Unlock()

	s, err := c.establish(ctx)

	c.mu.Lock()
	if err != nil {
		if c.state == SessionEstablishing {
			c.state = SessionAbsent
		}
		c.mu.Unlock()
		return err
	}
	if c.state != SessionEstablishing {
		// Closed while the handshake was running.
		c.mu.Unlock()
		s.close()
		return validationError(opConnect, "client closed during connect")
	}
	c.session = s
	c.state = SessionReady
	c.mu.Unlock()

	c.logger.Debug("session ready", zap.String("session", s.id))
	go c.watch(s)
	c.events.emit(EventReady, nil)
	return nil
}

func (c *Client) establish(ctx context.Context) (*session, error) {
	dial := c.dial
	if dial == nil {
		sshConfig, err := buildSSHConfig(c.config, c.logger)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: opConnect, Msg: err.Error(), Err: err}
		}
		dial = func(ctx context.Context) (*session, error) {
			return dialSession(ctx, c.config, sshConfig, c.logger)
		}
	}

	backoff := c.config.backoff()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelledError(fmt.Errorf("connect cancelled: %w", err), attempt)
		}

		s, err := dial(ctx)
		c.metrics.connectAttempt(err)
		if err == nil {
			return s, nil
		}

		if !IsRetryableError(err) || !backoff.ShouldRetry(attempt) {
			return nil, formatError(opConnect, err, attempt+1)
		}

		delay := backoff.DelayFor(attempt)
		c.logger.Warn("connect failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", backoff.MaxAttempts()),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := sleep(ctx, delay); err != nil {
			return nil, cancelledError(fmt.Errorf("connect cancelled during retry wait: %w", err), attempt+1)
		}
	}
}

func cancelledError(err error, attempts int) *Error {
	return &Error{Kind: KindConnection, Op: opConnect, Msg: err.Error(), Attempts: attempts, Err: err}
}

// dialSession performs one connection attempt: TCP dial (optionally through
// a bastion), SSH handshake, then the SFTP subsystem request. Every handle
// opened by a failed attempt is closed before returning.
func dialSession(ctx context.Context, config Config, sshConfig *ssh.ClientConfig, logger *zap.Logger) (*session, error) {
	targetAddr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	var sshClient, bastionClient *ssh.Client
	var err error

	if config.BastionHost != "" {
		bastionClient, err = connectToBastion(ctx, config, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to bastion host: %w", err)
		}

		conn, err := bastionClient.Dial("tcp", targetAddr)
		if err != nil {
			bastionClient.Close()
			return nil, fmt.Errorf("failed to dial target through bastion: %w", err)
		}

		ncc, chans, reqs, err := ssh.NewClientConn(conn, targetAddr, sshConfig)
		if err != nil {
			conn.Close()
			bastionClient.Close()
			return nil, fmt.Errorf("ssh handshake failed through bastion: %w", err)
		}

		sshClient = ssh.NewClient(ncc, chans, reqs)
	} else {
		sshClient, err = dialSSH(ctx, targetAddr, sshConfig)
		if err != nil {
			return nil, err
		}
	}

	rawSftpClient, err := sftp.NewClient(sshClient, config.SFTPOptions...)
	if err != nil {
		sshClient.Close()
		if bastionClient != nil {
			bastionClient.Close()
		}
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	return newSession(&SFTPClientWrapper{client: rawSftpClient}, sshClient, bastionClient), nil
}
