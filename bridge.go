package sftpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.uber.org/zap"
)

// errSessionEnded rejects transfers whose session ends without a transport
// error.
var errSessionEnded = errors.New("session ended during transfer")

// call runs one primitive against the live session. It never invokes fn
// without a session, and it normalizes returned errors and panics alike.
// ctx is checked before fn runs; a primitive that was issued runs to
// completion.
func call[T any](ctx context.Context, c *Client, op string, fn func(s *session) (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe(op, start, err)
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, formatError(op, fmt.Errorf("operation cancelled: %w", ctxErr), 0)
	}

	s := c.current()
	if s == nil {
		return result, noConnectionError(op)
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = formatError(op, fmt.Errorf("panic: %v", r), 0)
			c.logger.Error("operation panicked", zap.String("op", op), zap.String("session", s.id), zap.Any("panic", r))
		}
	}()

	result, err = fn(s)
	if err != nil {
		var zero T
		return zero, formatError(op, err, 0)
	}
	return result, nil
}

// pipe runs copyFn in its own goroutine and waits for the first terminal
// event: the copy finishing, the copy failing or panicking, or the session
// ending. The internal end listener and every closer are released exactly
// once, on that event. When the copy succeeds, sink is closed first and its
// error fails the transfer. pipe returns only after copyFn has returned, so
// caller-supplied readers and writers are never touched afterwards.
func (c *Client) pipe(copyFn func() (int64, error), sink io.Closer, closers ...io.Closer) (int64, error) {
	done := newCompletion[int64]()

	for _, cl := range closers {
		cl := cl
		done.onSettle(func() { _ = cl.Close() })
	}

	endID := c.events.add(EventEnd, func(_ Event, err error) {
		if err == nil {
			err = errSessionEnded
		}
		done.reject(fmt.Errorf("transfer interrupted: %w", err))
	}, true)
	done.onSettle(func() { c.events.remove(EventEnd, endID) })

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("transfer panicked", zap.Any("panic", r))
				done.reject(fmt.Errorf("panic: %v", r))
			}
		}()

		n, err := copyFn()
		if err == nil && sink != nil {
			err = sink.Close()
		}
		if err != nil {
			done.reject(err)
			return
		}
		done.resolve(n)
	}()

	n, err := done.wait()
	<-exited
	return n, err
}

// pathError attaches the remote path to errors that do not name it.
func pathError(op, path string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return err
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}
