package sftpclient

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"syscall"

	"github.com/pkg/sftp"
)

// Kind classifies an Error. Kind implements error so callers can test the
// classification with errors.Is:
//
//	if errors.Is(err, sftpclient.KindValidation) { ... }
type Kind int

const (
	// KindOperation is a server-reported failure of a specific remote call.
	KindOperation Kind = iota
	// KindConnection covers address resolution failures, refused
	// connections and exhausted connection retries.
	KindConnection
	// KindValidation is caller misuse detected before any server round trip.
	KindValidation
	// KindNoConnection is an operation attempted without a live session.
	KindNoConnection
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindValidation:
		return "validation error"
	case KindNoConnection:
		return "no connection"
	default:
		return "operation error"
	}
}

func (k Kind) Error() string { return k.String() }

// Error is the normalized error returned by every Client method.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op names the originating operation, e.g. "sftp.list".
	Op string
	// Msg is the human-readable description.
	Msg string
	// Attempts is the number of connection attempts made, or zero.
	Attempts int
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Msg
	switch {
	case e.Attempts == 1:
		msg += " after 1 attempt"
	case e.Attempts > 1:
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// ErrNoConnection is wrapped by every KindNoConnection error.
var ErrNoConnection = errors.New("no SFTP connection available")

// IsNotFound reports whether err stems from a missing remote or local path.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == uint32(sftp.ErrSSHFxNoSuchFile)
	}
	return false
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func noConnectionError(op string) *Error {
	return &Error{Kind: KindNoConnection, Op: op, Msg: ErrNoConnection.Error(), Err: ErrNoConnection}
}

// formatError normalizes a raw failure into an *Error attributed to op.
// Errors that are already normalized are returned unchanged so nested
// operations report the step that actually failed. attempts is recorded for
// connection failures and ignored when zero.
func formatError(op string, err error, attempts int) error {
	if err == nil {
		return nil
	}

	var normalized *Error
	if errors.As(err, &normalized) {
		if attempts > 0 && normalized.Attempts == 0 {
			copied := *normalized
			copied.Attempts = attempts
			return &copied
		}
		return err
	}

	e := &Error{Kind: KindOperation, Op: op, Msg: err.Error(), Attempts: attempts, Err: err}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		e.Kind = KindConnection
		e.Msg = fmt.Sprintf("address lookup failed for host %s", dnsErr.Name)
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Kind = KindConnection
		addr := "unknown address"
		if errors.As(err, &opErr) && opErr.Addr != nil {
			addr = opErr.Addr.String()
		}
		e.Msg = fmt.Sprintf("remote host at %s refused connection", addr)
	case attempts > 0:
		e.Kind = KindConnection
	}

	return e
}
