package sftpclient

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"
)

// Backoff is the retry policy for connection establishment. Attempts are
// numbered from zero; attempt n that fails may be followed by a retry when
// ShouldRetry(n) holds, after waiting DelayFor(n).
type Backoff struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Factor multiplies the delay after every failed attempt.
	Factor float64

	// MinDelay is the delay that follows the first failed attempt.
	MinDelay time.Duration
}

// ShouldRetry reports whether another attempt may follow failed attempt n.
func (b Backoff) ShouldRetry(attempt int) bool {
	return attempt >= 0 && attempt < b.MaxRetries
}

// DelayFor returns MinDelay * Factor^attempt.
func (b Backoff) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.MinDelay) * math.Pow(b.Factor, float64(attempt))
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// MaxAttempts is the total number of attempts the policy allows.
func (b Backoff) MaxAttempts() int {
	if b.MaxRetries < 0 {
		return 1
	}
	return b.MaxRetries + 1
}

// IsRetryableError checks if an error is transient and worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	retryableMessages := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"handshake failed",
		"ssh: disconnect",
		"ssh: unable to authenticate",
		"temporary failure",
		"too many open files",
		"eof",
	}

	for _, msg := range retryableMessages {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	return false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
