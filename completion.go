package sftpclient

import "sync"

// completion is a one-shot result. It moves from pending to settled exactly
// once, on the first resolve or reject, and then runs its teardown
// functions in reverse registration order. Later settle calls are ignored.
type completion[T any] struct {
	mu       sync.Mutex
	settled  bool
	teardown []func()
	done     chan struct{}

	value T
	err   error
}

func newCompletion[T any]() *completion[T] {
	return &completion[T]{done: make(chan struct{})}
}

// onSettle registers f to run at settlement. If the completion already
// settled, f runs immediately.
func (c *completion[T]) onSettle(f func()) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		f()
		return
	}
	c.teardown = append(c.teardown, f)
	c.mu.Unlock()
}

func (c *completion[T]) resolve(v T) bool {
	return c.settle(v, nil)
}

func (c *completion[T]) reject(err error) bool {
	var zero T
	return c.settle(zero, err)
}

func (c *completion[T]) settle(v T, err error) bool {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		return false
	}
	c.settled = true
	c.value, c.err = v, err
	fns := c.teardown
	c.teardown = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
	close(c.done)
	return true
}

// wait blocks until the completion settles.
func (c *completion[T]) wait() (T, error) {
	<-c.done
	return c.value, c.err
}
