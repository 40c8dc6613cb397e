package sftpclient

import "sync"

// Event names a lifecycle event of the underlying connection.
type Event string

const (
	// EventReady fires once the SFTP subsystem is available.
	EventReady Event = "ready"
	// EventError fires for transport errors that occur outside any call.
	EventError Event = "error"
	// EventEnd fires when the transport terminates.
	EventEnd Event = "end"
	// EventClose fires after EventEnd once the session is released.
	EventClose Event = "close"
)

// Handler receives an event. err is set for EventError and for an
// EventEnd/EventClose caused by a transport failure.
type Handler func(event Event, err error)

// ListenerID identifies a registered handler.
type ListenerID uint64

type listener struct {
	id       ListenerID
	handler  Handler
	internal bool
}

// emitter dispatches named events. Internal listeners belong to the client
// itself and do not count as caller-installed handlers.
type emitter struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[Event][]listener
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[Event][]listener)}
}

func (e *emitter) add(event Event, h Handler, internal bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners[event] = append(e.listeners[event], listener{id: e.nextID, handler: h, internal: internal})
	return e.nextID
}

func (e *emitter) remove(event Event, id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[event]
	for i, l := range ls {
		if l.id == id {
			e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			if len(e.listeners[event]) == 0 {
				delete(e.listeners, event)
			}
			return true
		}
	}
	return false
}

func (e *emitter) count(event Event, includeInternal bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.listeners[event] {
		if includeInternal || !l.internal {
			n++
		}
	}
	return n
}

// emit calls the handlers registered for event in registration order and
// reports whether any caller handler received it.
func (e *emitter) emit(event Event, err error) bool {
	e.mu.Lock()
	ls := make([]listener, len(e.listeners[event]))
	copy(ls, e.listeners[event])
	e.mu.Unlock()

	handled := false
	for _, l := range ls {
		l.handler(event, err)
		if !l.internal {
			handled = true
		}
	}
	return handled
}

func (e *emitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[Event][]listener)
}
