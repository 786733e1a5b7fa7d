package conversation

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type state int

const (
	stateIdle state = iota
	stateActive
	stateTerminated
)

// Stream is the caller's handle on one streamed conversation turn.
//
// Events are delivered one at a time, in order, from a single goroutine.
// Exactly one EventEnd is delivered and nothing follows it.
type Stream struct {
	id     uuid.UUID
	cancel context.CancelFunc
	dump   io.Writer

	mu        sync.Mutex
	state     state
	listeners map[EventKind][]Listener
	end       Event

	events    chan Event
	delivered chan struct{}
	abortReq  chan struct{}
	abortOnce sync.Once
	done      chan struct{}
}

// StreamOption configures a Stream before its request is sent.
type StreamOption func(*Stream)

// WithListener registers l before the request starts, so it cannot miss early events.
func WithListener(kind EventKind, l Listener) StreamOption {
	return func(s *Stream) { s.On(kind, l) }
}

// WithDump copies the raw response body to w.
func WithDump(w io.Writer) StreamOption {
	return func(s *Stream) { s.dump = w }
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		id:        uuid.New(),
		cancel:    cancel,
		listeners: make(map[EventKind][]Listener),
		events:    make(chan Event),
		delivered: make(chan struct{}),
		abortReq:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Stream) ID() uuid.UUID { return s.id }

// On registers a listener for kind. Listeners of one kind run in registration order.
//
// Registering for EventEnd after the stream terminated invokes l right away
// with the terminal event; other late registrations are dropped.
func (s *Stream) On(kind EventKind, l Listener) *Stream {
	if l == nil {
		return s
	}

	s.mu.Lock()
	if s.state == stateTerminated {
		end := s.end
		s.mu.Unlock()
		if kind == EventEnd {
			l(end)
		}
		return s
	}
	s.listeners[kind] = append(s.listeners[kind], l)
	s.mu.Unlock()
	return s
}

func (s *Stream) OnMessage(fn func(*Payload)) *Stream {
	return s.On(EventMessage, func(ev Event) { fn(ev.Payload) })
}

func (s *Stream) OnComplete(fn func(*Payload)) *Stream {
	return s.On(EventComplete, func(ev Event) { fn(ev.Payload) })
}

func (s *Stream) OnError(fn func(error)) *Stream {
	return s.On(EventError, func(ev Event) { fn(ev.Err) })
}

func (s *Stream) OnEnd(fn func(EndReason, error)) *Stream {
	return s.On(EventEnd, func(ev Event) { fn(ev.Reason, ev.Err) })
}

// Abort cancels the request and ends the stream. It never blocks, is safe to
// call from a listener and does nothing once the stream has terminated.
//
// EventEnd is delivered by the dispatcher goroutine, so it may not have run
// yet when Abort returns. Callers that need End to have happened should
// follow Abort with Wait or a receive from Done.
func (s *Stream) Abort() {
	s.abortOnce.Do(func() {
		s.cancel()
		close(s.abortReq)
	})
}

// Done is closed after EventEnd has been delivered.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Wait blocks until the stream terminates and returns its EventEnd.
// Calling it from a listener deadlocks, since Done closes only after the
// last listener returns.
func (s *Stream) Wait() Event {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

func (s *Stream) start() {
	s.mu.Lock()
	s.state = stateActive
	s.mu.Unlock()
	go s.run()
}

func (s *Stream) aborted() bool {
	select {
	case <-s.abortReq:
		return true
	default:
		return false
	}
}

// run is the dispatcher: it owns delivery and the transition to terminated.
func (s *Stream) run() {
	defer close(s.done)

	for {
		select {
		case <-s.abortReq:
			s.terminate(Event{Kind: EventEnd, Reason: EndAborted})
			return
		case ev := <-s.events:
			if ev.Kind == EventEnd {
				s.terminate(ev)
				return
			}
			if s.aborted() {
				s.terminate(Event{Kind: EventEnd, Reason: EndAborted})
				return
			}
			s.deliver(ev)
			s.delivered <- struct{}{}
		}
	}
}

func (s *Stream) deliver(ev Event) {
	s.mu.Lock()
	listeners := s.listeners[ev.Kind]
	s.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// terminate clears the registry before delivering End so no listener can be
// registered into a registry that will never fire again.
func (s *Stream) terminate(end Event) {
	s.mu.Lock()
	s.state = stateTerminated
	s.end = end
	listeners := s.listeners[EventEnd]
	s.listeners = nil
	s.mu.Unlock()

	s.cancel()

	log.Debug().
		Str("stream_id", s.id.String()).
		Str("reason", string(end.Reason)).
		Err(end.Err).
		Msg("stream terminated")

	for _, l := range listeners {
		l(end)
	}
}

// emit hands ev to the dispatcher and waits until every listener has seen it.
// It reports false once the stream has terminated.
func (s *Stream) emit(ev Event) bool {
	select {
	case s.events <- ev:
	case <-s.done:
		return false
	}
	if ev.Kind == EventEnd {
		return true
	}

	select {
	case <-s.delivered:
		return true
	case <-s.done:
		return false
	}
}
