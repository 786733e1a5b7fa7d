package source

import (
	"context"
	"fmt"
	"sync"
)

// Handlers are the callbacks an Emitter invokes. Push serializes them, so an
// Emitter may call them from more than one goroutine.
type Handlers struct {
	Data  func(chunk []byte)
	End   func()
	Error func(err error)
}

// Emitter pushes chunks to subscribed handlers until it signals End or Error.
type Emitter interface {
	Subscribe(h Handlers) (unsubscribe func(), err error)
}

// Push adapts a callback-driven Emitter to ChunkSource.
type Push struct {
	emitter Emitter
}

func NewPush(emitter Emitter) *Push {
	return &Push{emitter: emitter}
}

func (p *Push) Stream(ctx context.Context, sink Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		finished bool
		result   = make(chan error, 1)
		dec      = newTextDecoder()
	)

	// finish must be called with mu held
	finish := func(err error) {
		finished = true
		result <- err
	}

	unsubscribe, err := p.emitter.Subscribe(Handlers{
		Data: func(chunk []byte) {
			mu.Lock()
			defer mu.Unlock()
			if finished {
				return
			}
			text, err := dec.decode(chunk, false)
			if err != nil {
				finish(fmt.Errorf("decode chunk: %w", err))
				return
			}
			if text == "" {
				return
			}
			if err := sink(text); err != nil {
				finish(err)
			}
		},
		End: func() {
			mu.Lock()
			defer mu.Unlock()
			if finished {
				return
			}
			text, err := dec.decode(nil, true)
			if err != nil {
				finish(fmt.Errorf("decode chunk: %w", err))
				return
			}
			if text != "" {
				finish(sink(text))
				return
			}
			finish(nil)
		},
		Error: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			if finished {
				return
			}
			finish(fmt.Errorf("emitter: %w", err))
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer unsubscribe()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		mu.Lock()
		finished = true
		mu.Unlock()
		return ctx.Err()
	}
}
