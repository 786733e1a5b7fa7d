package jetstream

import (
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/namikmesic/convostream/internal/source"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Relay pumps response bodies through NATS so they reach the reader as pushed
// messages instead of pulled reads.
type Relay struct {
	nc      *nats.Conn
	bufSize int
}

func NewRelay(nc *nats.Conn, bufSize int) *Relay {
	if bufSize <= 0 {
		bufSize = source.DefaultBufferSize
	}
	return &Relay{nc: nc, bufSize: bufSize}
}

// Source returns a push-based chunk source for body.
func (r *Relay) Source(streamID uuid.UUID, body io.Reader) source.ChunkSource {
	return source.NewPush(r.Emitter(streamID.String(), body))
}

// Emitter returns an emitter that publishes body on the stream's subject once
// subscribed.
func (r *Relay) Emitter(streamID string, body io.Reader) source.Emitter {
	return &emitter{
		nc:      r.nc,
		subject: ChunkSubject(streamID),
		body:    body,
		bufSize: r.bufSize,
	}
}

type emitter struct {
	nc      *nats.Conn
	subject string
	body    io.Reader
	bufSize int
	sub     *nats.Subscription
}

func (e *emitter) Subscribe(h source.Handlers) (func(), error) {
	sub, err := e.nc.Subscribe(e.subject, func(m *nats.Msg) {
		switch m.Header.Get(KindHeader) {
		case kindData:
			h.Data(m.Data)
		case kindEnd:
			h.End()
		case kindError:
			h.Error(errors.New(string(m.Data)))
		}
	})
	if err != nil {
		return nil, err
	}
	// a slow consumer must not drop the end message
	if err := sub.SetPendingLimits(-1, -1); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	e.sub = sub
	// the subscription must reach the server before the first publish
	if err := e.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	stop := make(chan struct{})
	go e.pump(h, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				log.Debug().Err(err).Str("subject", e.subject).Msg("unsubscribe failed")
			}
		})
	}, nil
}

func (e *emitter) pump(h source.Handlers, stop <-chan struct{}) {
	buf := make([]byte, e.bufSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := e.body.Read(buf)
		if n > 0 {
			if pubErr := e.publish(kindData, buf[:n]); pubErr != nil {
				log.Error().Err(pubErr).Str("subject", e.subject).Msg("relay publish failed")
				h.Error(pubErr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = e.publish(kindEnd, nil)
			} else {
				err = e.publish(kindError, []byte(err.Error()))
			}
			if err != nil {
				log.Error().Err(err).Str("subject", e.subject).Msg("relay publish failed")
				h.Error(err)
			}
			return
		}
	}
}

func (e *emitter) publish(kind string, data []byte) error {
	msg := nats.NewMsg(e.subject)
	msg.Header.Set(KindHeader, kind)
	msg.Data = append([]byte(nil), data...)
	return e.nc.PublishMsg(msg)
}
