package source

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	subscribed   chan Handlers
	unsubscribed chan struct{}
	err          error
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{
		subscribed:   make(chan Handlers, 1),
		unsubscribed: make(chan struct{}),
	}
}

func (f *fakeEmitter) Subscribe(h Handlers) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subscribed <- h
	return func() { close(f.unsubscribed) }, nil
}

func TestPush_DeliversChunksUntilEnd(t *testing.T) {
	em := newFakeEmitter()
	go func() {
		h := <-em.subscribed
		h.Data([]byte("data:{\"status\":\"STREAMING\"}\n"))
		h.Data([]byte("data:{\"status\":\"DONE\"}\n"))
		h.End()
	}()

	var texts []string
	err := NewPush(em).Stream(context.Background(), collect(&texts))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"data:{\"status\":\"STREAMING\"}\n",
		"data:{\"status\":\"DONE\"}\n",
	}, texts)
	<-em.unsubscribed
}

func TestPush_MultiByteRuneAcrossChunks(t *testing.T) {
	full := []byte("grüße\n")
	split := bytes.IndexByte(full, 0xc3) + 1

	em := newFakeEmitter()
	go func() {
		h := <-em.subscribed
		h.Data(full[:split])
		h.Data(full[split:])
		h.End()
	}()

	var texts []string
	err := NewPush(em).Stream(context.Background(), collect(&texts))
	require.NoError(t, err)
	assert.Equal(t, []string{"gr", "üße\n"}, texts)
}

func TestPush_EmitterError(t *testing.T) {
	fault := errors.New("relay lost")
	em := newFakeEmitter()
	go func() {
		h := <-em.subscribed
		h.Data([]byte("a"))
		h.Error(fault)
		h.Data([]byte("ignored"))
	}()

	var texts []string
	err := NewPush(em).Stream(context.Background(), collect(&texts))
	assert.ErrorIs(t, err, fault)
	assert.Equal(t, "a", strings.Join(texts, ""))
}

func TestPush_CancellationUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	em := newFakeEmitter()
	handlers := make(chan Handlers, 1)
	go func() {
		h := <-em.subscribed
		handlers <- h
		cancel()
	}()

	calls := 0
	err := NewPush(em).Stream(ctx, func(string) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	<-em.unsubscribed

	h := <-handlers
	h.Data([]byte("late"))
	h.End()
	assert.Zero(t, calls)
}

func TestPush_SubscribeError(t *testing.T) {
	em := newFakeEmitter()
	em.err = errors.New("no connection")

	err := NewPush(em).Stream(context.Background(), func(string) error { return nil })
	assert.ErrorIs(t, err, em.err)
}

func TestPush_SinkErrorFinishes(t *testing.T) {
	stop := errors.New("stop")
	em := newFakeEmitter()
	go func() {
		h := <-em.subscribed
		h.Data([]byte("x"))
		h.Data([]byte("y"))
		h.End()
	}()

	calls := 0
	err := NewPush(em).Stream(context.Background(), func(string) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	<-em.unsubscribed
	assert.Equal(t, 1, calls)
}
