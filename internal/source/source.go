// Package source normalizes the two chunk delivery models, a pull-based
// reader and a push-based emitter, into a stream of decoded text chunks.
package source

import (
	"context"
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const DefaultBufferSize = 32 * 1024

// Sink receives decoded text in arrival order. A non-nil error stops the source
// and is returned from Stream unchanged.
type Sink func(text string) error

// ChunkSource delivers a response body to a Sink until it is exhausted.
//
// Stream returns nil once the source ends cleanly, ctx.Err() when the context
// is cancelled, and a wrapped transport error for any other failure.
type ChunkSource interface {
	Stream(ctx context.Context, sink Sink) error
}

// textDecoder turns byte chunks into UTF-8 text, holding back a multi-byte
// sequence split across chunks until the rest of it arrives.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{
		t:   unicode.UTF8.NewDecoder(),
		buf: make([]byte, 4096),
	}
}

func (d *textDecoder) decode(p []byte, atEOF bool) (string, error) {
	src := append(d.pending, p...)
	d.pending = nil

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, atEOF)
		out = append(out, d.buf[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return string(out), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return string(out), nil
		default:
			return string(out), err
		}
	}
}
