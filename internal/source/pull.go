package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Pull reads chunks from an io.Reader in a loop.
type Pull struct {
	r       io.Reader
	bufSize int
}

func NewPull(r io.Reader, bufSize int) *Pull {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Pull{r: r, bufSize: bufSize}
}

func (p *Pull) Stream(ctx context.Context, sink Sink) error {
	dec := newTextDecoder()
	buf := make([]byte, p.bufSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := p.r.Read(buf)
		if n > 0 {
			text, err := dec.decode(buf[:n], false)
			if err != nil {
				return fmt.Errorf("decode chunk: %w", err)
			}
			if text != "" {
				if err := sink(text); err != nil {
					return err
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			text, err := dec.decode(nil, true)
			if err != nil {
				return fmt.Errorf("decode chunk: %w", err)
			}
			if text != "" {
				return sink(text)
			}
			return nil
		}
		// a body closed underneath us by cancellation fails with some
		// transport error; report the cancellation instead
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("read chunk: %w", readErr)
	}
}
