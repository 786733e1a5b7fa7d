package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/namikmesic/convostream/internal/source"
	"github.com/namikmesic/convostream/internal/sse"
	"github.com/rs/zerolog/log"
)

const maxErrorBodyBytes = 4 << 10

// launch runs one stream to completion and turns its outcome into the
// terminal events. Nothing it does can fail past this point.
func (c *Client) launch(ctx context.Context, s *Stream, req Request) {
	start := time.Now()
	err := c.run(ctx, s, req)

	switch {
	case err == nil:
		s.emit(Event{Kind: EventEnd, Reason: EndCompleted})
	case errors.Is(err, errTerminated):
		// End was already delivered
	case errors.Is(err, context.Canceled):
		s.emit(Event{Kind: EventEnd, Reason: EndAborted})
	default:
		e := classify(err)
		log.Debug().Err(e).Str("stream_id", s.id.String()).Msg("stream failed")
		if s.emit(Event{Kind: EventError, Err: e}) {
			s.emit(Event{Kind: EventEnd, Reason: EndFailed, Err: e})
		}
	}

	log.Debug().
		Str("stream_id", s.id.String()).
		Dur("duration", time.Since(start)).
		Msg("stream launcher finished")
}

func (c *Client) run(ctx context.Context, s *Stream, req Request) error {
	resp, err := c.open(ctx, s, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if s.dump != nil {
		body = source.TeeBody(resp.Body, s.dump)
	}

	parser := sse.NewParser()
	err = c.delivery.Source(s.id, body).Stream(ctx, func(text string) error {
		frames, perr := parser.Feed(text)
		if !publish(s, frames) {
			return errTerminated
		}
		return perr
	})
	if err != nil {
		return err
	}

	frames, perr := parser.Flush()
	if !publish(s, frames) {
		return errTerminated
	}
	return perr
}

func (c *Client) open(ctx context.Context, s *Stream, req Request) (*http.Response, error) {
	req.Stream = true
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: ErrorSetup, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: ErrorSetup, Message: "build request", Err: err}
	}
	httpReq.Header = requestHeaders(c.apiKey, c.userAgent)

	log.Debug().
		Str("stream_id", s.id.String()).
		Str("url", c.endpoint).
		Interface("headers", redactHeaders(httpReq.Header)).
		Msg("opening conversation stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, &Error{Kind: ErrorSetup, Message: "send request", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		msg := fmt.Sprintf("unexpected status %s", resp.Status)
		if trimmed := strings.TrimSpace(string(excerpt)); trimmed != "" {
			msg += ": " + trimmed
		}
		return nil, &Error{Kind: ErrorSetup, StatusCode: resp.StatusCode, Message: msg}
	}

	if resp.Body == nil || resp.Body == http.NoBody || resp.ContentLength == 0 {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &Error{Kind: ErrorSetup, StatusCode: resp.StatusCode, Message: "empty response body"}
	}

	return resp, nil
}

// publish delivers frames in order and reports false once the stream has terminated.
func publish(s *Stream, frames []sse.Frame) bool {
	for _, f := range frames {
		if !s.emit(frameEvent(f)) {
			return false
		}
	}
	return true
}

func frameEvent(f sse.Frame) Event {
	p := f.Payload
	ev := Event{Kind: EventMessage, Index: f.Index, RawBytes: f.RawBytes, Payload: &p}
	switch f.Status {
	case sse.StatusDone:
		ev.Kind = EventComplete
	case sse.StatusError:
		ev.Kind = EventError
		ev.Err = remoteError(&p)
	}
	return ev
}
