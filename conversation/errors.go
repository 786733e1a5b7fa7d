package conversation

import (
	"errors"
	"strings"

	"github.com/namikmesic/convostream/internal/sse"
)

type ErrorKind string

const (
	// ErrorSetup covers request construction, connect failures, non-2xx
	// responses and responses without a body.
	ErrorSetup ErrorKind = "setup"
	// ErrorTransport is a read failure mid-stream that was not caused by Abort.
	ErrorTransport ErrorKind = "transport"
	// ErrorMalformedFrame is a data: line whose body is not valid JSON.
	ErrorMalformedFrame ErrorKind = "malformed_frame"
	// ErrorRemote is an ERROR frame sent by the server.
	ErrorRemote ErrorKind = "remote"
)

// Error is the only error type listeners observe.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Payload    *Payload
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("conversation: ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// errTerminated stops the reader once the stream has already ended.
var errTerminated = errors.New("conversation: stream terminated")

func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var mf *sse.MalformedFrameError
	if errors.As(err, &mf) {
		return &Error{Kind: ErrorMalformedFrame, Err: mf}
	}
	return &Error{Kind: ErrorTransport, Err: err}
}

func remoteError(p *Payload) *Error {
	msg := p.Error
	if msg == "" {
		msg = p.Message
	}
	return &Error{Kind: ErrorRemote, Message: msg, Payload: p}
}
