package sse

import (
	"encoding/json"
	"fmt"
)

// Status is the application-level state carried by every data line.
type Status string

const (
	StatusStreaming Status = "STREAMING"
	StatusDone      Status = "DONE"
	StatusError     Status = "ERROR"
)

func (s Status) Known() bool {
	switch s {
	case StatusStreaming, StatusDone, StatusError:
		return true
	}
	return false
}

// Frame is one parsed data: line.
type Frame struct {
	Index    int // ordinal of the data line within the stream
	Status   Status
	Payload  Payload
	RawBytes int // byte length of the line, including its newline when it had one
}

// Payload is the JSON body of a frame. Common fields are decoded, the rest stays in Raw.
type Payload struct {
	Status         Status   `json:"status"`
	ConversationID string   `json:"conversationId,omitempty"`
	Message        string   `json:"message,omitempty"`
	Title          string   `json:"title,omitempty"`
	Error          string   `json:"error,omitempty"`
	Usage          *Usage   `json:"usage,omitempty"`
	Sources        []Source `json:"sources,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Source is a citation attached to a completed answer.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	type plain Payload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Payload(v)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// Decode unmarshals the raw payload into v.
func (p Payload) Decode(v any) error {
	if len(p.Raw) == 0 {
		return fmt.Errorf("decode payload: empty")
	}
	return json.Unmarshal(p.Raw, v)
}

// MalformedFrameError reports a data: line whose body is not valid JSON.
type MalformedFrameError struct {
	Index int
	Line  string
	Err   error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame %d: %v", e.Index, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }
