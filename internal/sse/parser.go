package sse

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const dataPrefix = "data:"

// Parser maintains state across chunks to handle partial SSE lines.
type Parser struct {
	pending string
	index   int
	err     error
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk parses a self-contained chunk of SSE text.
func ParseChunk(chunk string) ([]Frame, error) {
	return NewParser().parse(chunk)
}

// Feed processes decoded text from the stream and yields complete frames.
// A trailing line without a newline is held until the next Feed or Flush.
// After a malformed frame every call returns the same error.
func (p *Parser) Feed(chunk string) ([]Frame, error) {
	if p.err != nil {
		return nil, p.err
	}

	data := p.pending + chunk
	idx := strings.LastIndexByte(data, '\n')
	if idx == -1 {
		p.pending = data
		return nil, nil
	}
	p.pending = data[idx+1:]
	return p.parse(data[:idx+1])
}

// Flush parses whatever is left once the source is exhausted.
func (p *Parser) Flush() ([]Frame, error) {
	if p.err != nil {
		return nil, p.err
	}
	rest := p.pending
	p.pending = ""
	return p.parse(rest)
}

func (p *Parser) parse(text string) ([]Frame, error) {
	var frames []Frame
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		size := len(line)
		if i < len(lines)-1 {
			size++
		}
		frame, ok, err := p.parseLine(line, size)
		if err != nil {
			p.err = err
			return frames, err
		}
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

func (p *Parser) parseLine(line string, size int) (Frame, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Frame{}, false, nil
	}

	// event:, id:, retry: and comments carry nothing we use
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return Frame{}, false, nil
	}

	p.index++
	body := trimmed[len(dataPrefix):]

	var payload Payload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Frame{}, false, &MalformedFrameError{Index: p.index, Line: trimmed, Err: err}
	}

	if !payload.Status.Known() {
		log.Debug().
			Int("frame", p.index).
			Str("status", string(payload.Status)).
			Msg("skipping frame with unknown status")
		return Frame{}, false, nil
	}

	return Frame{
		Index:    p.index,
		Status:   payload.Status,
		Payload:  payload,
		RawBytes: size,
	}, true, nil
}
