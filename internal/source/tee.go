package source

import (
	"io"
)

// TeeReadCloser copies everything read from a response body to a side writer,
// e.g. a dump file of the raw event stream. Closing it closes only the body.
type TeeReadCloser struct {
	reader io.Reader
	body   io.ReadCloser
}

// TeeBody wraps body so every byte read is also written to w. A failing
// write surfaces as a read error.
func TeeBody(body io.ReadCloser, w io.Writer) *TeeReadCloser {
	return &TeeReadCloser{
		reader: io.TeeReader(body, w),
		body:   body,
	}
}

func (t *TeeReadCloser) Read(p []byte) (int, error) {
	return t.reader.Read(p)
}

func (t *TeeReadCloser) Close() error {
	return t.body.Close()
}
