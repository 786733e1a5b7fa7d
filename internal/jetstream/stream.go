package jetstream

import (
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "CONVOSTREAM"
	SubjectPrefix = "convostream.chunk."

	// KindHeader tells subscribers whether a message carries data or ends the stream.
	KindHeader = "Convostream-Kind"

	kindData  = "data"
	kindEnd   = "end"
	kindError = "error"
)

// EnsureStream makes relayed chunks durable for maxAge so they can be inspected
// after the live subscriber is gone.
func EnsureStream(js nats.JetStreamContext, maxAge time.Duration) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   nats.FileStorage,
		MaxAge:    maxAge,
		Retention: nats.LimitsPolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

func ChunkSubject(streamID string) string {
	return SubjectPrefix + streamID
}
