package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/convostream/conversation"
)

// Store receives the records a Recorder produces.
type Store interface {
	InsertStream(r *StreamRecord)
	InsertFrames(streamID uuid.UUID, ts time.Time, frames []FrameRecord)
	FinishStream(r *StreamResult)
}

// BatchStore queues records on a BatchWriter.
type BatchStore struct {
	w *BatchWriter
}

func NewBatchStore(w *BatchWriter) *BatchStore {
	return &BatchStore{w: w}
}

func (s *BatchStore) InsertStream(r *StreamRecord) { s.w.Enqueue(InsertStreamJob(r)) }

func (s *BatchStore) InsertFrames(streamID uuid.UUID, ts time.Time, frames []FrameRecord) {
	s.w.Enqueue(InsertFramesJob(streamID, ts, frames))
}

func (s *BatchStore) FinishStream(r *StreamResult) { s.w.Enqueue(FinishStreamJob(r)) }

// Recorder persists conversation streams and their frames.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Track returns a stream option that records the stream started for req.
func (r *Recorder) Track(req conversation.Request) conversation.StreamOption {
	return func(s *conversation.Stream) {
		t := &tracker{
			store:   r.store,
			now:     r.now,
			started: r.now(),
			id:      s.ID(),
			convID:  req.ConversationID,
		}
		r.store.InsertStream(&StreamRecord{
			ID:             t.id,
			Timestamp:      t.started,
			ApplicationID:  req.ApplicationID,
			ConversationID: req.ConversationID,
			MessageBytes:   len(req.Message),
		})

		s.On(conversation.EventMessage, t.frame).
			On(conversation.EventComplete, t.frame).
			On(conversation.EventError, t.frame).
			On(conversation.EventEnd, t.end)
	}
}

// tracker accumulates one stream. Listeners run sequentially, so it needs no lock.
type tracker struct {
	store   Store
	now     func() time.Time
	started time.Time
	id      uuid.UUID
	convID  string
	frames  []FrameRecord
	usage   conversation.Usage
}

func (t *tracker) frame(ev conversation.Event) {
	if ev.Payload == nil {
		return
	}
	if ev.Payload.ConversationID != "" {
		t.convID = ev.Payload.ConversationID
	}
	if ev.Payload.Usage != nil {
		t.usage = *ev.Payload.Usage
	}
	t.frames = append(t.frames, FrameRecord{
		Index:    ev.Index,
		Kind:     ev.Kind.String(),
		DataJSON: ev.Payload.Raw,
		RawBytes: ev.RawBytes,
	})
}

func (t *tracker) end(ev conversation.Event) {
	if len(t.frames) > 0 {
		t.store.InsertFrames(t.id, t.started, t.frames)
	}

	res := &StreamResult{
		ID:               t.id,
		Timestamp:        t.started,
		ConversationID:   t.convID,
		Reason:           string(ev.Reason),
		FrameCount:       len(t.frames),
		PromptTokens:     t.usage.PromptTokens,
		CompletionTokens: t.usage.CompletionTokens,
		TotalTokens:      t.usage.TotalTokens,
		Duration:         t.now().Sub(t.started),
	}
	if ev.Err != nil {
		res.ErrorMessage = ev.Err.Error()
	}
	t.store.FinishStream(res)
}
