package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StreamRecord is written when a stream starts.
type StreamRecord struct {
	ID             uuid.UUID
	Timestamp      time.Time
	ApplicationID  string
	ConversationID string
	MessageBytes   int
}

// StreamResult is written when a stream ends.
type StreamResult struct {
	ID               uuid.UUID
	Timestamp        time.Time
	ConversationID   string
	Reason           string
	ErrorMessage     string
	FrameCount       int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// FrameRecord is one frame of a recorded stream.
type FrameRecord struct {
	Index    int
	Kind     string
	DataJSON []byte
	RawBytes int
}

func InsertStreamJob(r *StreamRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO streams (id, ts, application_id, conversation_id, message_bytes)
			VALUES ($1, $2, $3, $4, $5)`,
			r.ID, r.Timestamp, nilIfEmpty(r.ApplicationID), nilIfEmpty(r.ConversationID), r.MessageBytes,
		)
		return err
	})
}

func FinishStreamJob(r *StreamResult) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			UPDATE streams SET
				conversation_id = COALESCE($1, conversation_id),
				reason = $2,
				error_message = $3,
				frame_count = $4,
				prompt_tokens = $5,
				completion_tokens = $6,
				total_tokens = $7,
				duration_ms = $8
			WHERE id = $9 AND ts = $10`,
			nilIfEmpty(r.ConversationID), r.Reason, nilIfEmpty(r.ErrorMessage), r.FrameCount,
			r.PromptTokens, r.CompletionTokens, r.TotalTokens, int(r.Duration.Milliseconds()),
			r.ID, r.Timestamp,
		)
		return err
	})
}

// InsertFramesJob copies a stream's frames in one round trip.
func InsertFramesJob(streamID uuid.UUID, ts time.Time, frames []FrameRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		rows := make([][]any, len(frames))
		for i, f := range frames {
			rows[i] = []any{ts, streamID, f.Index, f.Kind, nilIfEmptyBytes(f.DataJSON), f.RawBytes}
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"stream_frames"},
			[]string{"ts", "stream_id", "frame_index", "kind", "data_json", "raw_bytes"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmptyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
