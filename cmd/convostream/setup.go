package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/namikmesic/convostream/conversation"
	"github.com/namikmesic/convostream/internal/config"
	"github.com/namikmesic/convostream/internal/jetstream"
	"github.com/namikmesic/convostream/internal/storage"
	"github.com/rs/zerolog/log"
)

// newDelivery picks pull delivery, or push delivery through an embedded NATS
// relay when relay is set.
func newDelivery(cfg *config.Config, relay bool) (conversation.Delivery, func(), error) {
	if !relay {
		return conversation.PullDelivery{BufferSize: cfg.BufferSize}, func() {}, nil
	}

	srv, err := jetstream.NewServer(cfg.RelayStoreDir)
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded NATS: %w", err)
	}
	nc, err := srv.Connect()
	if err != nil {
		srv.Shutdown()
		return nil, nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		srv.Shutdown()
		return nil, nil, fmt.Errorf("get JetStream context: %w", err)
	}
	if err := jetstream.EnsureStream(js, cfg.RelayMaxAge); err != nil {
		nc.Close()
		srv.Shutdown()
		return nil, nil, fmt.Errorf("create JetStream stream: %w", err)
	}

	log.Debug().Str("store_dir", cfg.RelayStoreDir).Msg("relay delivery enabled")
	return jetstream.NewRelay(nc, cfg.BufferSize), func() {
		if err := nc.Drain(); err != nil {
			log.Debug().Err(err).Msg("drain NATS connection")
		}
		srv.Shutdown()
	}, nil
}

func newRecording(ctx context.Context, cfg *config.Config) (func(conversation.Request) conversation.StreamOption, func(), error) {
	if !cfg.RecordingEnabled() {
		return nil, nil, fmt.Errorf("recording requires DATABASE_URL")
	}

	pool, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	writer := storage.NewBatchWriter(pool, cfg.WriterBufferSize, cfg.WriterBatchSize, cfg.WriterFlush)
	recorder := storage.NewRecorder(storage.NewBatchStore(writer))

	return recorder.Track, func() {
		writer.Shutdown()
		pool.Close()
	}, nil
}

// answerWriter prints message text as it arrives. In delta mode every message
// is new text. In cumulative mode every message is the whole answer so far and
// only the part not yet printed is written.
type answerWriter struct {
	w          io.Writer
	cumulative bool
	printed    string
}

func newAnswerWriter(w io.Writer, mode string) *answerWriter {
	return &answerWriter{w: w, cumulative: mode == config.MessageModeCumulative}
}

func (a *answerWriter) write(text string) {
	if text == "" {
		return
	}
	if !a.cumulative {
		io.WriteString(a.w, text)
		return
	}

	if strings.HasPrefix(text, a.printed) {
		io.WriteString(a.w, text[len(a.printed):])
	} else {
		// the answer was rewritten; start it again on a fresh line
		io.WriteString(a.w, "\n"+text)
	}
	a.printed = text
}

func (a *answerWriter) finish(p *conversation.Payload) {
	a.write(p.Message)
	io.WriteString(a.w, "\n")

	ev := log.Info()
	if p.ConversationID != "" {
		ev = ev.Str("conversation_id", p.ConversationID)
	}
	if p.Title != "" {
		ev = ev.Str("title", p.Title)
	}
	if p.Usage != nil {
		ev = ev.Int("total_tokens", p.Usage.TotalTokens)
	}
	for _, src := range p.Sources {
		log.Info().Str("title", src.Title).Str("url", src.URL).Msg("source")
	}
	ev.Msg("answer complete")
}
