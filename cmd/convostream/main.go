package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/namikmesic/convostream/conversation"
	"github.com/namikmesic/convostream/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "convostream",
		Usage:     "Stream one conversation turn and print the answer as it arrives",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "conversation-id", Aliases: []string{"c"}, Usage: "Continue an existing conversation"},
			&cli.StringFlag{Name: "app", Usage: "Application id (overrides CONVO_APPLICATION_ID)"},
			&cli.StringFlag{Name: "dump", Usage: "Write the raw event stream to `FILE`"},
			&cli.BoolFlag{Name: "relay", Usage: "Deliver chunks through the embedded NATS relay"},
			&cli.BoolFlag{Name: "record", Usage: "Persist the stream to DATABASE_URL"},
			&cli.StringFlag{Name: "message-mode", Usage: "How the server sends message text: delta or cumulative (overrides CONVO_MESSAGE_MODE)"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	message := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if message == "" {
		return errors.New("a message is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	delivery, closeDelivery, err := newDelivery(cfg, cmd.Bool("relay") || cfg.RelayEnabled)
	if err != nil {
		return err
	}
	defer closeDelivery()

	client, err := conversation.NewClient(cfg.BaseURL, cfg.APIKey,
		conversation.WithDelivery(delivery),
		conversation.WithUserAgent("convostream"),
	)
	if err != nil {
		return err
	}

	appID := cmd.String("app")
	if appID == "" {
		appID = cfg.ApplicationID
	}
	req := conversation.Request{
		ConversationID: cmd.String("conversation-id"),
		Message:        message,
		ApplicationID:  appID,
	}

	mode := cfg.MessageMode
	if m := cmd.String("message-mode"); m != "" {
		if err := config.ValidateMessageMode(m); err != nil {
			return err
		}
		mode = m
	}
	out := newAnswerWriter(os.Stdout, mode)
	opts := []conversation.StreamOption{
		conversation.WithListener(conversation.EventMessage, func(ev conversation.Event) {
			out.write(ev.Payload.Message)
		}),
		conversation.WithListener(conversation.EventComplete, func(ev conversation.Event) {
			out.finish(ev.Payload)
		}),
		conversation.WithListener(conversation.EventError, func(ev conversation.Event) {
			log.Error().Err(ev.Err).Msg("stream error")
		}),
	}

	if cmd.Bool("record") {
		track, closeRecording, err := newRecording(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRecording()
		opts = append(opts, track(req))
	}

	if path := cmd.String("dump"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create dump file: %w", err)
		}
		defer f.Close()
		opts = append(opts, conversation.WithDump(f))
	}

	s := client.StreamConversation(context.Background(), req, opts...)
	log.Debug().Str("stream_id", s.ID().String()).Msg("stream started")

	go func() {
		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupted, aborting stream")
			s.Abort()
		case <-s.Done():
		}
	}()

	end := s.Wait()
	log.Info().
		Str("stream_id", s.ID().String()).
		Str("reason", string(end.Reason)).
		Msg("stream finished")

	switch end.Reason {
	case conversation.EndFailed:
		return cli.Exit(end.Err.Error(), 1)
	case conversation.EndAborted:
		return cli.Exit("aborted", 130)
	}
	return nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
