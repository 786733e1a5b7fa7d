package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/namikmesic/convostream/conversation"
	"github.com/namikmesic/convostream/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerWriter_Fragments(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{"plain", []string{"Hel", "lo"}, "Hello\n"},
		{"repeated fragments", []string{"ha", "ha", "hah"}, "hahahah\n"},
		{"fragment extends previous", []string{"a", "an"}, "aan\n"},
		{"empty fragment", []string{"a", "", "b"}, "ab\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			w := newAnswerWriter(&b, config.MessageModeDelta)
			for _, f := range tt.fragments {
				w.write(f)
			}
			w.finish(&conversation.Payload{})
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestAnswerWriter_CumulativeMessages(t *testing.T) {
	var b strings.Builder
	w := newAnswerWriter(&b, config.MessageModeCumulative)

	w.write("ha")
	w.write("haha")
	w.write("hahah")
	w.finish(&conversation.Payload{Message: "hahah", ConversationID: "c-1"})

	assert.Equal(t, "hahah\n", b.String())
}

func TestAnswerWriter_CumulativeRewrite(t *testing.T) {
	var b strings.Builder
	w := newAnswerWriter(&b, config.MessageModeCumulative)

	w.write("Hello")
	w.write("Hi there")
	w.write("Hi there!")

	assert.Equal(t, "Hello\nHi there!", b.String())
}

func TestRun_RejectsUnknownMessageMode(t *testing.T) {
	t.Setenv("CONVO_MESSAGE_MODE", "")
	os.Unsetenv("CONVO_MESSAGE_MODE")

	err := newCommand().Run(context.Background(), []string{"convostream", "--message-mode", "guess", "hi"})
	assert.ErrorContains(t, err, "message mode")
}

func TestNewDelivery_DefaultsToPull(t *testing.T) {
	d, closeFn, err := newDelivery(&config.Config{BufferSize: 64}, false)
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, conversation.PullDelivery{BufferSize: 64}, d)
}

func TestNewRecording_RequiresDatabase(t *testing.T) {
	_, _, err := newRecording(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestRun_RequiresMessage(t *testing.T) {
	err := newCommand().Run(context.Background(), []string{"convostream"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is required")
}
