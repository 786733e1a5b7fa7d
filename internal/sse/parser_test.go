package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunk_SingleMessage(t *testing.T) {
	frames, err := ParseChunk("data:{\"status\":\"STREAMING\",\"text\":\"hi\"}\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)

	assert.Equal(t, StatusStreaming, frames[0].Status)
	assert.Equal(t, 1, frames[0].Index)
	assert.JSONEq(t, `{"status":"STREAMING","text":"hi"}`, string(frames[0].Payload.Raw))

	var body struct {
		Text string `json:"text"`
	}
	require.NoError(t, frames[0].Payload.Decode(&body))
	assert.Equal(t, "hi", body.Text)
}

func TestParseChunk_PreservesOrder(t *testing.T) {
	chunk := "data:{\"status\":\"STREAMING\",\"message\":\"a\"}\n" +
		"data:{\"status\":\"STREAMING\",\"message\":\"b\"}\n" +
		"data:{\"status\":\"DONE\",\"message\":\"ab\",\"conversationId\":\"c1\",\"title\":\"greeting\"}\n"

	frames, err := ParseChunk(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, "a", frames[0].Payload.Message)
	assert.Equal(t, "b", frames[1].Payload.Message)
	assert.Equal(t, StatusDone, frames[2].Status)
	assert.Equal(t, "c1", frames[2].Payload.ConversationID)
	assert.Equal(t, "greeting", frames[2].Payload.Title)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Index)
	}
}

func TestParseChunk_IgnoresBlankAndNonDataLines(t *testing.T) {
	chunk := "\n   \n: keep-alive\nevent: update\nid: 7\nretry: 100\r\n" +
		"data:{\"status\":\"ERROR\",\"error\":\"quota\"}\r\n\n"

	frames, err := ParseChunk(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusError, frames[0].Status)
	assert.Equal(t, "quota", frames[0].Payload.Error)
}

func TestParseChunk_StripsOnlyDataPrefix(t *testing.T) {
	frames, err := ParseChunk("data: {\"status\":\"STREAMING\",\"message\":\"x:y\"}\n")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "x:y", frames[0].Payload.Message)
}

func TestParseChunk_UnknownStatusSkipped(t *testing.T) {
	chunk := "data:{\"status\":\"THINKING\"}\ndata:{\"status\":\"STREAMING\"}\n"

	frames, err := ParseChunk(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusStreaming, frames[0].Status)
	assert.Equal(t, 2, frames[0].Index)
}

func TestParseChunk_DecodesUsageAndSources(t *testing.T) {
	chunk := `data:{"status":"DONE","usage":{"promptTokens":3,"completionTokens":5,"totalTokens":8},` +
		`"sources":[{"title":"Docs","url":"https://example.com/docs"}]}` + "\n"

	frames, err := ParseChunk(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	p := frames[0].Payload
	require.NotNil(t, p.Usage)
	assert.Equal(t, 8, p.Usage.TotalTokens)
	require.Len(t, p.Sources, 1)
	assert.Equal(t, "https://example.com/docs", p.Sources[0].URL)
}

func TestParseChunk_MalformedFrame(t *testing.T) {
	chunk := "data:{\"status\":\"STREAMING\"}\ndata:{not json\ndata:{\"status\":\"DONE\"}\n"

	frames, err := ParseChunk(chunk)
	require.Error(t, err)

	var mf *MalformedFrameError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, 2, mf.Index)
	assert.Equal(t, "data:{not json", mf.Line)

	require.Len(t, frames, 1)
	assert.Equal(t, StatusStreaming, frames[0].Status)
}

func TestParser_CarriesPartialLines(t *testing.T) {
	p := NewParser()

	frames, err := p.Feed("data:{\"status\":\"STREAM")
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = p.Feed("ING\",\"message\":\"héllo\"}\ndata:{\"status\":")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "héllo", frames[0].Payload.Message)
	assert.Equal(t, len("data:{\"status\":\"STREAMING\",\"message\":\"héllo\"}\n"), frames[0].RawBytes)

	frames, err = p.Feed("\"DONE\"}")
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = p.Flush()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusDone, frames[0].Status)
	assert.Equal(t, 2, frames[0].Index)
	assert.Equal(t, len("data:{\"status\":\"DONE\"}"), frames[0].RawBytes)
}

func TestParser_StopsAfterMalformedFrame(t *testing.T) {
	p := NewParser()

	_, err := p.Feed("data:oops\n")
	require.Error(t, err)

	frames, err2 := p.Feed("data:{\"status\":\"STREAMING\"}\n")
	assert.Empty(t, frames)
	assert.Equal(t, err, err2)

	_, err3 := p.Flush()
	assert.Equal(t, err, err3)
}
