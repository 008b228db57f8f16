package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Union(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"messages": [
			{"role": "system", "content": "plan trips"},
			{"role": "user", "content": [{"type": "text", "text": "Rome "}, {"type": "image_url", "image_url": {"url": "x"}}, {"type": "text", "text": "to Paris"}]}
		],
		"stop": "END"
	}`), &req))

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "plan trips", req.Messages[0].Content.String())
	assert.Equal(t, "Rome to Paris", req.Messages[1].Content.String())
	assert.Equal(t, []string{"END"}, req.Stop.Val)

	b, err := json.Marshal(req.Messages[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "system", "content": "plan trips"}`, string(b))
}

func TestStop_Marshal(t *testing.T) {
	b, err := json.Marshal(Stop{Val: []string{"a", "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["a", "b"]`, string(b))

	var s Stop
	assert.Error(t, json.Unmarshal([]byte(`42`), &s))
}

func TestContent_RejectsOtherShapes(t *testing.T) {
	var msg ChatMessage
	assert.Error(t, json.Unmarshal([]byte(`{"role": "user", "content": {"text": "hi"}}`), &msg))
	assert.Error(t, json.Unmarshal([]byte(`{"role": "user", "content": 42}`), &msg))

	require.NoError(t, json.Unmarshal([]byte(`{"role": "assistant", "content": null}`), &msg))
	assert.Empty(t, msg.Content.String())
}

func TestChatRequest_WantsJSON(t *testing.T) {
	assert.False(t, (&ChatRequest{}).WantsJSON())
	assert.False(t, (&ChatRequest{ResponseFormat: &ResponseFormat{Type: "text"}}).WantsJSON())
	assert.True(t, (&ChatRequest{ResponseFormat: &ResponseFormat{Type: ResponseFormatJSON}}).WantsJSON())
}
