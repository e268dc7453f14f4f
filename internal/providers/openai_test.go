package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamAccumulatesTextAndThinking(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"reasoning_content":"Let me "}}]}`,
		`data: {"choices":[{"delta":{"reasoning_content":"think."}}]}`,
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":" there"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
		"",
	}, "\n\n")

	var events []StreamEvent
	resp, err := parseStream(strings.NewReader(stream), func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Content)
	assert.Equal(t, "Hello there", *resp.Content)
	require.NotNil(t, resp.ReasoningContent)
	assert.Equal(t, "Let me think.", *resp.ReasoningContent)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.False(t, resp.HasToolCalls())

	// Thinking deltas precede response deltas, in generation order.
	require.Len(t, events, 4)
	assert.Equal(t, EventThinkingDelta, events[0].Type)
	assert.Equal(t, EventThinkingDelta, events[1].Type)
	assert.Equal(t, EventTextDelta, events[2].Type)
	assert.Equal(t, " there", events[3].Text)
}

func TestParseStreamAssemblesToolCalls(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"add_cards_to_canvas","arguments":"{\"cards\""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":[{\"title\":\"A\"}]}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
		"",
	}, "\n\n")

	var started []string
	resp, err := parseStream(strings.NewReader(stream), func(ev StreamEvent) {
		if ev.Type == EventToolCallStarted {
			started = append(started, ev.Text)
		}
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	tc := resp.ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "add_cards_to_canvas", tc.Name)
	cards, ok := tc.Arguments["cards"].([]any)
	require.True(t, ok)
	require.Len(t, cards, 1)

	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, []string{"add_cards_to_canvas"}, started)
}

func TestParseStreamParallelToolCalls(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c0","function":{"name":"get_board_state","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"c1","function":{"name":"set_canvas_zoom","arguments":"{\"zoom\":1.5}"}}]}}]}`,
		`data: [DONE]`,
		"",
	}, "\n\n")

	resp, err := parseStream(strings.NewReader(stream), nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "get_board_state", resp.ToolCalls[0].Name)
	assert.Equal(t, "set_canvas_zoom", resp.ToolCalls[1].Name)
	assert.Equal(t, 1.5, resp.ToolCalls[1].Arguments["zoom"])
	// finish_reason was never sent; tool calls imply it.
	assert.Equal(t, "tool_calls", resp.FinishReason)
}

func TestParseStreamCapturesUsage(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
		`data: [DONE]`,
		"",
	}, "\n\n")

	resp, err := parseStream(strings.NewReader(stream), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Usage["prompt_tokens"])
	assert.Equal(t, 12, resp.Usage["total_tokens"])
}

func TestParseStreamRejectsMalformedChunk(t *testing.T) {
	_, err := parseStream(strings.NewReader("data: {not json}\n"), nil)
	assert.Error(t, err)
}

func TestParseStreamRejectsBadToolArguments(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c0","function":{"name":"get_board_state","arguments":"{broken"}}]}}]}` + "\n"
	_, err := parseStream(strings.NewReader(stream), nil)
	assert.Error(t, err)
}

// captureServer records the request body of one chat completion call and
// answers with a minimal single-delta stream.
func captureServer(t *testing.T, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`+"\n\ndata: [DONE]\n\n")
	}))
}

func TestChatStreamSendsThinkingBlock(t *testing.T) {
	var captured map[string]any
	srv := captureServer(t, &captured)
	defer srv.Close()

	p := NewProvider("key", srv.URL, "test-model")
	_, err := p.ChatStream(context.Background(), ChatRequest{
		Messages:       []map[string]any{{"role": "user", "content": "hi"}},
		Thinking:       true,
		ThinkingBudget: 2048,
	}, nil)
	require.NoError(t, err)

	thinking, ok := captured["thinking"].(map[string]any)
	require.True(t, ok, "request body has no thinking block")
	assert.Equal(t, "enabled", thinking["type"])
	assert.Equal(t, float64(2048), thinking["budget_tokens"])
}

func TestChatStreamOmitsThinkingWhenDisabled(t *testing.T) {
	var captured map[string]any
	srv := captureServer(t, &captured)
	defer srv.Close()

	p := NewProvider("key", srv.URL, "test-model")
	_, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
	}, nil)
	require.NoError(t, err)

	_, ok := captured["thinking"]
	assert.False(t, ok, "thinking block present despite being disabled")
}
