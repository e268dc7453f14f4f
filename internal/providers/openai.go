package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider is an OpenAI-compatible streaming chat client. Reasoning-capable
// gateways surface deliberation as `reasoning_content` deltas, which map to
// thinking events.
type Provider struct {
	APIKey     string
	APIBase    string
	Model      string
	HTTPClient *http.Client
}

// NewProvider creates a streaming provider.
func NewProvider(apiKey, apiBase, defaultModel string) *Provider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if defaultModel == "" {
		defaultModel = "claude-haiku-4-5"
	}
	return &Provider{
		APIKey:     apiKey,
		APIBase:    apiBase,
		Model:      defaultModel,
		HTTPClient: &http.Client{Timeout: 300 * time.Second},
	}
}

// DefaultModel satisfies StreamProvider.
func (p *Provider) DefaultModel() string { return p.Model }

// chunk mirrors one SSE delta frame of the chat completions stream.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// toolCallAccum accumulates one tool call across delta frames.
type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

// ChatStream performs one streaming model call. emit receives thinking and
// response deltas in generation order; the accumulated response is returned
// once the stream ends.
func (p *Provider) ChatStream(ctx context.Context, req ChatRequest, emit EmitFunc) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = 4096
	}

	body := map[string]any{
		"model":       model,
		"messages":    req.Messages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"stream":      true,
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}
	if req.Thinking {
		thinking := map[string]any{"type": "enabled"}
		if req.ThinkingBudget > 0 {
			thinking["budget_tokens"] = req.ThinkingBudget
		}
		body["thinking"] = thinking
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.APIBase, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return parseStream(resp.Body, emit)
}

// parseStream consumes the SSE body and accumulates the final response.
func parseStream(body io.Reader, emit EmitFunc) (*LLMResponse, error) {
	var (
		content      strings.Builder
		reasoning    strings.Builder
		finishReason string
		usage        = map[string]int{}
		toolCalls    []*toolCallAccum
	)
	if emit == nil {
		emit = func(StreamEvent) {}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ck chunk
		if err := json.Unmarshal([]byte(payload), &ck); err != nil {
			return nil, fmt.Errorf("parse stream chunk: %w", err)
		}
		if ck.Usage != nil {
			usage["prompt_tokens"] = ck.Usage.PromptTokens
			usage["completion_tokens"] = ck.Usage.CompletionTokens
			usage["total_tokens"] = ck.Usage.TotalTokens
		}
		if len(ck.Choices) == 0 {
			continue
		}
		choice := ck.Choices[0]

		if choice.Delta.ReasoningContent != "" {
			reasoning.WriteString(choice.Delta.ReasoningContent)
			emit(StreamEvent{Type: EventThinkingDelta, Text: choice.Delta.ReasoningContent})
		}
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			emit(StreamEvent{Type: EventTextDelta, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			for tc.Index >= len(toolCalls) {
				toolCalls = append(toolCalls, &toolCallAccum{})
			}
			acc := toolCalls[tc.Index]
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				if acc.name == "" {
					emit(StreamEvent{Type: EventToolCallStarted, Text: tc.Function.Name})
				}
				acc.name = tc.Function.Name
			}
			acc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	result := &LLMResponse{
		FinishReason: finishReason,
		Usage:        usage,
	}
	if result.FinishReason == "" {
		result.FinishReason = "stop"
	}
	if content.Len() > 0 {
		s := content.String()
		result.Content = &s
	}
	if reasoning.Len() > 0 {
		s := reasoning.String()
		result.ReasoningContent = &s
	}
	for _, acc := range toolCalls {
		var args map[string]any
		if acc.args.Len() > 0 {
			if err := json.Unmarshal([]byte(acc.args.String()), &args); err != nil {
				return nil, fmt.Errorf("parse tool arguments for %s: %w", acc.name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:        acc.id,
			Name:      acc.name,
			Arguments: args,
		})
	}
	if len(result.ToolCalls) > 0 && result.FinishReason == "stop" {
		result.FinishReason = "tool_calls"
	}
	return result, nil
}

// Complete satisfies Completer with a single non-streaming call.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.ChatStream(ctx, ChatRequest{
		Messages: []map[string]any{{"role": "user", "content": prompt}},
	}, nil)
	if err != nil {
		return "", err
	}
	if resp.Content == nil {
		return "", fmt.Errorf("no content in completion")
	}
	return *resp.Content, nil
}
