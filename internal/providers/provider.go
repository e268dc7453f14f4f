// Package providers holds the reasoning provider contract: given a
// conversation history and tool descriptors, produce a stream of thinking
// tokens, response tokens, and tool-call requests.
package providers

import "context"

// Stream event kinds emitted during a model call.
type EventType int

const (
	// EventThinkingDelta carries a chunk of deliberation text.
	EventThinkingDelta EventType = iota
	// EventTextDelta carries a chunk of final response text.
	EventTextDelta
	// EventToolCallStarted fires when the model begins emitting a tool call.
	EventToolCallStarted
)

// StreamEvent is one incremental event from a model call.
type StreamEvent struct {
	Type EventType
	Text string
}

// EmitFunc receives stream events in generation order.
type EmitFunc func(ev StreamEvent)

// ToolCallRequest is one tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ChatRequest is a single model call.
type ChatRequest struct {
	Messages    []map[string]any
	Tools       []map[string]any
	Model       string
	MaxTokens   int
	Temperature float64

	// Thinking asks the gateway to enable extended deliberation; the budget
	// caps it in tokens when set.
	Thinking       bool
	ThinkingBudget int
}

// LLMResponse is the final accumulated result of a model call.
type LLMResponse struct {
	Content          *string
	ReasoningContent *string
	ToolCalls        []ToolCallRequest
	FinishReason     string // "stop", "tool_calls", "length"
	Usage            map[string]int
}

// HasToolCalls reports whether the model requested tool execution.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// StreamProvider is the reasoning collaborator. ChatStream blocks until the
// model finishes the call, invoking emit for each token along the way.
type StreamProvider interface {
	ChatStream(ctx context.Context, req ChatRequest, emit EmitFunc) (*LLMResponse, error)
	DefaultModel() string
}

// Completer makes a single non-streaming text call. Used by background
// maintenance (memory summarization), not the foreground agent.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
