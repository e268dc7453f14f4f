// Package agent runs one inference cycle: prepare context, call the model in
// a bounded tool-calling loop, stream progress to the workspace, persist the
// exchange.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/memory"
	"github.com/easelhq/easel/internal/prompt"
	"github.com/easelhq/easel/internal/providers"
	"github.com/easelhq/easel/internal/signals"
	"github.com/easelhq/easel/internal/store"
	"github.com/easelhq/easel/internal/tools"
)

// Trigger sources. Which source raised the cycle decides the flush indicator
// and the reported input mode.
const (
	SourceAudio    = "audio_transcript"
	SourceChat     = "chat_message"
	SourceAppEvent = "internal_app_event"
)

// Config holds engine settings.
type Config struct {
	Model          string
	MaxTurns       int
	MaxTokens      int
	Temperature    float64
	Thinking       bool
	ThinkingBudget int
	HistoryWindow  time.Duration
}

// DefaultConfig returns engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxTurns:      20,
		MaxTokens:     4096,
		HistoryWindow: 5 * time.Minute,
	}
}

// Engine is the inference engine.
type Engine struct {
	provider providers.StreamProvider
	registry *tools.Registry
	streamer *board.Streamer
	caller   tools.BoardCaller
	st       *store.Store
	mem      *memory.Manager
	hub      *signals.Hub
	persona  prompt.Persona
	cfg      Config
}

// NewEngine creates an engine.
func NewEngine(provider providers.StreamProvider, registry *tools.Registry, streamer *board.Streamer,
	caller tools.BoardCaller, st *store.Store, mem *memory.Manager, hub *signals.Hub,
	persona prompt.Persona, cfg Config) *Engine {

	if cfg.Model == "" {
		cfg.Model = provider.DefaultModel()
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 20
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = 5 * time.Minute
	}
	return &Engine{
		provider: provider,
		registry: registry,
		streamer: streamer,
		caller:   caller,
		st:       st,
		mem:      mem,
		hub:      hub,
		persona:  persona,
		cfg:      cfg,
	}
}

// RunCycle executes one full inference cycle for a merged trigger text. It
// returns an error only for terminal failures; the error has already been
// surfaced to the UI when it returns.
func (e *Engine) RunCycle(ctx context.Context, source, text string) error {
	switch source {
	case SourceAudio:
		e.streamer.UpdateUserTranscript(text)
		e.streamer.NotifyTranscriptsFlushed()
	case SourceChat:
		e.streamer.NotifyChatFlushed()
	}
	e.streamer.ShowAgentThinking()

	if err := e.st.SaveUserMessage(ctx, text, source); err != nil {
		log.Printf("[Agent] save user message failed: %v", err)
	}

	messages, err := e.buildMessages(ctx, source, text)
	if err != nil {
		e.streamer.AgentError(err.Error())
		return err
	}

	final, err := e.runTurnLoop(ctx, messages)
	if err != nil {
		e.streamer.AgentError(err.Error())
		return err
	}

	if err := e.st.SaveAssistantMessage(ctx, final); err != nil {
		log.Printf("[Agent] save assistant message failed: %v", err)
	}
	e.streamer.EndAgentMessage()
	if e.hub != nil {
		e.hub.NotifyInferenceCompleted()
	}
	return nil
}

// buildMessages assembles the system prompt, recent history, and the
// triggering user message.
func (e *Engine) buildMessages(ctx context.Context, source, text string) ([]map[string]any, error) {
	system := prompt.Build(e.persona) + "\n\n" + prompt.StateSnapshot(
		inputMode(source), e.boardStateJSON(ctx), e.mem.Summary())

	messages := []map[string]any{{"role": "system", "content": system}}

	history, err := e.st.RecentMessages(ctx, e.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for _, m := range history {
		// Tool exchanges are not replayed; their call IDs belong to past
		// cycles and the model cannot reference them.
		if m.Role != store.RoleUser && m.Role != store.RoleAssistant {
			continue
		}
		if m.Content == "" {
			continue
		}
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}

	// The triggering message was just saved, so it is the tail of history.
	// Append it explicitly only if the window somehow missed it. The tail
	// must be the user turn itself; an assistant reply that happens to echo
	// the trigger text does not count.
	if n := len(messages); n == 1 || messages[n-1]["role"] != "user" || messages[n-1]["content"] != text {
		messages = append(messages, map[string]any{"role": "user", "content": text})
	}
	return messages, nil
}

// boardStateJSON queries the workspace for its current state. A board that
// does not answer degrades to an empty snapshot rather than failing the
// cycle.
func (e *Engine) boardStateJSON(ctx context.Context) string {
	if e.caller == nil {
		return ""
	}
	state, err := e.caller.Call(ctx, board.CmdGetBoardState, nil)
	if err != nil {
		log.Printf("[Agent] board state unavailable: %v", err)
		return ""
	}
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	return string(data)
}

func inputMode(source string) string {
	switch source {
	case SourceAudio:
		return "voice"
	case SourceChat:
		return "text"
	default:
		return "idle"
	}
}

// turnOutcome is the explicit result of one reasoning turn.
type turnOutcome int

const (
	turnContinue turnOutcome = iota // tool calls executed, loop again
	turnDone                        // final answer produced
	turnFailed                      // provider fault, abort the cycle
)

// runTurnLoop iterates reasoning turns until one produces a final answer,
// one fails, or the turn ceiling is reached. Hitting the ceiling is a
// degraded completion, not an error.
func (e *Engine) runTurnLoop(ctx context.Context, messages []map[string]any) (string, error) {
	responseStarted := false
	emit := func(ev providers.StreamEvent) {
		switch ev.Type {
		case providers.EventThinkingDelta:
			e.streamer.UpdateAgentThinking(ev.Text)
		case providers.EventTextDelta:
			if !responseStarted {
				responseStarted = true
				e.streamer.StartAgentResponse()
			}
			e.streamer.UpdateAgentResponse(ev.Text)
		case providers.EventToolCallStarted:
			e.streamer.ShowAgentThinking()
		}
	}

	for turn := 0; turn < e.cfg.MaxTurns; turn++ {
		outcome, next, text, err := e.step(ctx, messages, emit)
		switch outcome {
		case turnFailed:
			return "", err
		case turnDone:
			return text, nil
		default:
			messages = next
		}
	}

	log.Printf("[Agent] turn ceiling (%d) reached", e.cfg.MaxTurns)
	if !responseStarted {
		e.streamer.StartAgentResponse()
	}
	e.streamer.UpdateAgentResponse("Max iterations reached")
	return "Max iterations reached", nil
}

// step runs one turn: a model call and, when requested, the tool executions
// whose results extend the conversation for the next turn.
func (e *Engine) step(ctx context.Context, messages []map[string]any, emit providers.EmitFunc) (turnOutcome, []map[string]any, string, error) {
	resp, err := e.provider.ChatStream(ctx, providers.ChatRequest{
		Messages:       messages,
		Tools:          e.registry.Schemas(),
		Model:          e.cfg.Model,
		MaxTokens:      e.cfg.MaxTokens,
		Temperature:    e.cfg.Temperature,
		Thinking:       e.cfg.Thinking,
		ThinkingBudget: e.cfg.ThinkingBudget,
	}, emit)
	if err != nil {
		return turnFailed, nil, "", fmt.Errorf("model call: %w", err)
	}

	if !resp.HasToolCalls() {
		if resp.Content == nil {
			return turnDone, nil, "", nil
		}
		return turnDone, nil, *resp.Content, nil
	}

	messages = appendAssistantTurn(messages, resp)
	for _, tc := range resp.ToolCalls {
		result := e.executeTool(ctx, tc)
		messages = append(messages, map[string]any{
			"role":         "tool",
			"tool_call_id": tc.ID,
			"name":         tc.Name,
			"content":      result,
		})
		if err := e.st.SaveToolResult(ctx, tc.Name, result); err != nil {
			log.Printf("[Agent] save tool result failed: %v", err)
		}
	}
	return turnContinue, messages, "", nil
}

func (e *Engine) executeTool(ctx context.Context, tc providers.ToolCallRequest) string {
	tool := e.registry.Get(tc.Name)
	if tool == nil {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}
	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func appendAssistantTurn(messages []map[string]any, resp *providers.LLMResponse) []map[string]any {
	var toolCalls []map[string]any
	for _, tc := range resp.ToolCalls {
		argsJSON, _ := json.Marshal(tc.Arguments)
		toolCalls = append(toolCalls, map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": string(argsJSON),
			},
		})
	}
	msg := map[string]any{"role": "assistant", "tool_calls": toolCalls}
	if resp.Content != nil {
		msg["content"] = *resp.Content
	} else {
		msg["content"] = ""
	}
	return append(messages, msg)
}
