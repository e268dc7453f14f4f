package board

import "log"

// Notifier sends a fire-and-forget command over the bridge channel.
type Notifier interface {
	Notify(command string, params map[string]any) error
}

// Streamer pushes incremental UI updates to the workspace while the agent
// works: the live user transcript, the thinking/response token stream, and
// the buffer-flush indicator flashes.
//
// Send failures are logged and swallowed — the channel manager has a
// reconnect pending, and a dropped indicator update is not worth failing an
// inference cycle over.
type Streamer struct {
	n Notifier
}

// NewStreamer creates a Streamer over the given notifier.
func NewStreamer(n Notifier) *Streamer {
	return &Streamer{n: n}
}

func (s *Streamer) notify(command string, params map[string]any) {
	if err := s.n.Notify(command, params); err != nil {
		log.Printf("[Board] %s dropped: %v", command, err)
	}
}

// UpdateUserTranscript replaces the live transcript text box content.
func (s *Streamer) UpdateUserTranscript(text string) {
	s.notify(CmdUpdateUserTranscript, map[string]any{"text": text})
}

// ShowAgentThinking shows the thinking indicator. Also used between tool
// calls so the agent never looks hung while a block streams.
func (s *Streamer) ShowAgentThinking() {
	s.notify(CmdShowAgentThinking, nil)
}

// UpdateAgentThinking appends text to the thinking accumulator.
func (s *Streamer) UpdateAgentThinking(text string) {
	s.notify(CmdUpdateAgentThinking, map[string]any{"text": text})
}

// StartAgentResponse clears the response area and hides the thinking
// indicator; deliberation has ended.
func (s *Streamer) StartAgentResponse() {
	s.notify(CmdStartAgentResponse, nil)
}

// UpdateAgentResponse appends text to the response accumulator.
func (s *Streamer) UpdateAgentResponse(text string) {
	s.notify(CmdUpdateAgentResponse, map[string]any{"text": text})
}

// EndAgentMessage finalizes the agent message in the UI.
func (s *Streamer) EndAgentMessage() {
	s.notify(CmdEndAgentMessage, nil)
}

// AgentError surfaces a terminal inference failure to the UI.
func (s *Streamer) AgentError(message string) {
	s.notify(CmdAgentError, map[string]any{"message": message})
}

// NotifyTranscriptsFlushed flashes the audio flush indicator.
func (s *Streamer) NotifyTranscriptsFlushed() {
	s.notify(CmdNotifyTranscriptsFlushed, nil)
}

// NotifyChatFlushed flashes the chat flush indicator.
func (s *Streamer) NotifyChatFlushed() {
	s.notify(CmdNotifyChatFlushed, nil)
}
