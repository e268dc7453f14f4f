// Package board defines the command vocabulary spoken over the bridge
// channel: workspace queries, card mutations, viewport control, and the
// notification commands that drive the streaming UI.
package board

import (
	"fmt"
)

// Round-trip commands (the workspace replies with a state_response).
const (
	CmdGetBoardState = "get_board_state"

	CmdAddCardsToCanvas      = "add_cards_to_canvas"
	CmdUpdateCardsInCanvas   = "update_cards_in_canvas"
	CmdDeleteCardsFromCanvas = "delete_cards_from_canvas"

	CmdAddPreviewCards    = "add_preview_cards"
	CmdUpdatePreviewCards = "update_preview_cards"
	CmdRemovePreviewCards = "remove_preview_cards"

	CmdSetCanvasZoom = "set_canvas_zoom"
	CmdSetCanvasPan  = "set_canvas_pan"
	CmdFocusOnCards  = "focus_on_cards"
)

// Notification commands (no reply expected, no request identity).
const (
	CmdUpdateUserTranscript     = "update_user_transcript"
	CmdShowAgentThinking        = "show_agent_thinking"
	CmdUpdateAgentThinking      = "update_agent_thinking"
	CmdStartAgentResponse       = "start_agent_response"
	CmdUpdateAgentResponse      = "update_agent_response"
	CmdEndAgentMessage          = "end_agent_message"
	CmdAgentError               = "agent_error"
	CmdNotifyTranscriptsFlushed = "notify_transcripts_flushed"
	CmdNotifyChatFlushed        = "notify_chat_flushed"
)

// Category classifies round-trip commands.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryStateQuery
	CategoryContentMutation
	CategoryViewControl
)

// CommandCategory returns the category for a round-trip command name.
func CommandCategory(name string) Category {
	switch name {
	case CmdGetBoardState:
		return CategoryStateQuery
	case CmdAddCardsToCanvas, CmdUpdateCardsInCanvas, CmdDeleteCardsFromCanvas,
		CmdAddPreviewCards, CmdUpdatePreviewCards, CmdRemovePreviewCards:
		return CategoryContentMutation
	case CmdSetCanvasZoom, CmdSetCanvasPan, CmdFocusOnCards:
		return CategoryViewControl
	default:
		return CategoryUnknown
	}
}

// Zoom bounds for set_canvas_zoom.
const (
	MinZoom = 0.25
	MaxZoom = 2.0
)

// ValidateParams checks a round-trip command's parameter shape before it goes
// on the wire. Malformed parameters fail here, without a round trip.
func ValidateParams(command string, params map[string]any) error {
	switch command {
	case CmdGetBoardState:
		return nil

	case CmdAddCardsToCanvas, CmdAddPreviewCards:
		return requireObjectList(params, "cards")

	case CmdUpdateCardsInCanvas:
		if err := requireObjectList(params, "cards"); err != nil {
			return err
		}
		return requireIDs(params, "cards")

	case CmdUpdatePreviewCards:
		if err := requireObjectList(params, "updates"); err != nil {
			return err
		}
		return requireIDs(params, "updates")

	case CmdDeleteCardsFromCanvas, CmdRemovePreviewCards:
		return requireStringList(params, "cardIds")

	case CmdSetCanvasZoom:
		zoom, ok := numberParam(params, "zoom")
		if !ok {
			return fmt.Errorf("board: %s requires numeric 'zoom'", command)
		}
		if zoom < MinZoom || zoom > MaxZoom {
			return fmt.Errorf("board: zoom %.2f outside [%.2f, %.2f]", zoom, MinZoom, MaxZoom)
		}
		return nil

	case CmdSetCanvasPan:
		offset, ok := params["offset"].(map[string]any)
		if !ok {
			return fmt.Errorf("board: %s requires 'offset' object", command)
		}
		if _, ok := numberParam(offset, "x"); !ok {
			return fmt.Errorf("board: %s offset requires numeric 'x'", command)
		}
		if _, ok := numberParam(offset, "y"); !ok {
			return fmt.Errorf("board: %s offset requires numeric 'y'", command)
		}
		return nil

	case CmdFocusOnCards:
		return requireStringList(params, "panelIds")

	default:
		return fmt.Errorf("board: unknown command %q", command)
	}
}

func requireObjectList(params map[string]any, key string) error {
	raw, ok := params[key]
	if !ok {
		return fmt.Errorf("board: missing %q list", key)
	}
	list, ok := raw.([]any)
	if !ok {
		// Typed slices (e.g. []map[string]any) also pass.
		if typed, ok := raw.([]map[string]any); ok {
			if len(typed) == 0 {
				return fmt.Errorf("board: %q must not be empty", key)
			}
			return nil
		}
		return fmt.Errorf("board: %q must be a list", key)
	}
	if len(list) == 0 {
		return fmt.Errorf("board: %q must not be empty", key)
	}
	for i, item := range list {
		if _, ok := item.(map[string]any); !ok {
			return fmt.Errorf("board: %s[%d] must be an object", key, i)
		}
	}
	return nil
}

func requireIDs(params map[string]any, key string) error {
	switch list := params[key].(type) {
	case []any:
		for i, item := range list {
			obj, _ := item.(map[string]any)
			if id, _ := obj["id"].(string); id == "" {
				return fmt.Errorf("board: %s[%d] missing 'id'", key, i)
			}
		}
	case []map[string]any:
		for i, obj := range list {
			if id, _ := obj["id"].(string); id == "" {
				return fmt.Errorf("board: %s[%d] missing 'id'", key, i)
			}
		}
	}
	return nil
}

func requireStringList(params map[string]any, key string) error {
	raw, ok := params[key]
	if !ok {
		return fmt.Errorf("board: missing %q list", key)
	}
	switch list := raw.(type) {
	case []string:
		if len(list) == 0 {
			return fmt.Errorf("board: %q must not be empty", key)
		}
	case []any:
		if len(list) == 0 {
			return fmt.Errorf("board: %q must not be empty", key)
		}
		for i, item := range list {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("board: %s[%d] must be a string", key, i)
			}
		}
	default:
		return fmt.Errorf("board: %q must be a list of strings", key)
	}
	return nil
}

func numberParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}
