package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/bridge"
)

// BoardCaller sends a round-trip command to the workspace and returns its
// state response.
type BoardCaller interface {
	Call(ctx context.Context, command string, params map[string]any) (bridge.Result, error)
}

// cardSchema is the JSON Schema for one card object.
func cardSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":      map[string]any{"type": "string", "description": "Card ID (required for updates)"},
			"title":   map[string]any{"type": "string"},
			"content": map[string]any{"type": "string", "description": "Markdown body"},
			"x":       map[string]any{"type": "number"},
			"y":       map[string]any{"type": "number"},
			"color":   map[string]any{"type": "string"},
		},
	}
}

// boardCommandTool maps one bridge command to a tool. The workspace's state
// response is returned to the model as JSON.
type boardCommandTool struct {
	caller      BoardCaller
	command     string
	description string
	parameters  map[string]any
}

func (t *boardCommandTool) Name() string               { return t.command }
func (t *boardCommandTool) Description() string        { return t.description }
func (t *boardCommandTool) Parameters() map[string]any { return t.parameters }

func (t *boardCommandTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	state, err := t.caller.Call(ctx, t.command, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if len(state) == 0 {
		return "ok", nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return string(data), nil
}

// BoardTools returns the full board tool set wired to the given caller.
func BoardTools(caller BoardCaller) []Tool {
	listOf := func(item map[string]any) map[string]any {
		return map[string]any{"type": "array", "items": item}
	}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return []Tool{
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdGetBoardState,
			description: "Get the current board state: all canvas cards, preview cards, and the viewport.",
			parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdAddCardsToCanvas,
			description: "Add new cards to the canvas.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"cards": listOf(cardSchema())},
				"required":   []string{"cards"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdUpdateCardsInCanvas,
			description: "Update existing canvas cards. Each card must carry its id; only provided fields change.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"cards": listOf(cardSchema())},
				"required":   []string{"cards"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdDeleteCardsFromCanvas,
			description: "Delete canvas cards by id.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"cardIds": stringList},
				"required":   []string{"cardIds"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdAddPreviewCards,
			description: "Add tentative preview cards the user can accept or dismiss.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"cards": listOf(cardSchema())},
				"required":   []string{"cards"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdUpdatePreviewCards,
			description: "Update pending preview cards. Each update must carry the preview card's id.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"updates": listOf(cardSchema())},
				"required":   []string{"updates"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdRemovePreviewCards,
			description: "Remove preview cards by id.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"cardIds": stringList},
				"required":   []string{"cardIds"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdSetCanvasZoom,
			description: "Set the canvas zoom level, between 0.25 and 2.0.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zoom": map[string]any{"type": "number", "minimum": board.MinZoom, "maximum": board.MaxZoom},
				},
				"required": []string{"zoom"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdSetCanvasPan,
			description: "Pan the canvas to an absolute offset.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"offset": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x": map[string]any{"type": "number"},
							"y": map[string]any{"type": "number"},
						},
						"required": []string{"x", "y"},
					},
				},
				"required": []string{"offset"},
			},
		},
		&boardCommandTool{
			caller:      caller,
			command:     board.CmdFocusOnCards,
			description: "Scroll and zoom the viewport to bring the given cards into view.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"panelIds": stringList},
				"required":   []string{"panelIds"},
			},
		},
	}
}
