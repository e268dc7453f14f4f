package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandCategories(t *testing.T) {
	assert.Equal(t, CategoryStateQuery, CommandCategory(CmdGetBoardState))
	assert.Equal(t, CategoryContentMutation, CommandCategory(CmdAddCardsToCanvas))
	assert.Equal(t, CategoryContentMutation, CommandCategory(CmdRemovePreviewCards))
	assert.Equal(t, CategoryViewControl, CommandCategory(CmdSetCanvasZoom))
	assert.Equal(t, CategoryViewControl, CommandCategory(CmdFocusOnCards))
	assert.Equal(t, CategoryUnknown, CommandCategory("explode_board"))
}

func TestValidateAddCards(t *testing.T) {
	err := ValidateParams(CmdAddCardsToCanvas, map[string]any{
		"cards": []any{map[string]any{"title": "Idea"}},
	})
	assert.NoError(t, err)

	assert.Error(t, ValidateParams(CmdAddCardsToCanvas, map[string]any{}))
	assert.Error(t, ValidateParams(CmdAddCardsToCanvas, map[string]any{"cards": []any{}}))
	assert.Error(t, ValidateParams(CmdAddCardsToCanvas, map[string]any{"cards": []any{"nope"}}))
}

func TestValidateUpdateRequiresIDs(t *testing.T) {
	err := ValidateParams(CmdUpdateCardsInCanvas, map[string]any{
		"cards": []any{map[string]any{"id": "c1", "title": "New"}},
	})
	assert.NoError(t, err)

	err = ValidateParams(CmdUpdateCardsInCanvas, map[string]any{
		"cards": []any{map[string]any{"title": "No id"}},
	})
	assert.Error(t, err)

	err = ValidateParams(CmdUpdatePreviewCards, map[string]any{
		"updates": []any{map[string]any{"id": "p1"}},
	})
	assert.NoError(t, err)
}

func TestValidateDeleteByIDs(t *testing.T) {
	assert.NoError(t, ValidateParams(CmdDeleteCardsFromCanvas, map[string]any{
		"cardIds": []any{"c1", "c2"},
	}))
	assert.NoError(t, ValidateParams(CmdRemovePreviewCards, map[string]any{
		"cardIds": []string{"p1"},
	}))
	assert.Error(t, ValidateParams(CmdDeleteCardsFromCanvas, map[string]any{
		"cardIds": []any{},
	}))
	assert.Error(t, ValidateParams(CmdDeleteCardsFromCanvas, map[string]any{
		"cardIds": []any{42},
	}))
}

func TestValidateZoomBounds(t *testing.T) {
	assert.NoError(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": 1.0}))
	assert.NoError(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": 0.25}))
	assert.NoError(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": 2.0}))
	assert.Error(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": 0.1}))
	assert.Error(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": 2.5}))
	assert.Error(t, ValidateParams(CmdSetCanvasZoom, map[string]any{"zoom": "big"}))
	assert.Error(t, ValidateParams(CmdSetCanvasZoom, map[string]any{}))
}

func TestValidatePan(t *testing.T) {
	assert.NoError(t, ValidateParams(CmdSetCanvasPan, map[string]any{
		"offset": map[string]any{"x": 10.0, "y": -5.0},
	}))
	assert.Error(t, ValidateParams(CmdSetCanvasPan, map[string]any{
		"offset": map[string]any{"x": 10.0},
	}))
	assert.Error(t, ValidateParams(CmdSetCanvasPan, map[string]any{}))
}

func TestValidateFocus(t *testing.T) {
	assert.NoError(t, ValidateParams(CmdFocusOnCards, map[string]any{
		"panelIds": []any{"c1"},
	}))
	assert.Error(t, ValidateParams(CmdFocusOnCards, map[string]any{}))
}

func TestValidateUnknownCommand(t *testing.T) {
	assert.Error(t, ValidateParams("frobnicate", map[string]any{}))
}
