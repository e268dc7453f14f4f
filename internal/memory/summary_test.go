package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/internal/store"
)

// fakeCompleter returns scripted summaries.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newSummaryFixture(t *testing.T) (*Manager, *fakeCompleter, *store.Store) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	completer := &fakeCompleter{reply: "The user is planning a launch."}
	return NewManager(completer, st, "test"), completer, st
}

func TestRefreshWithNoEntriesIsNoOp(t *testing.T) {
	m, completer, _ := newSummaryFixture(t)
	require.NoError(t, m.Refresh(context.Background()))
	assert.Empty(t, completer.prompts)
	assert.Empty(t, m.Summary())
}

func TestRefreshFoldsEntriesAndAdvancesWatermark(t *testing.T) {
	m, completer, st := newSummaryFixture(t)
	ctx := context.Background()

	require.NoError(t, st.SaveUserMessage(ctx, "let's plan the launch", "chat_message"))
	require.NoError(t, st.SaveAssistantMessage(ctx, "I made a timeline card"))

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, "The user is planning a launch.", m.Summary())
	assert.Greater(t, m.Watermark(), int64(0))
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "let's plan the launch")

	// Nothing new: the next round makes no model call.
	require.NoError(t, m.Refresh(ctx))
	assert.Len(t, completer.prompts, 1)
}

func TestFailedRefreshKeepsWatermark(t *testing.T) {
	m, completer, st := newSummaryFixture(t)
	ctx := context.Background()

	require.NoError(t, st.SaveUserMessage(ctx, "remember this", "chat_message"))
	completer.err = errors.New("model down")

	require.Error(t, m.Refresh(ctx))
	assert.Empty(t, m.Summary())
	assert.Zero(t, m.Watermark())

	// The same entries are retried once the model recovers.
	completer.err = nil
	require.NoError(t, m.Refresh(ctx))
	assert.Contains(t, completer.prompts[len(completer.prompts)-1], "remember this")
	assert.Equal(t, "The user is planning a launch.", m.Summary())
}

func TestRefreshOnlySeesNewEntries(t *testing.T) {
	m, completer, st := newSummaryFixture(t)
	ctx := context.Background()

	base := time.Now()
	clock := base
	st.SetClock(func() time.Time { return clock })

	require.NoError(t, st.SaveUserMessage(ctx, "first thought", "chat_message"))
	require.NoError(t, m.Refresh(ctx))

	clock = base.Add(time.Second)
	require.NoError(t, st.SaveUserMessage(ctx, "second thought", "chat_message"))
	require.NoError(t, m.Refresh(ctx))

	last := completer.prompts[len(completer.prompts)-1]
	assert.Contains(t, last, "second thought")
	assert.NotContains(t, last, "- [utterance] first thought")
}
