package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTranscriber returns queued texts, one per utterance.
type scriptedTranscriber struct {
	mu      sync.Mutex
	replies []string
	errs    []error
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	text := s.replies[0]
	s.replies = s.replies[1:]
	return text, nil
}

func collectSubmits(submitted *[]string, mu *sync.Mutex) func(string) {
	return func(text string) {
		mu.Lock()
		*submitted = append(*submitted, text)
		mu.Unlock()
	}
}

func waitForSubmits(t *testing.T, mu *sync.Mutex, submitted *[]string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := len(*submitted)
		mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d submits", n)
}

func TestPipelineTranscribesFlushedUtterances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var submitted []string
	p := NewPipeline(PipelineConfig{
		Sensitivity: SensitivityHigh,
		Transcriber: &scriptedTranscriber{replies: []string{"first utterance", "second utterance"}},
		Submit:      collectSubmits(&submitted, &mu),
	})
	go p.Run(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.PushFrame(voicedFrame()))
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, p.PushFrame(silentFrame()))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, p.PushFrame(voicedFrame()))
	}
	p.Stop()

	waitForSubmits(t, &mu, &submitted, 2)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first utterance", "second utterance"}, submitted)
}

func TestPipelineSkipsEmptyTranscripts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var submitted []string
	p := NewPipeline(PipelineConfig{
		Sensitivity: SensitivityHigh,
		Transcriber: &scriptedTranscriber{replies: []string{"", "real text"}},
		Submit:      collectSubmits(&submitted, &mu),
	})
	go p.Run(ctx)

	require.NoError(t, p.PushFrame(voicedFrame()))
	p.Stop()
	require.NoError(t, p.PushFrame(voicedFrame()))
	p.Stop()

	waitForSubmits(t, &mu, &submitted, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"real text"}, submitted)
}

func TestPipelineContinuesAfterTranscriptionFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var submitted []string
	p := NewPipeline(PipelineConfig{
		Sensitivity: SensitivityHigh,
		Transcriber: &scriptedTranscriber{
			errs:    []error{errors.New("service hiccup"), nil},
			replies: []string{"after recovery"},
		},
		Submit: collectSubmits(&submitted, &mu),
	})
	go p.Run(ctx)

	require.NoError(t, p.PushFrame(voicedFrame()))
	p.Stop()
	require.NoError(t, p.PushFrame(voicedFrame()))
	p.Stop()

	waitForSubmits(t, &mu, &submitted, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"after recovery"}, submitted)
}
