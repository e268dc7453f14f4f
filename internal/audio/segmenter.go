// Package audio converts the raw capture stream into flushed utterances.
//
// The capture subsystem delivers fixed 100ms PCM16 frames; this package owns
// only the segmentation policy: buffer frames, track trailing silence with an
// energy heuristic, and flush the utterance when the pause threshold elapses
// or the user explicitly stops capture. Transcription of the flushed audio is
// the caller's concern.
package audio

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Protocol constants shared with the capture subsystem. Frame size is fixed;
// sensitivity tuning never changes it.
const (
	SampleRate     = 16000
	FrameDuration  = 100 * time.Millisecond
	BytesPerSample = 2
	FrameSamples   = SampleRate / 10 // 1600 samples per 100ms frame
	FrameBytes     = FrameSamples * BytesPerSample
)

// defaultVoiceRMS is the RMS energy above which a frame counts as voiced.
const defaultVoiceRMS = 500

// Sensitivity selects how quickly a pause commits the current utterance.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// pauseThresholds maps sensitivity to the trailing-silence duration that
// triggers a flush. Low sensitivity tolerates long breaks before committing;
// high commits quickly.
var pauseThresholds = map[Sensitivity]time.Duration{
	SensitivityLow:    2 * time.Second,
	SensitivityMedium: 1250 * time.Millisecond,
	SensitivityHigh:   750 * time.Millisecond,
}

// PauseThreshold returns the silence duration for a sensitivity profile,
// defaulting to medium for unknown values.
func PauseThreshold(s Sensitivity) time.Duration {
	if d, ok := pauseThresholds[s]; ok {
		return d
	}
	return pauseThresholds[SensitivityMedium]
}

// Utterance is a flushed buffer of contiguous audio between two pauses.
type Utterance struct {
	PCM      []byte
	Duration time.Duration
	Frames   int
}

// FlushFunc receives each flushed utterance.
type FlushFunc func(u Utterance)

// Segmenter accumulates frames and decides when to flush.
type Segmenter struct {
	mu          sync.Mutex
	buf         []byte
	frames      int
	voiced      bool // buffer contains at least one voiced frame
	silence     time.Duration
	threshold   time.Duration
	voiceRMS    float64
	lastFrameAt time.Time
	onFlush     FlushFunc
}

// SegmenterConfig configures a Segmenter.
type SegmenterConfig struct {
	Sensitivity Sensitivity
	VoiceRMS    float64 // defaults to defaultVoiceRMS
	OnFlush     FlushFunc
}

// NewSegmenter creates a segmenter.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	rms := cfg.VoiceRMS
	if rms == 0 {
		rms = defaultVoiceRMS
	}
	return &Segmenter{
		threshold: PauseThreshold(cfg.Sensitivity),
		voiceRMS:  rms,
		onFlush:   cfg.OnFlush,
	}
}

// SetSensitivity updates the pause threshold at runtime.
func (s *Segmenter) SetSensitivity(mode Sensitivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = PauseThreshold(mode)
}

// PushFrame feeds one fixed-size frame into the buffer. A flush fires at the
// frame boundary where accumulated trailing silence first exceeds the pause
// threshold — exactly once per gap, since flushing resets the buffer and a
// silent-only buffer never flushes again.
func (s *Segmenter) PushFrame(frame []byte) error {
	if len(frame) != FrameBytes {
		return fmt.Errorf("audio: frame must be %d bytes, got %d", FrameBytes, len(frame))
	}

	s.mu.Lock()
	var flushed *Utterance

	if frameRMS(frame) >= s.voiceRMS {
		s.voiced = true
		s.silence = 0
	} else {
		s.silence += FrameDuration
	}

	s.buf = append(s.buf, frame...)
	s.frames++
	s.lastFrameAt = time.Now()

	if s.voiced && s.silence >= s.threshold {
		flushed = s.takeLocked()
	} else if !s.voiced && s.silence >= s.threshold {
		// Nothing but silence — drop it instead of transcribing dead air.
		s.resetLocked()
	}
	s.mu.Unlock()

	if flushed != nil && s.onFlush != nil {
		s.onFlush(*flushed)
	}
	return nil
}

// Stop handles an explicit stop-capture event: whatever is buffered is
// flushed immediately without waiting for the pause threshold.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	var flushed *Utterance
	if s.voiced {
		flushed = s.takeLocked()
	} else {
		s.resetLocked()
	}
	s.mu.Unlock()

	if flushed != nil && s.onFlush != nil {
		s.onFlush(*flushed)
	}
}

// Buffered reports the currently accumulated duration.
func (s *Segmenter) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.frames) * FrameDuration
}

// takeLocked detaches the current buffer as an utterance. Callers hold s.mu.
func (s *Segmenter) takeLocked() *Utterance {
	u := &Utterance{
		PCM:      s.buf,
		Duration: time.Duration(s.frames) * FrameDuration,
		Frames:   s.frames,
	}
	s.resetLocked()
	return u
}

func (s *Segmenter) resetLocked() {
	s.buf = nil
	s.frames = 0
	s.voiced = false
	s.silence = 0
}

// frameRMS computes the root-mean-square energy of a PCM16 little-endian
// frame.
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var energy float64
	for i := 0; i < n; i++ {
		sample := int16(frame[2*i]) | int16(frame[2*i+1])<<8
		energy += float64(sample) * float64(sample)
	}
	return math.Sqrt(energy / float64(n))
}
