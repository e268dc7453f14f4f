package audio

import (
	"context"
	"log"
	"time"
)

// Transcriber converts one flushed utterance into text. The call blocks for
// the duration of the conversion.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Pipeline glues the segmenter to the transcriber: flushed utterances are
// transcribed sequentially (preserving utterance order) and the resulting
// text is handed to the trigger path.
type Pipeline struct {
	seg     *Segmenter
	tr      Transcriber
	submit  func(text string)
	flushCh chan Utterance
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Sensitivity Sensitivity
	VoiceRMS    float64
	Transcriber Transcriber
	// Submit receives each non-empty transcript, in flush order.
	Submit func(text string)
}

// NewPipeline creates the segmentation pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		tr:      cfg.Transcriber,
		submit:  cfg.Submit,
		flushCh: make(chan Utterance, 16),
	}
	p.seg = NewSegmenter(SegmenterConfig{
		Sensitivity: cfg.Sensitivity,
		VoiceRMS:    cfg.VoiceRMS,
		OnFlush:     p.enqueue,
	})
	return p
}

// Segmenter exposes the underlying segmenter for frame input and runtime
// sensitivity changes.
func (p *Pipeline) Segmenter() *Segmenter { return p.seg }

// PushFrame forwards a capture frame into the segmenter.
func (p *Pipeline) PushFrame(frame []byte) error { return p.seg.PushFrame(frame) }

// Stop forwards an explicit stop-capture event.
func (p *Pipeline) Stop() { p.seg.Stop() }

func (p *Pipeline) enqueue(u Utterance) {
	select {
	case p.flushCh <- u:
	default:
		// Transcription is badly behind; dropping the oldest keeps the
		// session live rather than wedging the capture path.
		select {
		case old := <-p.flushCh:
			log.Printf("[Audio] transcription backlog, dropped %s utterance", old.Duration)
		default:
		}
		p.flushCh <- u
	}
}

// Run consumes flushed utterances until ctx is cancelled. Transcription is a
// blocking call per utterance; running them one at a time keeps transcripts
// in utterance order.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-p.flushCh:
			start := time.Now()
			text, err := p.tr.Transcribe(ctx, u.PCM)
			if err != nil {
				log.Printf("[Audio] transcription failed (%s utterance): %v", u.Duration, err)
				continue
			}
			if text == "" {
				continue
			}
			log.Printf("[Audio] transcribed %s of audio in %s", u.Duration, time.Since(start).Round(time.Millisecond))
			if p.submit != nil {
				p.submit(text)
			}
		}
	}
}
