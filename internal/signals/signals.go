// Package signals provides an app-wide signal hub so components can inform
// each other of events without callback webs or import cycles.
//
// Each signal is a coalescing channel: setting an already-set signal is a
// no-op, so bursty notifiers never block and slow consumers never see a
// backlog — only "something happened since I last looked".
package signals

// Hub holds the application's shared signals.
type Hub struct {
	// InferenceCompleted fires after every completed agent inference cycle.
	InferenceCompleted chan struct{}

	// AudioStopped fires when the user explicitly stops audio capture.
	AudioStopped chan struct{}

	// ConfigChanged fires when user configuration is updated at runtime.
	ConfigChanged chan struct{}
}

// NewHub creates a signal hub with all signals unset.
func NewHub() *Hub {
	return &Hub{
		InferenceCompleted: make(chan struct{}, 1),
		AudioStopped:       make(chan struct{}, 1),
		ConfigChanged:      make(chan struct{}, 1),
	}
}

func set(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// NotifyInferenceCompleted marks the end of an inference cycle.
func (h *Hub) NotifyInferenceCompleted() { set(h.InferenceCompleted) }

// NotifyAudioStopped marks an explicit stop-capture event.
func (h *Hub) NotifyAudioStopped() { set(h.AudioStopped) }

// NotifyConfigChanged marks a runtime configuration update.
func (h *Hub) NotifyConfigChanged() { set(h.ConfigChanged) }
