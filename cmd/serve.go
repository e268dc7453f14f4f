package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/agent"
	"github.com/easelhq/easel/internal/audio"
	"github.com/easelhq/easel/internal/board"
	"github.com/easelhq/easel/internal/bridge"
	"github.com/easelhq/easel/internal/config"
	"github.com/easelhq/easel/internal/memory"
	"github.com/easelhq/easel/internal/orchestrator"
	"github.com/easelhq/easel/internal/prompt"
	"github.com/easelhq/easel/internal/providers"
	"github.com/easelhq/easel/internal/redis"
	"github.com/easelhq/easel/internal/scheduler"
	"github.com/easelhq/easel/internal/signals"
	"github.com/easelhq/easel/internal/sockets"
	"github.com/easelhq/easel/internal/store"
	"github.com/easelhq/easel/internal/tools"
	"github.com/easelhq/easel/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.GetConfigPath())
		if err != nil {
			return err
		}
		cfg.ResolveEnv()
		return runServe(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	redis.Init(redis.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer redis.Close()

	hub := signals.NewHub()
	manager := sockets.NewManager(sockets.ManagerConfig{})
	defer manager.DisconnectAll()

	correlator := bridge.NewCorrelator(bridge.Config{
		Sender:  manager,
		Channel: sockets.ChannelBridge,
		Timeout: time.Duration(cfg.Bridge.TimeoutMS) * time.Millisecond,
	})
	streamer := board.NewStreamer(correlator)

	provider := providers.NewProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
	embedder := memory.NewEmbedClient(cfg.Embeddings.APIKey, cfg.Embeddings.APIBase, cfg.Embeddings.Model)
	mem := memory.NewManager(provider, st, "current")
	searcher := memory.NewSearcher(embedder, st)

	registry := tools.NewRegistry()
	for _, t := range tools.BoardTools(correlator) {
		registry.Register(t)
	}
	registry.Register(&tools.SemanticSearchTool{Searcher: searcher})

	persona := loadPersona(ctx, cfg.PersonaPath)

	engine := agent.NewEngine(provider, registry, streamer, correlator, st, mem, hub, persona, agent.Config{
		Model:          cfg.Provider.Model,
		MaxTurns:       cfg.Agent.MaxTurns,
		MaxTokens:      cfg.Provider.MaxTokens,
		Temperature:    cfg.Provider.Temperature,
		Thinking:       cfg.Provider.Thinking,
		ThinkingBudget: cfg.Provider.ThinkingBudget,
		HistoryWindow:  time.Duration(cfg.Agent.HistoryWindowMS) * time.Millisecond,
	})
	orch := orchestrator.New(engine)

	pipeline := audio.NewPipeline(audio.PipelineConfig{
		Sensitivity: audio.Sensitivity(cfg.Audio.Sensitivity),
		Transcriber: transcribe.NewClient(transcribe.Config{
			Endpoint: cfg.Transcriber.Endpoint,
			APIKey:   cfg.Transcriber.APIKey,
		}),
		Submit: func(text string) {
			orch.Raise(ctx, orchestrator.Trigger{Source: orchestrator.SourceAudio, Text: text})
		},
	})
	go pipeline.Run(ctx)

	// Explicit stop-capture flushes whatever is buffered immediately.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hub.AudioStopped:
				pipeline.Stop()
			}
		}
	}()

	manager.Connect(sockets.ChannelChat, cfg.Endpoints.Chat, func(data []byte) {
		handleChatMessage(ctx, orch, data)
	})
	manager.Connect(sockets.ChannelAudio, cfg.Endpoints.Audio, func(data []byte) {
		if err := pipeline.PushFrame(data); err != nil {
			log.Printf("[Serve] bad audio frame: %v", err)
		}
	})
	manager.Connect(sockets.ChannelBridge, cfg.Endpoints.Bridge, func(data []byte) {
		handleBridgeMessage(ctx, correlator, orch, pipeline, hub, data)
	})

	sch := scheduler.New()
	refresh := time.Duration(cfg.Memory.RefreshSec) * time.Second
	go sch.RunPeriodic(ctx, scheduler.KindMemorySummary, "session", refresh, mem.Refresh)
	go sch.RunOnSignal(ctx, scheduler.KindEmbeddingRefresh, "session", hub.InferenceCompleted, func(ctx context.Context) error {
		_, err := searcher.RefreshEmbeddings(ctx)
		return err
	})

	log.Printf("[Serve] easel %s running (data: %s)", Version, cfg.DataDir)
	<-ctx.Done()
	log.Println("[Serve] shutting down")
	return nil
}

// loadPersona resolves the active persona: the configured file when it loads,
// the last cached copy when the file is missing or broken, the built-in
// default otherwise. Every successful load refreshes the cache.
func loadPersona(ctx context.Context, path string) prompt.Persona {
	if path == "" {
		return prompt.DefaultPersona()
	}
	p, err := prompt.LoadPersona(path)
	if err == nil {
		redis.CacheSetJSON(ctx, redis.PersonaKey("active"), p, 24*time.Hour)
		return p
	}
	log.Printf("[Serve] persona load failed: %v", err)

	var cached prompt.Persona
	if redis.CacheGetJSON(ctx, redis.PersonaKey("active"), &cached) {
		log.Println("[Serve] using cached persona")
		return cached
	}
	return prompt.DefaultPersona()
}

// handleChatMessage routes inbound chat channel messages to the orchestrator.
func handleChatMessage(ctx context.Context, orch *orchestrator.Orchestrator, data []byte) {
	var msg struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Serve] unparseable chat message: %v", err)
		return
	}
	if msg.Text == "" {
		return
	}
	orch.Raise(ctx, orchestrator.Trigger{Source: orchestrator.SourceChat, Text: msg.Text})
}

// handleBridgeMessage routes inbound bridge messages: command responses to
// the correlator, control events to their owners, app events to the
// orchestrator.
func handleBridgeMessage(ctx context.Context, correlator *bridge.Correlator, orch *orchestrator.Orchestrator,
	pipeline *audio.Pipeline, hub *signals.Hub, data []byte) {

	if correlator.HandleMessage(data) {
		return
	}
	var msg struct {
		Type        string `json:"type"`
		Sensitivity string `json:"sensitivity"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "audio_stopped":
		hub.NotifyAudioStopped()
	case "config_update":
		if msg.Sensitivity != "" {
			pipeline.Segmenter().SetSensitivity(audio.Sensitivity(msg.Sensitivity))
			log.Printf("[Serve] audio sensitivity set to %s", msg.Sensitivity)
		}
		hub.NotifyConfigChanged()
	case "app_event":
		if msg.Description != "" {
			orch.Raise(ctx, orchestrator.Trigger{Source: orchestrator.SourceAppEvent, Text: msg.Description})
		}
	}
}
