// Package config handles easel's JSON configuration file.
package config

import "os"

// EndpointsConfig holds the websocket endpoints of the local workspace app.
type EndpointsConfig struct {
	Chat   string `json:"chat"`
	Audio  string `json:"audio"`
	Bridge string `json:"bridge"`
}

// ProviderConfig holds reasoning provider settings.
type ProviderConfig struct {
	APIKey         string  `json:"apiKey,omitempty"`
	APIBase        string  `json:"apiBase,omitempty"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"maxTokens"`
	Thinking       bool    `json:"thinking"`
	ThinkingBudget int     `json:"thinkingBudget"`
	Temperature    float64 `json:"temperature"`
}

// TranscriberConfig holds speech-to-text provider settings.
type TranscriberConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	APIBase   string `json:"apiBase"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// AudioConfig holds segmentation settings.
type AudioConfig struct {
	// Sensitivity is one of "low", "medium", "high". It changes only the
	// silence pause threshold, never the frame size.
	Sensitivity string `json:"sensitivity"`
}

// AgentConfig holds orchestration settings.
type AgentConfig struct {
	MaxTurns        int   `json:"maxTurns"`
	HistoryWindowMS int64 `json:"historyWindowMs"`
}

// BridgeConfig holds bridge protocol settings.
type BridgeConfig struct {
	TimeoutMS int `json:"timeoutMs"`
}

// MemoryConfig holds background maintenance settings.
type MemoryConfig struct {
	RefreshSec int `json:"refreshSec"`
}

// RedisConfig holds optional Redis cache settings.
type RedisConfig struct {
	URL      string `json:"url,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
}

// Config is the top-level easel configuration.
type Config struct {
	DataDir     string            `json:"dataDir"`
	PersonaPath string            `json:"personaPath,omitempty"`
	Endpoints   EndpointsConfig   `json:"endpoints"`
	Provider    ProviderConfig    `json:"provider"`
	Transcriber TranscriberConfig `json:"transcriber"`
	Embeddings  EmbeddingsConfig  `json:"embeddings"`
	Audio       AudioConfig       `json:"audio"`
	Agent       AgentConfig       `json:"agent"`
	Bridge      BridgeConfig      `json:"bridge"`
	Memory      MemoryConfig      `json:"memory"`
	Redis       RedisConfig       `json:"redis"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir: "./session_data",
		Endpoints: EndpointsConfig{
			Chat:   "ws://127.0.0.1:8000/ws/chat",
			Audio:  "ws://127.0.0.1:8000/ws/audio",
			Bridge: "ws://127.0.0.1:8000/ws/app_bridge",
		},
		Provider: ProviderConfig{
			Model:          "claude-haiku-4-5",
			MaxTokens:      4096,
			Thinking:       false,
			ThinkingBudget: 2048,
		},
		Transcriber: TranscriberConfig{
			Endpoint: "http://127.0.0.1:9090/v1/transcribe",
		},
		Embeddings: EmbeddingsConfig{
			APIBase:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Audio: AudioConfig{Sensitivity: "medium"},
		Agent: AgentConfig{
			MaxTurns:        20,
			HistoryWindowMS: 5 * 60 * 1000,
		},
		Bridge: BridgeConfig{TimeoutMS: 5000},
		// Half the history window, so two summary passes cover every entry.
		Memory: MemoryConfig{RefreshSec: 150},
	}
}

// ResolveEnv fills API keys from the environment when the file left them out.
func (c *Config) ResolveEnv() {
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("EASEL_PROVIDER_API_KEY")
	}
	if c.Transcriber.APIKey == "" {
		c.Transcriber.APIKey = os.Getenv("EASEL_TRANSCRIBER_API_KEY")
	}
	if c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = os.Getenv("EASEL_EMBEDDINGS_API_KEY")
	}
}
