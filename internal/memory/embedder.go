// Package memory maintains the session's long-term context in the
// background: a rolling summary refreshed on a schedule, and embeddings for
// semantic recall refreshed whenever an inference cycle completes.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embedder produces embedding vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedClient calls an OpenAI-compatible embeddings endpoint.
type EmbedClient struct {
	APIKey     string
	APIBase    string
	Model      string
	HTTPClient *http.Client
}

// NewEmbedClient creates an embedding client.
func NewEmbedClient(apiKey, apiBase, model string) *EmbedClient {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &EmbedClient{
		APIKey:     apiKey,
		APIBase:    apiBase,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed generates embeddings for the given texts, batching requests.
func (c *EmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}

	var all [][]float32
	batchSize := 25

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		body, _ := json.Marshal(map[string]any{
			"model": c.Model,
			"input": batch,
		})

		req, err := http.NewRequestWithContext(ctx, "POST",
			strings.TrimRight(c.APIBase, "/")+"/embeddings",
			bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding API call: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(bodyBytes))
		}

		var result struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("parse embedding response: %w", err)
		}
		resp.Body.Close()

		for _, d := range result.Data {
			all = append(all, d.Embedding)
		}
	}

	return all, nil
}
