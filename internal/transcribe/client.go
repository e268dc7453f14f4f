// Package transcribe holds the speech-to-text collaborator interface and its
// default HTTP client. One blocking call per flushed utterance; segmentation
// policy lives upstream in the audio package.
package transcribe

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/easelhq/easel/internal/audio"
)

// Client posts WAV-wrapped utterances to a speech-to-text HTTP endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration // defaults to 30s
}

// NewClient creates a transcription client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe converts one utterance of PCM16 audio to text.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("transcribe: endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(WrapWAV(pcm, audio.SampleRate)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcribe: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: parse response: %w", err)
	}
	return result.Text, nil
}

// WrapWAV prefixes raw PCM16 mono samples with a 44-byte RIFF/WAVE header.
func WrapWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf := make([]byte, 0, 44+len(pcm))
	w := bytes.NewBuffer(buf)

	w.WriteString("RIFF")
	binary.Write(w, binary.LittleEndian, uint32(36+len(pcm)))
	w.WriteString("WAVE")

	w.WriteString("fmt ")
	binary.Write(w, binary.LittleEndian, uint32(16))
	binary.Write(w, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(w, binary.LittleEndian, uint16(numChannels))
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))
	binary.Write(w, binary.LittleEndian, uint32(byteRate))
	binary.Write(w, binary.LittleEndian, uint16(blockAlign))
	binary.Write(w, binary.LittleEndian, uint16(bitsPerSample))

	w.WriteString("data")
	binary.Write(w, binary.LittleEndian, uint32(len(pcm)))
	w.Write(pcm)

	return w.Bytes()
}
