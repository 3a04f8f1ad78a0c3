package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Client generates speech using an OpenAI-compatible API.
type Client struct {
	URL    string
	Model  string
	Voice  string
	Client *http.Client
	APIKey string
}

// GenerateAudio returns the speech for msg as WAV file.
func (c *Client) GenerateAudio(ctx context.Context, msg string) ([]byte, error) {
	params := map[string]interface{}{
		"input":           msg,
		"model":           c.Model,
		"response_format": "wav",
	}

	if c.Voice != "" {
		params["voice"] = c.Voice
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal speech generation params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech generation request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Errorf("generate speech: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.FromStatus("speech generation server", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, fmt.Errorf("read speech generation response body: %w", err))
	}

	return b, nil
}
