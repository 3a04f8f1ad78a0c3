package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// OpenAI generates text using an OpenAI-compatible chat completion API such as LocalAI.
type OpenAI struct {
	ServerURL   string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  HTTPDoer

	once sync.Once
	llm  *openai.LLM
	err  error
}

func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	c.once.Do(func() {
		var httpClient HTTPDoer = http.DefaultClient
		if c.HTTPClient != nil {
			httpClient = c.HTTPClient
		}

		c.llm, c.err = openai.New(
			openai.WithHTTPClient(&statusCheckingDoer{httpClient}),
			openai.WithBaseURL(c.ServerURL+"/v1"),
			openai.WithToken(c.APIKey),
			openai.WithModel(c.Model),
		)
	})

	if c.err != nil {
		return "", fmt.Errorf("init llm client: %w", c.err)
	}

	opts := []llms.CallOption{llms.WithTemperature(c.Temperature)}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}

	slog.Debug("requesting chat completion", "model", c.Model, "promptLength", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		// Transport errors are tagged by statusCheckingDoer.
		// Untagged errors stem from decoding the response or an empty choice list.
		return "", failure.Wrap(failure.ErrMalformedResponse, fmt.Errorf("chat completion: %w", err))
	}

	return text, nil
}

// statusCheckingDoer turns transport failures and non-2xx responses into typed errors.
type statusCheckingDoer struct {
	delegate HTTPDoer
}

func (d *statusCheckingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.delegate.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		return nil, failure.FromStatus("chat completion server", resp.StatusCode)
	}

	return resp, nil
}
