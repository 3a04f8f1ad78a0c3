// Package generate provides clients for generative text services that answer a transcript.
package generate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mgoltzsche/speech-relay/pkg/config"
)

// Service returns the text a generative model generated for a prompt.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPDoer sends HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// New returns the Service configured by cfg.Provider.
func New(cfg config.GeneratorConfig, client *http.Client) (Service, error) {
	switch cfg.Provider {
	case "gemini":
		return &Gemini{
			URL:    cfg.ServerURL,
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Client: client,
		}, nil
	case "openai":
		llm := &OpenAI{
			ServerURL:   cfg.ServerURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}

		if client != nil {
			llm.HTTPClient = client
		}

		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", cfg.Provider)
	}
}
