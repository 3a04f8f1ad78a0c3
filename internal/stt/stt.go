// Package stt provides clients for remote speech recognition services.
package stt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mgoltzsche/speech-relay/pkg/config"
)

// Service transcribes an encoded audio file to text.
type Service interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// New returns the Service configured by cfg.Provider.
func New(cfg config.STTConfig, client *http.Client) (Service, error) {
	switch cfg.Provider {
	case "openai":
		return &Client{
			URL:      cfg.ServerURL,
			Model:    cfg.Model,
			Language: cfg.Language,
			APIKey:   cfg.APIKey,
			Client:   client,
		}, nil
	case "google":
		return &Google{
			URL:        cfg.ServerURL,
			APIKey:     cfg.APIKey,
			Language:   cfg.Language,
			Encoding:   cfg.Encoding,
			SampleRate: cfg.SampleRate,
			Client:     client,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported stt provider %q", cfg.Provider)
	}
}
