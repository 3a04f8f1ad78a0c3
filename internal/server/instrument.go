package server

import (
	"context"
	"time"

	"github.com/mgoltzsche/speech-relay/internal/metrics"
	"github.com/mgoltzsche/speech-relay/internal/pipeline"
	"github.com/mgoltzsche/speech-relay/internal/tts"
)

type instrumentedTranscriber struct {
	Delegate pipeline.Transcriber
	Metrics  *metrics.Metrics
	Service  string
}

func (t *instrumentedTranscriber) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	start := time.Now()
	text, err := t.Delegate.Transcribe(ctx, audioData)
	t.Metrics.RecordUpstreamCall(t.Service, start, err)

	return text, err
}

type instrumentedGenerator struct {
	Delegate pipeline.Generator
	Metrics  *metrics.Metrics
	Service  string
}

func (g *instrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := g.Delegate.Generate(ctx, prompt)
	g.Metrics.RecordUpstreamCall(g.Service, start, err)

	return text, err
}

type instrumentedSpeech struct {
	Delegate tts.Service
	Metrics  *metrics.Metrics
	Service  string
}

func (s *instrumentedSpeech) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()
	b, err := s.Delegate.GenerateAudio(ctx, text)
	s.Metrics.RecordUpstreamCall(s.Service, start, err)

	return b, err
}
