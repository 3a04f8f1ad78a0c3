// Package server implements the relay's HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/generate"
	"github.com/mgoltzsche/speech-relay/internal/metrics"
	"github.com/mgoltzsche/speech-relay/internal/pipeline"
	"github.com/mgoltzsche/speech-relay/internal/stt"
	"github.com/mgoltzsche/speech-relay/internal/tts"
	"github.com/mgoltzsche/speech-relay/pkg/config"
)

const (
	maxTextRequestBytes = 1 << 20
	tooLargeMessage     = "The recording is too large."
)

// Routes serves the relay endpoints.
type Routes struct {
	Transcriber pipeline.Transcriber
	Generator   pipeline.Generator
	// Speech is optional. /speak is only served when set.
	Speech         tts.Service
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	RequestTimeout time.Duration
	SampleRate     int
	Quantization   audio.Quantization
	WebDir         string
}

// AddRoutes registers the relay endpoints backed by the configured remote services.
func AddRoutes(cfg config.Configuration, webDir string, m *metrics.Metrics, mux *http.ServeMux) error {
	client := &http.Client{}

	transcriber, err := stt.New(cfg.STT, client)
	if err != nil {
		return err
	}

	generator, err := generate.New(cfg.Generator, client)
	if err != nil {
		return err
	}

	routes := &Routes{
		Transcriber:    &instrumentedTranscriber{Delegate: transcriber, Metrics: m, Service: "stt_" + cfg.STT.Provider},
		Generator:      &instrumentedGenerator{Delegate: generator, Metrics: m, Service: "generator_" + cfg.Generator.Provider},
		Metrics:        m,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: time.Duration(cfg.RequestTimeout),
		SampleRate:     cfg.STT.SampleRate,
		WebDir:         webDir,
	}

	if cfg.TTS.ServerURL != "" {
		routes.Speech = &instrumentedSpeech{
			Delegate: &tts.Client{
				URL:    cfg.TTS.ServerURL,
				Model:  cfg.TTS.Model,
				Voice:  cfg.TTS.Voice,
				APIKey: cfg.TTS.APIKey,
				Client: client,
			},
			Metrics: m,
			Service: "tts",
		}
	}

	routes.Register(mux)

	return nil
}

// Register adds the routes to mux.
func (s *Routes) Register(mux *http.ServeMux) {
	s.handle(mux, "POST /transcribe", http.HandlerFunc(s.transcribe))
	s.handle(mux, "POST /api/convert-speech", http.HandlerFunc(s.transcribe))
	s.handle(mux, "POST /generate", http.HandlerFunc(s.generate))

	if s.Speech != nil {
		s.handle(mux, "POST /speak", http.HandlerFunc(s.speak))
	}

	s.handle(mux, "GET /ws", http.HandlerFunc(s.serveWebsocket))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	if s.WebDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.WebDir)))
	}
}

func (s *Routes) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.Metrics != nil {
		h = s.Metrics.WithMetrics(pattern, h)
	}

	mux.Handle(pattern, h)
}

func (s *Routes) transcribe(w http.ResponseWriter, req *http.Request) {
	audioData, err := s.readAudioUpload(w, req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("rejecting audio upload", "err", err)
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: tooLargeMessage})

			return
		}

		s.writeError(w, req, err)

		return
	}

	ctx, cancel := s.withTimeout(req.Context())
	defer cancel()

	slog.Debug("transcribing audio upload", "bytes", len(audioData), "format", audio.Sniff(audioData))

	text, err := s.Transcriber.Transcribe(ctx, audioData)
	if err != nil {
		s.writeError(w, req, fmt.Errorf("transcribe: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"transcription": text})
}

func (s *Routes) readAudioUpload(w http.ResponseWriter, req *http.Request) ([]byte, error) {
	defer req.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, s.maxUploadBytes()))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	req.Body = io.NopCloser(bytes.NewReader(body))

	file, _, err := req.FormFile("audio")
	if err != nil {
		return nil, fmt.Errorf("%w: read audio form field: %w", failure.ErrInvalidInput, err)
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio form field: %w", failure.ErrInvalidInput, err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: empty audio upload", failure.ErrInvalidInput)
	}

	return audioData, nil
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Routes) generate(w http.ResponseWriter, req *http.Request) {
	r, err := readTextRequest(w, req)
	if err != nil {
		s.writeError(w, req, err)
		return
	}

	ctx, cancel := s.withTimeout(req.Context())
	defer cancel()

	text, err := s.Generator.Generate(ctx, r.Text)
	if err != nil {
		s.writeError(w, req, fmt.Errorf("generate: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

func (s *Routes) speak(w http.ResponseWriter, req *http.Request) {
	r, err := readTextRequest(w, req)
	if err != nil {
		s.writeError(w, req, err)
		return
	}

	if r.Text == "" {
		s.writeError(w, req, fmt.Errorf("%w: no text provided", failure.ErrInvalidInput))
		return
	}

	ctx, cancel := s.withTimeout(req.Context())
	defer cancel()

	wavData, err := s.Speech.GenerateAudio(ctx, r.Text)
	if err != nil {
		s.writeError(w, req, fmt.Errorf("generate speech: %w", err))
		return
	}

	w.Header().Set("Content-Type", audio.FormatWAV.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wavData)
}

func readTextRequest(w http.ResponseWriter, req *http.Request) (textRequest, error) {
	defer req.Body.Close()

	var r textRequest

	err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxTextRequestBytes)).Decode(&r)
	if err != nil {
		return r, fmt.Errorf("%w: decode request body: %w", failure.ErrInvalidInput, err)
	}

	return r, nil
}

func (s *Routes) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.RequestTimeout)
	}

	return context.WithCancel(ctx)
}

func (s *Routes) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}

	return config.Default().MaxUploadBytes
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError responds with a generic message and logs the details.
func (s *Routes) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := failure.StatusCode(err)

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", req.URL.Path, "status", status, "err", err)
	} else {
		slog.Warn("request failed", "path", req.URL.Path, "status", status, "err", err)
	}

	writeJSON(w, status, errorResponse{Error: failure.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}
