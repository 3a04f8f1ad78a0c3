package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgoltzsche/speech-relay/internal/cli"
	"github.com/mgoltzsche/speech-relay/internal/metrics"
	"github.com/mgoltzsche/speech-relay/internal/server"
	"github.com/mgoltzsche/speech-relay/internal/tlsutils"
	"github.com/mgoltzsche/speech-relay/pkg/config"
)

func main() {
	configFile := "/etc/speech-relay/config.yaml"
	cfg, err := config.FromFile(configFile)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	configFlag := &config.Flag{File: configFile, Config: &cfg}

	listenAddr := ":8080"
	webDir := ""
	tlsEnabled := false
	tlsCert := ""
	tlsKey := ""

	flag.Var(configFlag, "config", "Path to the configuration file")
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address the server should listen on")
	flag.StringVar(&webDir, "web-dir", webDir, "Path to the web UI directory")
	flag.BoolVar(&tlsEnabled, "tls", tlsEnabled, "Serve securely via HTTPS/TLS")
	flag.StringVar(&tlsKey, "tls-key", tlsKey, "Path to the TLS key file")
	flag.StringVar(&tlsCert, "tls-cert", tlsCert, "Path to the TLS certificate file")
	flag.StringVar(&cfg.STT.Provider, "stt-provider", cfg.STT.Provider, "speech recognition provider: google or openai")
	flag.StringVar(&cfg.STT.ServerURL, "stt-server-url", cfg.STT.ServerURL, "URL pointing to the speech recognition API server")
	flag.StringVar(&cfg.STT.APIKey, "stt-api-key", cfg.STT.APIKey, "API key of the speech recognition service")
	flag.StringVar(&cfg.STT.Model, "stt-model", cfg.STT.Model, "name of the STT model to use (openai provider)")
	flag.StringVar(&cfg.STT.Language, "stt-language", cfg.STT.Language, "language of the speech")
	flag.StringVar(&cfg.Generator.Provider, "generator-provider", cfg.Generator.Provider, "generative text provider: gemini or openai")
	flag.StringVar(&cfg.Generator.ServerURL, "generator-server-url", cfg.Generator.ServerURL, "URL pointing to the generative text API server")
	flag.StringVar(&cfg.Generator.APIKey, "generator-api-key", cfg.Generator.APIKey, "API key of the generative text service")
	flag.StringVar(&cfg.Generator.Model, "generator-model", cfg.Generator.Model, "name of the generative model to use")
	flag.Float64Var(&cfg.Generator.Temperature, "temperature", cfg.Generator.Temperature, "temperature parameter for the openai provider")
	flag.StringVar(&cfg.TTS.ServerURL, "tts-server-url", cfg.TTS.ServerURL, "URL pointing to the OpenAI-compatible TTS server (enables /speak)")
	flag.StringVar(&cfg.TTS.APIKey, "tts-api-key", cfg.TTS.APIKey, "API key of the TTS server")
	flag.StringVar(&cfg.TTS.Model, "tts-model", cfg.TTS.Model, "name of the TTS model to use")
	flag.StringVar(&cfg.TTS.Voice, "tts-voice", cfg.TTS.Voice, "name of the TTS voice to use")
	flag.Var(&cfg.RequestTimeout, "request-timeout", "timeout of a request to a remote service")
	flag.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "maximum size of an audio upload")
	cli.ParseFlagsWithEnvVars(flag.CommandLine, "RELAY_")

	if !configFlag.IsSet && err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runServer(ctx, cfg, listenAddr, webDir, tlsEnabled, tlsCert, tlsKey)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config.Configuration, listenAddr, webDir string, tlsEnabled bool, tlsCert, tlsKey string) error {
	mux := http.NewServeMux()
	srv := &http.Server{
		Addr:              listenAddr,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := server.AddRoutes(cfg, webDir, metrics.New(), mux)
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}

	go func() {
		<-ctx.Done()
		slog.Info("terminating")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting speech relay", "stt", cfg.STT.Provider, "generator", cfg.Generator.Provider, "tts", cfg.TTS.ServerURL != "")

	if tlsEnabled {
		if tlsCert == "" && tlsKey == "" {
			slog.Info("generating self-signed TLS certificate")
		}

		cert, err := tlsutils.Certificate(tlsCert, tlsKey)
		if err != nil {
			return fmt.Errorf("tls certificate: %w", err)
		}

		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}

		slog.Info(fmt.Sprintf("listening on %s", srv.Addr))

		err = srv.ListenAndServeTLS("", "")
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	slog.Info(fmt.Sprintf("listening on %s", srv.Addr))

	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
