package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/cli"
	"github.com/mgoltzsche/speech-relay/internal/client"
	"github.com/mgoltzsche/speech-relay/internal/device"
	"github.com/mgoltzsche/speech-relay/internal/failure"
	"github.com/mgoltzsche/speech-relay/internal/pipeline"
	"github.com/mgoltzsche/speech-relay/internal/soundgen"
	"github.com/mgoltzsche/speech-relay/internal/tts"
	"github.com/mgoltzsche/speech-relay/internal/vad"
	"github.com/mgoltzsche/speech-relay/pkg/config"
)

func main() {
	configFile := "/etc/speech-relay/config.yaml"
	cfg, err := config.FromFile(configFile)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	configFlag := &config.Flag{File: configFile, Config: &cfg}

	flag.Var(configFlag, "config", "Path to the configuration file")
	flag.StringVar(&cfg.Client.RelayURL, "relay-url", cfg.Client.RelayURL, "URL pointing to the speech relay server")
	flag.StringVar(&cfg.Client.InputDevice, "input-device", cfg.Client.InputDevice, "name or ID or the audio input device")
	flag.StringVar(&cfg.Client.OutputDevice, "output-device", cfg.Client.OutputDevice, "name or ID or the audio output device")
	flag.IntVar(&cfg.Client.SampleRate, "sample-rate", cfg.Client.SampleRate, "sample rate of the uploaded recording")
	flag.StringVar(&cfg.Client.Quantization, "quantization", cfg.Client.Quantization, "sample quantization: asymmetric or symmetric")
	flag.BoolVar(&cfg.Client.Speak, "speak", cfg.Client.Speak, "read the response aloud (requires TTS on the relay)")
	flag.BoolVar(&cfg.Client.VADEnabled, "vad", cfg.Client.VADEnabled, "skip recordings without speech using voice activity detection (VAD)")
	flag.StringVar(&cfg.Client.VADModelPath, "vad-model", cfg.Client.VADModelPath, "path to the VAD model")
	flag.Var(&cfg.RequestTimeout, "request-timeout", "timeout of each processing stage")
	cli.ParseFlagsWithEnvVars(flag.CommandLine, "VOICE_")

	if !configFlag.IsSet && err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	err = portaudio.Initialize()
	if err != nil {
		slog.Error("initialize portaudio", "err", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runClient(ctx, cfg.Client, time.Duration(cfg.RequestTimeout))
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runClient(ctx context.Context, cfg config.ClientConfig, stageTimeout time.Duration) error {
	quantization, err := audio.ParseQuantization(cfg.Quantization)
	if err != nil {
		return err
	}

	relay := &client.Client{
		URL:    cfg.RelayURL,
		Client: &http.Client{},
	}
	player := &device.Player{Device: cfg.OutputDevice}
	p := &pipeline.Pipeline{
		Recorder:     &device.Recorder{Device: cfg.InputDevice, Channels: 1},
		Transcriber:  relay,
		Generator:    relay,
		SampleRate:   cfg.SampleRate,
		Quantization: quantization,
		StageTimeout: stageTimeout,
	}
	defer p.Close()

	if cfg.Speak {
		p.Speaker = &tts.Speaker{Service: relay, Player: player}
	}

	if cfg.VADEnabled {
		p.SpeechDetector = &vad.Detector{ModelPath: cfg.VADModelPath}
	}

	cues := &soundgen.Generator{SampleRate: 16000}

	startCue, err := cues.StartCue()
	if err != nil {
		return fmt.Errorf("generate start cue: %w", err)
	}

	stopCue, err := cues.StopCue()
	if err != nil {
		return fmt.Errorf("generate stop cue: %w", err)
	}

	sub := p.Subscribe(ctx)
	defer sub.Stop()

	go cli.PrintEvents(os.Stdout, sub.ResultChan())

	lines := readLines(ctx)

	fmt.Println("Press Enter to start recording, Enter again to stop. Type q to quit.")

	var session *pipeline.Session

	for {
		var line string

		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}

			line = l
		}

		if strings.TrimSpace(line) == "q" {
			return nil
		}

		if session == nil {
			playCue(ctx, player, startCue)

			session, err = p.Start(ctx)
			if err != nil {
				fmt.Println(failure.Message(err))
				slog.Debug("start recording", "err", err)
			}

			continue
		}

		sess := session
		session = nil

		playCue(ctx, player, stopCue)

		go func() {
			_, _ = sess.Stop(ctx)
		}()
	}
}

func readLines(ctx context.Context) <-chan string {
	ch := make(chan string)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(os.Stdin)

		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func playCue(ctx context.Context, player *device.Player, wavData []byte) {
	err := player.Play(ctx, wavData)
	if err != nil {
		slog.Warn("failed to play cue", "err", err)
	}
}
