// Package vad detects whether a recording contains speech.
package vad

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/mgoltzsche/speech-relay/internal/audio"
)

// SampleRate is the sample rate the silero model operates on.
const SampleRate = 16000

// Detector detects speech using the silero VAD model.
type Detector struct {
	ModelPath string
	Threshold float32
}

// DetectSpeech reports whether the samples contain at least one speech segment.
func (d *Detector) DetectSpeech(samples audio.Samples) (bool, error) {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}

	sileroVAD, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            d.ModelPath,
		SampleRate:           SampleRate,
		Threshold:            threshold,
		MinSilenceDurationMs: 0,
		SpeechPadMs:          0,
	})
	if err != nil {
		return false, fmt.Errorf("create silero vad: %w", err)
	}

	defer func() {
		if err := sileroVAD.Destroy(); err != nil {
			slog.Warn("destroy silero vad", "err", err)
		}
	}()

	start := time.Now()
	pcm := prepareInput(samples)

	segments, err := sileroVAD.Detect(pcm)
	if err != nil {
		return false, fmt.Errorf("detect voice: %w", err)
	}

	detected := len(segments) > 0

	slog.Debug("voice activity detection finished", "detected", detected, "segments", len(segments), "duration", time.Since(start))

	return detected, nil
}

// prepareInput converts the samples to mono audio at the model's sample rate.
func prepareInput(samples audio.Samples) []float32 {
	mono := audio.Resample(samples.Mono(), SampleRate)
	if len(mono.Channels) == 0 {
		return nil
	}

	return mono.Channels[0]
}
