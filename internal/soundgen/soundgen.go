// Package soundgen generates the short cues played when recording starts and stops.
package soundgen

import (
	"fmt"
	"math"
	"time"

	"github.com/mgoltzsche/speech-relay/internal/audio"
)

// Generator generates sine tones as WAV files.
type Generator struct {
	SampleRate int
}

// StartCue returns a rising two-tone beep.
func (g *Generator) StartCue() ([]byte, error) {
	return g.Tones(150*time.Millisecond, 440, 660)
}

// StopCue returns a falling two-tone beep.
func (g *Generator) StopCue() ([]byte, error) {
	return g.Tones(150*time.Millisecond, 660, 440)
}

// Tones returns the given frequencies played one after another, each for the given duration.
func (g *Generator) Tones(duration time.Duration, frequencies ...float64) ([]byte, error) {
	samples := audio.Samples{SampleRate: g.sampleRate(), Channels: [][]float32{{}}}

	for _, f := range frequencies {
		tone, err := samples.Append(g.Tone(f, duration))
		if err != nil {
			return nil, err
		}

		samples = tone
	}

	b, err := audio.EncodeWAV(samples)
	if err != nil {
		return nil, fmt.Errorf("encode tones: %w", err)
	}

	return b, nil
}

// Tone returns a sine tone that fades in and out to avoid clicks.
func (g *Generator) Tone(frequency float64, duration time.Duration) audio.Samples {
	rate := g.sampleRate()
	data := make([]float32, int(math.Ceil(float64(duration)*float64(rate)/float64(time.Second))))
	fade := len(data) / 10

	for i := range data {
		phase := frequency * float64(i) / float64(rate)
		amplitude := 0.5

		if fade > 0 {
			switch {
			case i < fade:
				amplitude *= float64(i) / float64(fade)
			case i >= len(data)-fade:
				amplitude *= float64(len(data)-1-i) / float64(fade)
			}
		}

		data[i] = float32(math.Sin(2*math.Pi*phase) * amplitude)
	}

	return audio.Samples{SampleRate: rate, Channels: [][]float32{data}}
}

func (g *Generator) sampleRate() int {
	if g.SampleRate > 0 {
		return g.SampleRate
	}

	return 16000
}
