package audio

import (
	"fmt"
	"slices"
	"time"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Samples holds decoded audio as per-channel float amplitudes within [-1, 1].
type Samples struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count.
func (s Samples) NumChannels() int {
	return len(s.Channels)
}

// Frames returns the number of samples per channel.
func (s Samples) Frames() int {
	if len(s.Channels) == 0 {
		return 0
	}

	return len(s.Channels[0])
}

// Duration returns the playback duration.
func (s Samples) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}

	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Validate returns an error wrapping failure.ErrInvalidInput when s cannot be encoded.
func (s Samples) Validate() error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive but was %d", failure.ErrInvalidInput, s.SampleRate)
	}

	if len(s.Channels) == 0 {
		return fmt.Errorf("%w: audio has no channels", failure.ErrInvalidInput)
	}

	if len(s.Channels) > 0xFFFF {
		return fmt.Errorf("%w: too many channels: %d", failure.ErrInvalidInput, len(s.Channels))
	}

	frames := len(s.Channels[0])
	if frames == 0 {
		return fmt.Errorf("%w: audio has no samples", failure.ErrInvalidInput)
	}

	for i, ch := range s.Channels[1:] {
		if len(ch) != frames {
			return fmt.Errorf("%w: channel %d has %d samples but channel 0 has %d", failure.ErrInvalidInput, i+1, len(ch), frames)
		}
	}

	return nil
}

// Mono returns a single channel copy of s, averaging all channels.
// Channels shorter than the first one are padded with silence, longer ones are truncated.
func (s Samples) Mono() Samples {
	if len(s.Channels) == 1 {
		return s
	}

	mono := make([]float32, s.Frames())

	for _, ch := range s.Channels {
		for i, v := range ch[:min(len(ch), len(mono))] {
			mono[i] += v
		}
	}

	if n := float32(len(s.Channels)); n > 0 {
		for i := range mono {
			mono[i] /= n
		}
	}

	return Samples{SampleRate: s.SampleRate, Channels: [][]float32{mono}}
}

// Append returns the concatenation of s and other.
// Both must have the same sample rate and channel count.
// The channels of s are grown in place, so s must not be used afterwards.
func (s Samples) Append(other Samples) (Samples, error) {
	if len(s.Channels) == 0 {
		channels := make([][]float32, len(other.Channels))
		for i, ch := range other.Channels {
			channels[i] = slices.Clone(ch)
		}

		return Samples{SampleRate: other.SampleRate, Channels: channels}, nil
	}

	if other.SampleRate != s.SampleRate || len(other.Channels) != len(s.Channels) {
		return s, fmt.Errorf("%w: cannot append %d channel %dHz audio to %d channel %dHz audio",
			failure.ErrInvalidInput, len(other.Channels), other.SampleRate, len(s.Channels), s.SampleRate)
	}

	channels := make([][]float32, len(s.Channels))
	for i := range s.Channels {
		channels[i] = append(s.Channels[i], other.Channels[i]...)
	}

	return Samples{SampleRate: s.SampleRate, Channels: channels}, nil
}

// Deinterleave splits interleaved frames into per-channel samples.
func Deinterleave(interleaved []float32, channels, sampleRate int) Samples {
	if channels < 1 {
		channels = 1
	}

	frames := len(interleaved) / channels
	result := make([][]float32, channels)

	for c := range result {
		result[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			result[c][i] = interleaved[i*channels+c]
		}
	}

	return Samples{SampleRate: sampleRate, Channels: result}
}
