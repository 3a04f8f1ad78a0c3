package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Player plays WAV audio on an output device.
type Player struct {
	Device string
}

// Play decodes the WAV data and blocks until it has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	samples, err := audio.DecodeWAV(wavData)
	if err != nil {
		return fmt.Errorf("decode speech audio: %w", err)
	}

	if samples.Frames() == 0 {
		return nil
	}

	device, err := outputDevice(p.Device)
	if err != nil {
		return err
	}

	samples = audio.Resample(samples, int(device.DefaultSampleRate))
	channels := samples.NumChannels()
	framesPerBuffer := 512 * 9
	out := make([]float32, framesPerBuffer*channels)

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, out)
	if err != nil {
		return fmt.Errorf("%w: open audio output stream: %w", failure.ErrDevice, err)
	}
	defer stream.Close()

	err = stream.Start()
	if err != nil {
		return fmt.Errorf("%w: start audio output stream: %w", failure.ErrDevice, err)
	}
	defer stream.Stop()

	frames := samples.Frames()

	for pos := 0; pos < frames; pos += framesPerBuffer {
		for i := 0; i < framesPerBuffer; i++ {
			for c := 0; c < channels; c++ {
				var v float32
				if pos+i < frames {
					v = samples.Channels[c][pos+i]
				}

				out[i*channels+c] = v
			}
		}

		err = stream.Write()
		if err != nil {
			// Output underflows happen occasionally without audible impact.
			slog.Warn("play audio: write chunk", "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}
