package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/capture"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Recorder captures microphone input between Start and Stop.
type Recorder struct {
	Device          string
	Channels        int
	FramesPerBuffer int

	mutex      sync.Mutex
	stream     *portaudio.Stream
	sampleRate int
	stop       chan struct{}
	done       chan struct{}
	recorded   []float32
	readErr    error
}

// Start opens the input device and starts recording in the background.
func (r *Recorder) Start(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.stream != nil {
		return errors.New("recorder is already recording")
	}

	device, err := inputDevice(r.Device)
	if err != nil {
		return err
	}

	channels := r.Channels
	if channels < 1 {
		channels = 1
	}

	framesPerBuffer := r.FramesPerBuffer
	if framesPerBuffer < 1 {
		framesPerBuffer = 512 * 9
	}

	in := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, in)
	if err != nil {
		return fmt.Errorf("%w: opening audio input stream: %w", failure.ErrDevice, err)
	}

	err = stream.Start()
	if err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: starting audio input stream: %w", failure.ErrDevice, err)
	}

	r.stream = stream
	r.sampleRate = int(device.DefaultSampleRate)
	r.Channels = channels
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.recorded = r.recorded[:0]
	r.readErr = nil

	go r.record(ctx, stream, in, r.stop, r.done)

	return nil
}

func (r *Recorder) record(ctx context.Context, stream *portaudio.Stream, in []float32, stop, done chan struct{}) {
	defer close(done)

	overflowed := func(err error) bool {
		return errors.Is(err, portaudio.InputOverflowed)
	}

	err := capture.Run(ctx, stream, stop, overflowed, func() {
		r.recorded = append(r.recorded, in...)
	})
	if err != nil {
		slog.Error("failed to read audio stream", "err", err)
		r.readErr = fmt.Errorf("%w: read audio input stream: %w", failure.ErrDevice, err)
	}
}

// Stop stops recording and returns the captured audio at the device's sample rate.
// It fails with failure.ErrDevice when reading from the device failed while recording.
func (r *Recorder) Stop() (audio.Samples, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.stream == nil {
		return audio.Samples{}, errors.New("recorder is not recording")
	}

	close(r.stop)
	<-r.done

	stream := r.stream
	r.stream = nil

	var errs []error
	if err := stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop audio input stream: %w", err))
	}

	if err := stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audio input stream: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		slog.Warn("failed to release audio input stream", "err", err)
	}

	if r.readErr != nil {
		return audio.Samples{}, r.readErr
	}

	samples := audio.Deinterleave(r.recorded, r.Channels, r.sampleRate)

	slog.Debug("recorded audio", "duration", samples.Duration(), "channels", samples.NumChannels(), "sampleRate", samples.SampleRate)

	return samples, nil
}
