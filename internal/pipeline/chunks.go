package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// ErrRecordingTooLarge is returned when a recording exceeds the ChunkRecorder's MaxBytes.
var ErrRecordingTooLarge = fmt.Errorf("%w: recording is too large", failure.ErrInvalidInput)

// ChunkRecorder is a Recorder that is fed with WAV encoded chunks by a remote client.
type ChunkRecorder struct {
	Decoder audio.Encoder
	// MaxBytes limits the encoded size of a whole recording. Zero means unlimited.
	MaxBytes int64

	mutex     sync.Mutex
	recording bool
	exceeded  bool
	samples   audio.Samples
	chunks    int
}

func (r *ChunkRecorder) Start(context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.recording = true
	r.exceeded = false
	r.samples = audio.Samples{}
	r.chunks = 0

	return nil
}

// Append decodes a WAV chunk and adds it to the recording.
// All chunks of a recording must share the same sample rate and channel count.
// Once the recording exceeds MaxBytes all further chunks are rejected
// and Stop fails with ErrRecordingTooLarge.
func (r *ChunkRecorder) Append(wavChunk []byte) error {
	samples, err := r.Decoder.Decode(wavChunk)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.recording {
		return fmt.Errorf("%w: received audio chunk while not recording", failure.ErrInvalidInput)
	}

	if r.exceeded {
		return ErrRecordingTooLarge
	}

	size := int64(audio.EncodedSize(samples.NumChannels(), r.samples.Frames()+samples.Frames()))
	if r.MaxBytes > 0 && size > r.MaxBytes {
		r.exceeded = true
		r.samples = audio.Samples{}

		return fmt.Errorf("%w: %d bytes exceed the limit of %d bytes", ErrRecordingTooLarge, size, r.MaxBytes)
	}

	joined, err := r.samples.Append(samples)
	if err != nil {
		return fmt.Errorf("append audio chunk %d: %w", r.chunks, err)
	}

	r.samples = joined
	r.chunks++

	return nil
}

func (r *ChunkRecorder) Stop() (audio.Samples, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.recording {
		return audio.Samples{}, fmt.Errorf("%w: not recording", failure.ErrInvalidInput)
	}

	samples := r.samples
	r.recording = false
	r.samples = audio.Samples{}

	if r.exceeded {
		return audio.Samples{}, ErrRecordingTooLarge
	}

	if r.chunks == 0 {
		return samples, fmt.Errorf("%w: no audio received", failure.ErrInvalidInput)
	}

	return samples, nil
}
