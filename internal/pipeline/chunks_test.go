package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgoltzsche/speech-relay/internal/audio"
	"github.com/mgoltzsche/speech-relay/internal/failure"
)

func encodeChunk(t *testing.T, sampleRate int, samples ...float32) []byte {
	t.Helper()

	b, err := audio.EncodeWAV(audio.Samples{SampleRate: sampleRate, Channels: [][]float32{samples}})
	require.NoError(t, err)

	return b
}

func TestChunkRecorder(t *testing.T) {
	r := &ChunkRecorder{}

	err := r.Append(encodeChunk(t, 16000, 0.5))
	require.ErrorIs(t, err, failure.ErrInvalidInput, "append before start")

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Append(encodeChunk(t, 16000, 0, 0.5)))
	require.NoError(t, r.Append(encodeChunk(t, 16000, -0.5)))

	err = r.Append(encodeChunk(t, 8000, 0.1))
	require.ErrorIs(t, err, failure.ErrInvalidInput, "sample rate mismatch")

	err = r.Append([]byte("garbage"))
	require.ErrorIs(t, err, failure.ErrInvalidInput, "invalid chunk")

	samples, err := r.Stop()
	require.NoError(t, err)
	require.Equal(t, 16000, samples.SampleRate)
	require.Equal(t, 3, samples.Frames())
	require.InDelta(t, -0.5, samples.Channels[0][2], 1e-4)

	_, err = r.Stop()
	require.ErrorIs(t, err, failure.ErrInvalidInput, "stop twice")
}

func TestChunkRecorderWithoutChunks(t *testing.T) {
	r := &ChunkRecorder{}
	require.NoError(t, r.Start(context.Background()))

	_, err := r.Stop()
	require.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestChunkRecorderMaxBytes(t *testing.T) {
	r := &ChunkRecorder{MaxBytes: int64(audio.EncodedSize(1, 3))}
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, r.Append(encodeChunk(t, 16000, 0, 0.5)))
	require.NoError(t, r.Append(encodeChunk(t, 16000, -0.5)))

	err := r.Append(encodeChunk(t, 16000, 0.25))
	require.ErrorIs(t, err, ErrRecordingTooLarge)
	require.ErrorIs(t, err, failure.ErrInvalidInput)

	err = r.Append(encodeChunk(t, 16000, 0.25))
	require.ErrorIs(t, err, ErrRecordingTooLarge, "chunks after exceeding the limit")

	samples, err := r.Stop()
	require.ErrorIs(t, err, ErrRecordingTooLarge)
	require.Zero(t, samples.Frames())

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Append(encodeChunk(t, 16000, 0.25)))

	samples, err = r.Stop()
	require.NoError(t, err)
	require.Equal(t, 1, samples.Frames())
}
