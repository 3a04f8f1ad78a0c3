package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// DecodeWAV parses a 16-bit PCM WAV file using asymmetric dequantization.
func DecodeWAV(b []byte) (Samples, error) {
	return Encoder{}.Decode(b)
}

// Decode parses a 16-bit PCM WAV file into Samples.
func (e Encoder) Decode(b []byte) (Samples, error) {
	decoder := wav.NewDecoder(bytes.NewReader(b))

	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return Samples{}, fmt.Errorf("%w: read wave file headers: %w", failure.ErrInvalidInput, err)
	}

	if !decoder.IsValidFile() {
		return Samples{}, fmt.Errorf("%w: not a valid wave file", failure.ErrInvalidInput)
	}

	if decoder.SampleBitDepth() != BitDepth {
		return Samples{}, fmt.Errorf("%w: wave data with unsupported bit depth of %d provided, expected %d", failure.ErrInvalidInput, decoder.SampleBitDepth(), BitDepth)
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Samples{}, fmt.Errorf("%w: read full pcm buffer: %w", failure.ErrInvalidInput, err)
	}

	channels := int(decoder.NumChans)
	interleaved := make([]float32, len(buffer.Data))

	for i, v := range buffer.Data {
		interleaved[i] = e.Quantization.Dequantize(int16(v))
	}

	return Deinterleave(interleaved, channels, int(decoder.SampleRate)), nil
}
