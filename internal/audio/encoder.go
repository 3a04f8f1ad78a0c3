package audio

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	// HeaderSize is the size of the RIFF/WAVE header the encoder writes.
	HeaderSize = 44
	// BitDepth is the bit depth of the encoded PCM payload.
	BitDepth = 16

	wavFormatPCM = 1
)

// Encoder serializes Samples into 16-bit PCM WAV files.
type Encoder struct {
	Quantization Quantization
}

// EncodeWAV encodes s using the default (asymmetric) quantization.
func EncodeWAV(s Samples) ([]byte, error) {
	return Encoder{}.Encode(s)
}

// Encode returns a WAV file of exactly HeaderSize + channels*frames*2 bytes.
func (e Encoder) Encode(s Samples) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}

	channels := s.NumChannels()
	frames := s.Frames()
	data := make([]int, 0, channels*frames)

	for i := 0; i < frames; i++ {
		for _, ch := range s.Channels {
			data = append(data, int(e.Quantization.Quantize(ch[i])))
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: s.SampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: BitDepth,
	}

	wavFile := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(wavFile, s.SampleRate, BitDepth, channels, wavFormatPCM)

	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	b, err := io.ReadAll(wavFile.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}

	if expected := EncodedSize(channels, frames); len(b) != expected {
		return nil, fmt.Errorf("encoded wav has %d bytes but expected %d", len(b), expected)
	}

	return b, nil
}

// EncodedSize returns the size of the WAV file Encode produces.
func EncodedSize(channels, frames int) int {
	return HeaderSize + channels*frames*BitDepth/8
}
