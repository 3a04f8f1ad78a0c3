package audio

import "bytes"

// Format identifies the container of an uploaded audio file.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatWebM    Format = "webm"
	FormatOgg     Format = "ogg"
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// Sniff detects the container format from the leading bytes of b.
func Sniff(b []byte) Format {
	switch {
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(b, ebmlMagic):
		return FormatWebM
	case bytes.HasPrefix(b, []byte("OggS")):
		return FormatOgg
	default:
		return FormatUnknown
	}
}

// FileName returns a file name with an extension matching the format.
func (f Format) FileName(base string) string {
	if f == FormatUnknown {
		return base
	}

	return base + "." + string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatWebM:
		return "audio/webm"
	case FormatOgg:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
