package audio

import "math"

// Resample converts s to the given sample rate using linear interpolation.
// All channels are resampled to the frame count of the first one, missing samples become silence.
func Resample(s Samples, sampleRate int) Samples {
	if sampleRate <= 0 || s.SampleRate <= 0 || s.SampleRate == sampleRate || s.Frames() == 0 {
		return s
	}

	ratio := float64(s.SampleRate) / float64(sampleRate)
	frames := int(math.Round(float64(s.Frames()) / ratio))

	if frames < 1 {
		frames = 1
	}

	channels := make([][]float32, len(s.Channels))

	for c, input := range s.Channels {
		output := make([]float32, frames)
		last := len(input) - 1

		if last < 0 {
			channels[c] = output
			continue
		}

		for i := range output {
			pos := float64(i) * ratio
			idx := int(pos)

			if idx >= last {
				output[i] = input[last]
				continue
			}

			frac := float32(pos - float64(idx))
			output[i] = input[idx] + (input[idx+1]-input[idx])*frac
		}

		channels[c] = output
	}

	return Samples{SampleRate: sampleRate, Channels: channels}
}
