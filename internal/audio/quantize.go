package audio

import (
	"fmt"
	"math"
	"strings"
)

// Quantization selects how float amplitudes are scaled to 16-bit integers.
type Quantization int

const (
	// QuantizeAsymmetric scales negative values by 32768 and non-negative values by 32767.
	QuantizeAsymmetric Quantization = iota
	// QuantizeSymmetric scales all values by 32767.
	QuantizeSymmetric
)

func ParseQuantization(s string) (Quantization, error) {
	switch strings.ToLower(s) {
	case "", "asymmetric":
		return QuantizeAsymmetric, nil
	case "symmetric":
		return QuantizeSymmetric, nil
	default:
		return 0, fmt.Errorf("unsupported quantization %q, supported values are asymmetric, symmetric", s)
	}
}

func (q Quantization) String() string {
	if q == QuantizeSymmetric {
		return "symmetric"
	}

	return "asymmetric"
}

// Quantize clamps v to [-1, 1] and converts it to a signed 16-bit sample, truncating toward zero.
func (q Quantization) Quantize(v float32) int16 {
	if math.IsNaN(float64(v)) {
		return 0
	}

	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}

	if v < 0 && q == QuantizeAsymmetric {
		return int16(float64(v) * 32768)
	}

	return int16(float64(v) * 32767)
}

// Dequantize is the inverse of Quantize.
func (q Quantization) Dequantize(v int16) float32 {
	if v < 0 && q == QuantizeAsymmetric {
		return float32(float64(v) / 32768)
	}

	f := float64(v) / 32767
	if f < -1 {
		f = -1
	}

	return float32(f)
}
