package tile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sample decodes the value of one channel at pixel (x, y). Payloads are
// row-major, interleaved, little endian.
func Sample(data []byte, dims Dimensions, dataType DataType, channels, x, y, channel int) float32 {
	size := dataType.Size()
	off := ((y*dims.Width+x)*channels + channel) * size
	if size == 0 || off < 0 || off+size > len(data) {
		return float32(math.NaN())
	}
	switch dataType {
	case Uint8:
		return float32(data[off])
	case Int16:
		return float32(int16(binary.LittleEndian.Uint16(data[off:])))
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
}

// Preprocess computes per-channel min, max and missing data flags. Samples equal
// to noData, and NaNs, count as missing and are excluded from min/max.
func Preprocess(data []byte, dims Dimensions, dataType DataType, channels int, noData float32) (*PreprocessData, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	want := dims.Width * dims.Height * channels * dataType.Size()
	if want == 0 || len(data) != want {
		return nil, fmt.Errorf("payload size mismatch: got %d bytes, want %d", len(data), want)
	}

	pd := &PreprocessData{
		MinValues:      make([]float32, channels),
		MaxValues:      make([]float32, channels),
		HasMissingData: make([]bool, channels),
	}
	seen := make([]bool, channels)

	for y := 0; y < dims.Height; y++ {
		for x := 0; x < dims.Width; x++ {
			for c := 0; c < channels; c++ {
				v := Sample(data, dims, dataType, channels, x, y, c)
				if v == noData || v != v {
					pd.HasMissingData[c] = true
					continue
				}
				if !seen[c] {
					pd.MinValues[c], pd.MaxValues[c] = v, v
					seen[c] = true
					continue
				}
				if v < pd.MinValues[c] {
					pd.MinValues[c] = v
				}
				if v > pd.MaxValues[c] {
					pd.MaxValues[c] = v
				}
			}
		}
	}
	return pd, nil
}

// EncodeFloat32 packs samples as little endian float32.
func EncodeFloat32(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
