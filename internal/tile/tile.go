// Package tile provides tile payloads, pixel regions, tile providers and the
// tile selector used to pick the best available data for a patch.
package tile

import (
	"fmt"

	"github.com/atlasmap-sc/globelod/internal/geo"
)

// Status describes whether a tile can be used.
type Status int

const (
	// StatusUnavailable means the tile is not loaded yet or the origin has no data.
	StatusUnavailable Status = iota
	// StatusOK means the payload is ready.
	StatusOK
	// StatusOutOfRange means the index is outside what the provider serves.
	StatusOutOfRange
	// StatusIOError means loading failed.
	StatusIOError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusIOError:
		return "io_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// DefaultNoData is the sample value that marks missing data unless a layer
// configures another one.
const DefaultNoData float32 = -32768

// DataType is the per-channel sample type of a payload.
type DataType string

const (
	Uint8   DataType = "uint8"
	Int16   DataType = "int16"
	Float32 DataType = "float32"
)

// Size returns the number of bytes per sample.
func (d DataType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int16:
		return 2
	case Float32:
		return 4
	default:
		return 0
	}
}

// PreprocessData holds per-channel statistics of a payload.
type PreprocessData struct {
	MinValues      []float32 `json:"min_values"`
	MaxValues      []float32 `json:"max_values"`
	HasMissingData []bool    `json:"has_missing_data"`
}

// Dimensions is the pixel size of a tile.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IOResult is a loaded tile record as produced by an origin or stored in the
// disk cache.
type IOResult struct {
	Index          geo.TileIndex
	ImageByteCount int
	ImageData      []byte
	Dimensions     Dimensions
	DataType       DataType
	Channels       int
	Preprocess     *PreprocessData
	Err            error
}

// Tile is a payload ready for use by the renderer and the bounding volume code.
type Tile struct {
	Status     Status
	Data       []byte
	Dimensions Dimensions
	DataType   DataType
	Channels   int
	Preprocess *PreprocessData
}

// FullRegion returns the region covering every pixel of the tile.
func (t Tile) FullRegion() PixelRegion {
	return NewPixelRegion(0, 0, t.Dimensions.Width, t.Dimensions.Height)
}

// FromIOResult converts a load result to a tile.
func FromIOResult(res *IOResult) Tile {
	if res == nil {
		return Tile{Status: StatusUnavailable}
	}
	if res.Err != nil {
		return Tile{Status: StatusIOError}
	}
	return Tile{
		Status:     StatusOK,
		Data:       res.ImageData,
		Dimensions: res.Dimensions,
		DataType:   res.DataType,
		Channels:   res.Channels,
		Preprocess: res.Preprocess,
	}
}
