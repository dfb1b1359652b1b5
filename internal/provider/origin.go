// Package provider implements tile providers backed by an origin data source,
// the on-disk tile cache and an in-memory LRU, with loading done by
// background workers.
package provider

import (
	"context"
	"errors"
	"math"

	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
	"github.com/atlasmap-sc/globelod/pkg/colormap"
)

// ErrTileUnavailable is returned by an origin that has no data for an index.
// The index is not requested again.
var ErrTileUnavailable = errors.New("tile unavailable at origin")

// Origin is the authoritative source of tile data, typically slow.
type Origin interface {
	Fetch(ctx context.Context, idx geo.TileIndex) (*tile.IOResult, error)
}

// ProceduralConfig configures a ProceduralOrigin.
type ProceduralConfig struct {
	TileSize  int
	MaxLevel  int
	Amplitude float64 // peak height in meters
	NoData    float32 // zero selects tile.DefaultNoData
	// HoleLatitude makes samples poleward of this latitude (radians) no-data.
	// Zero disables the hole.
	HoleLatitude float64
	// Ramp, when set, turns the origin into a color source: heights are
	// mapped through it and tiles are three channel uint8.
	Ramp colormap.Colormap
}

// ProceduralOrigin generates deterministic synthetic elevation from a sum of
// sinusoids. Tiles are single channel float32 unless a color ramp is set.
type ProceduralOrigin struct {
	cfg ProceduralConfig
}

// NewProceduralOrigin creates a procedural origin, applying defaults.
func NewProceduralOrigin(cfg ProceduralConfig) *ProceduralOrigin {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 64
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = 12
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 4000
	}
	if cfg.NoData == 0 {
		cfg.NoData = tile.DefaultNoData
	}
	return &ProceduralOrigin{cfg: cfg}
}

// MaxLevel returns the finest level the origin serves.
func (o *ProceduralOrigin) MaxLevel() int { return o.cfg.MaxLevel }

// HeightAt returns the synthetic height at a location.
func (o *ProceduralOrigin) HeightAt(g geo.Geodetic2) float32 {
	if o.cfg.HoleLatitude > 0 && math.Abs(g.Lat) > o.cfg.HoleLatitude {
		return o.cfg.NoData
	}
	h := math.Sin(3*g.Lon)*math.Cos(2*g.Lat) +
		0.5*math.Sin(7*g.Lon+1)*math.Sin(5*g.Lat) +
		0.25*math.Cos(13*g.Lon-2*g.Lat)
	return float32(o.cfg.Amplitude * h / 1.75)
}

// Fetch renders the tile for idx. Samples are taken at pixel centres, rows
// running from north to south.
func (o *ProceduralOrigin) Fetch(ctx context.Context, idx geo.TileIndex) (*tile.IOResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !idx.IsValid() || idx.Level > o.cfg.MaxLevel {
		return nil, ErrTileUnavailable
	}

	size := o.cfg.TileSize
	patch := geo.NewPatch(idx)
	latSpan := patch.MaxLat() - patch.MinLat()
	lonSpan := patch.MaxLon() - patch.MinLon()

	values := make([]float32, size*size)
	for py := 0; py < size; py++ {
		lat := patch.MaxLat() - (float64(py)+0.5)/float64(size)*latSpan
		for px := 0; px < size; px++ {
			lon := patch.MinLon() + (float64(px)+0.5)/float64(size)*lonSpan
			values[py*size+px] = o.HeightAt(geo.Geodetic2{Lat: lat, Lon: lon})
		}
	}

	data := tile.EncodeFloat32(values)
	dataType, channels := tile.Float32, 1
	if o.cfg.Ramp != nil {
		data = o.colorize(values)
		dataType, channels = tile.Uint8, 3
	}
	dims := tile.Dimensions{Width: size, Height: size}
	pd, err := tile.Preprocess(data, dims, dataType, channels, o.cfg.NoData)
	if err != nil {
		return nil, err
	}
	return &tile.IOResult{
		Index:          idx,
		ImageByteCount: len(data),
		ImageData:      data,
		Dimensions:     dims,
		DataType:       dataType,
		Channels:       channels,
		Preprocess:     pd,
	}, nil
}

func (o *ProceduralOrigin) colorize(values []float32) []byte {
	out := make([]byte, 0, 3*len(values))
	for _, v := range values {
		if v == o.cfg.NoData {
			out = append(out, 0, 0, 0)
			continue
		}
		t := (float64(v)/o.cfg.Amplitude + 1) / 2
		r, g, b, _ := o.cfg.Ramp.At(t).RGBA()
		out = append(out, uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
	return out
}
