// Package render provides tile preview rendering using fogleman/gg.
package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/atlasmap-sc/globelod/internal/tile"
	"github.com/atlasmap-sc/globelod/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	TileSize        int
	DefaultColormap string
	// DepthOutline frames previews drawn from an ancestor tile with a color
	// per depth.
	DepthOutline bool
}

// TileRenderer renders tile payloads to PNG previews.
type TileRenderer struct {
	config      Config
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewTileRenderer creates a new tile renderer.
func NewTileRenderer(cfg Config) *TileRenderer {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if _, ok := colormap.Lookup(cfg.DefaultColormap); !ok {
		cfg.DefaultColormap = "terrain"
	}
	return &TileRenderer{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.TileSize, cfg.TileSize)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// Colormap resolves a colormap name, falling back to the default.
func (r *TileRenderer) Colormap(name string) colormap.Colormap {
	if cmap, ok := colormap.Lookup(name); ok {
		return cmap
	}
	cmap, _ := colormap.Lookup(r.config.DefaultColormap)
	return cmap
}

// RenderHeightTile renders the part of tt's tile that covers the requested
// patch. Heights are mapped onto cmap between minH and maxH; uint8 tiles with
// three or more channels are drawn as RGB. Samples equal to noData (zero
// selects tile.DefaultNoData) and NaN samples stay transparent.
func (r *TileRenderer) RenderHeightTile(tt tile.TileAndTransform, minH, maxH, noData float32, cmap colormap.Colormap) ([]byte, error) {
	t := tt.Tile
	if t.Status != tile.StatusOK {
		return nil, errors.New("tile is not loaded")
	}
	if cmap == nil {
		cmap = r.Colormap("")
	}
	if noData == 0 {
		noData = tile.DefaultNoData
	}

	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	dc.SetColor(color.Transparent)
	dc.Clear()

	region := tt.Region
	cols, rows := max(region.NumPixels.X, 1), max(region.NumPixels.Y, 1)
	tileSize := float64(r.config.TileSize)
	cellW := tileSize / float64(cols)
	cellH := tileSize / float64(rows)

	heightRange := maxH - minH
	if heightRange == 0 {
		heightRange = 1
	}
	rgb := t.DataType == tile.Uint8 && t.Channels >= 3

	for j := 0; j < rows; j++ {
		sy := min(region.Start.Y+j, t.Dimensions.Height-1)
		for i := 0; i < cols; i++ {
			sx := min(region.Start.X+i, t.Dimensions.Width-1)

			var c color.Color
			if rgb {
				c = color.RGBA{
					R: uint8(tile.Sample(t.Data, t.Dimensions, t.DataType, t.Channels, sx, sy, 0)),
					G: uint8(tile.Sample(t.Data, t.Dimensions, t.DataType, t.Channels, sx, sy, 1)),
					B: uint8(tile.Sample(t.Data, t.Dimensions, t.DataType, t.Channels, sx, sy, 2)),
					A: 255,
				}
			} else {
				v := tile.Sample(t.Data, t.Dimensions, t.DataType, t.Channels, sx, sy, 0)
				if v == noData || math.IsNaN(float64(v)) {
					continue
				}
				c = cmap.At(float64(v-minH) / float64(heightRange))
			}

			dc.SetColor(c)
			dc.DrawRectangle(float64(i)*cellW, float64(j)*cellH, cellW, cellH)
			dc.Fill()
		}
	}

	if r.config.DepthOutline && tt.Depth > 0 {
		dc.SetColor(colormap.Categorical.AtIndex(tt.Depth))
		dc.SetLineWidth(2)
		dc.DrawRectangle(1, 1, tileSize-2, tileSize-2)
		dc.Stroke()
	}

	return r.encodeContext(dc)
}

func (r *TileRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// CreateEmptyTile creates an empty transparent tile.
func (r *TileRenderer) CreateEmptyTile() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.TileSize, r.config.TileSize))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255   // R
		img.Pix[i+1] = 255 // G
		img.Pix[i+2] = 255 // B
		img.Pix[i+3] = 0   // A (transparent)
	}

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
