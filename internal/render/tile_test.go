package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
	"github.com/atlasmap-sc/globelod/pkg/colormap"
)

// heightTile builds a 2x2 float32 tile with rows {0, 100}, {200, NaN}.
func heightTile() tile.Tile {
	return tile.Tile{
		Status:     tile.StatusOK,
		Data:       tile.EncodeFloat32([]float32{0, 100, 200, float32(math.NaN())}),
		Dimensions: tile.Dimensions{Width: 2, Height: 2},
		DataType:   tile.Float32,
		Channels:   1,
	}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestRenderHeightTile_FullRegion(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 8})
	tt := tile.TileAndTransform{
		Tile:   heightTile(),
		Index:  geo.NewTileIndex(0, 0, 0),
		Region: tile.NewPixelRegion(0, 0, 2, 2),
	}

	out, err := r.RenderHeightTile(tt, 0, 200, 0, colormap.Grayscale)
	require.NoError(t, err)
	img := decode(t, out)

	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgbaAt(img, 1, 1))
	assert.Equal(t, color.RGBA{127, 127, 127, 255}, rgbaAt(img, 6, 1))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 1, 6))
	assert.Equal(t, uint8(0), rgbaAt(img, 6, 6).A, "missing sample is transparent")
}

func TestRenderHeightTile_SubRegion(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 4})
	tt := tile.TileAndTransform{
		Tile:   heightTile(),
		Depth:  1,
		Region: tile.NewPixelRegion(1, 0, 1, 1),
	}

	out, err := r.RenderHeightTile(tt, 0, 200, 0, colormap.Grayscale)
	require.NoError(t, err)
	img := decode(t, out)

	for _, p := range [][2]int{{0, 0}, {3, 0}, {0, 3}, {3, 3}} {
		assert.Equal(t, color.RGBA{127, 127, 127, 255}, rgbaAt(img, p[0], p[1]))
	}
}

func TestRenderHeightTile_SubPixelRegion(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 4})
	tt := tile.TileAndTransform{
		Tile:   heightTile(),
		Depth:  3,
		Region: tile.NewPixelRegion(0, 1, 0, 0),
	}

	out, err := r.RenderHeightTile(tt, 0, 200, 0, colormap.Grayscale)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(decode(t, out), 2, 2))
}

func TestRenderHeightTile_LayerNoData(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 4})
	tt := tile.TileAndTransform{
		Tile: tile.Tile{
			Status:     tile.StatusOK,
			Data:       tile.EncodeFloat32([]float32{-9999, 50, tile.DefaultNoData, 100}),
			Dimensions: tile.Dimensions{Width: 2, Height: 2},
			DataType:   tile.Float32,
			Channels:   1,
		},
		Region: tile.NewPixelRegion(0, 0, 2, 2),
	}

	out, err := r.RenderHeightTile(tt, 0, 100, -9999, colormap.Grayscale)
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, uint8(0), rgbaAt(img, 0, 0).A, "layer no-data is transparent")
	assert.Equal(t, color.RGBA{127, 127, 127, 255}, rgbaAt(img, 3, 0))
	assert.Equal(t, uint8(255), rgbaAt(img, 0, 3).A, "default no-data is a value for this layer")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 3, 3))

	out, err = r.RenderHeightTile(tt, 0, 100, 0, colormap.Grayscale)
	require.NoError(t, err)
	img = decode(t, out)
	assert.Equal(t, uint8(0), rgbaAt(img, 0, 3).A)
	assert.Equal(t, uint8(255), rgbaAt(img, 0, 0).A)
}

func TestRenderHeightTile_RGB(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 2})
	tt := tile.TileAndTransform{
		Tile: tile.Tile{
			Status:     tile.StatusOK,
			Data:       []byte{10, 20, 30},
			Dimensions: tile.Dimensions{Width: 1, Height: 1},
			DataType:   tile.Uint8,
			Channels:   3,
		},
		Region: tile.NewPixelRegion(0, 0, 1, 1),
	}

	out, err := r.RenderHeightTile(tt, 0, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, rgbaAt(decode(t, out), 0, 0))
}

func TestRenderHeightTile_NotLoaded(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 2})
	_, err := r.RenderHeightTile(tile.TileAndTransform{}, 0, 1, 0, nil)
	assert.Error(t, err)
}

func TestColormapFallback(t *testing.T) {
	r := NewTileRenderer(Config{DefaultColormap: "nope"})
	assert.Equal(t, colormap.Terrain, r.Colormap("unknown"))
	assert.Equal(t, colormap.Magma, r.Colormap("magma"))
}

func TestCreateEmptyTile(t *testing.T) {
	r := NewTileRenderer(Config{TileSize: 16})
	out, err := r.CreateEmptyTile()
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	assert.Equal(t, uint8(0), rgbaAt(img, 3, 3).A)
}
