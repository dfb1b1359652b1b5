package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmap-sc/globelod/internal/cache"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/globe"
	"github.com/atlasmap-sc/globelod/internal/render"
	"github.com/atlasmap-sc/globelod/internal/service"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

type staticProvider struct {
	name  string
	tiles map[geo.TileIndex]tile.Tile
}

func (p *staticProvider) Name() string           { return p.name }
func (p *staticProvider) MaxLevel() int          { return 6 }
func (p *staticProvider) DefaultTile() tile.Tile { return tile.Tile{Status: tile.StatusOK} }
func (p *staticProvider) Update()                {}

func (p *staticProvider) Tile(idx geo.TileIndex) tile.Tile {
	if t, ok := p.tiles[idx]; ok {
		return t
	}
	return tile.Tile{Status: tile.StatusUnavailable}
}

// testServer holds the test server and its dependencies
type testServer struct {
	server *httptest.Server
	globe  *globe.Globe
	cache  *cache.Manager
	layers *LayerRegistry
}

// setupTestServer initializes all components and returns a test server
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	providers := tile.NewProviderManager()
	providers.Group(tile.HeightLayers).Add(&staticProvider{
		name: "dem",
		tiles: map[geo.TileIndex]tile.Tile{
			geo.NewTileIndex(0, 0, 0): {
				Status:     tile.StatusOK,
				Data:       tile.EncodeFloat32([]float32{10, 20, 30, 40}),
				Dimensions: tile.Dimensions{Width: 2, Height: 2},
				DataType:   tile.Float32,
				Channels:   1,
				Preprocess: &tile.PreprocessData{
					MinValues:      []float32{10},
					MaxValues:      []float32{40},
					HasMissingData: []bool{false},
				},
			},
		},
	})
	providers.Group(tile.ColorLayers).Add(&staticProvider{name: "imagery"})

	g, err := globe.New(providers, globe.Config{Ellipsoid: geo.NewSphere(1000), MaxLevel: 4})
	require.NoError(t, err)

	cacheManager, err := cache.NewManager(cache.Config{
		PreviewSizeMB:  8,
		PreviewTTL:     5 * time.Minute,
		QueryCacheSize: 16,
	})
	require.NoError(t, err)

	layers := NewLayerRegistry(providers)
	layers.Register("dem", tile.HeightLayers, true)
	layers.Register("imagery", tile.ColorLayers, true)

	router := NewRouter(RouterConfig{
		Globe: g,
		Service: service.NewTileService(service.TileServiceConfig{
			Globe:    g,
			Cache:    cacheManager,
			Renderer: render.NewTileRenderer(render.Config{TileSize: 32}),
		}),
		Cache:       cacheManager,
		Layers:      layers,
		CORSOrigins: []string{"http://localhost:3000"},
	})

	ts := &testServer{
		server: httptest.NewServer(router),
		globe:  g,
		cache:  cacheManager,
		layers: layers,
	}
	t.Cleanup(ts.close)
	return ts
}

// close cleans up test server resources
func (ts *testServer) close() {
	ts.server.Close()
	ts.cache.Close()
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// assertPNG verifies the response body is a valid PNG image
func assertPNG(t *testing.T, body []byte) {
	t.Helper()
	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	require.GreaterOrEqual(t, len(body), len(pngMagic), "response too short to be a PNG")
	assert.Equal(t, pngMagic, body[:len(pngMagic)])
}

// assertJSONFields verifies the response contains expected JSON fields
func assertJSONFields(t *testing.T, body []byte, expectedFields []string) {
	t.Helper()
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	for _, field := range expectedFields {
		assert.Contains(t, result, field)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTileEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectPNG      bool
	}{
		{"loaded tile", "/tiles/dem/0/0/0.png", http.StatusOK, true},
		{"from ancestor", "/tiles/dem/3/1/2.png?colormap=viridis", http.StatusOK, true},
		{"height range", "/tiles/dem/1/0/0.png?min=0&max=100", http.StatusOK, true},
		{"nothing loaded", "/tiles/dem/0/1/0.png", http.StatusOK, true},
		{"color layer", "/tiles/imagery/0/0/0.png", http.StatusOK, true},
		{"unknown layer", "/tiles/bathymetry/0/0/0.png", http.StatusNotFound, false},
		{"invalid level", "/tiles/dem/abc/0/0.png", http.StatusBadRequest, false},
		{"index outside level", "/tiles/dem/1/4/0.png", http.StatusBadRequest, false},
		{"negative level", "/tiles/dem/-1/0/0.png", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectPNG {
				assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
				assertPNG(t, body)
			}
		})
	}
}

func TestTileEndpoint_UsesPreviewCache(t *testing.T) {
	ts := setupTestServer(t)

	_, first := ts.do(t, http.MethodGet, "/tiles/dem/2/1/1.png?colormap=magma", "")
	cached, ok := ts.cache.GetPreview(cache.PreviewKey("dem", geo.NewTileIndex(2, 1, 1), 2, "magma"))
	require.True(t, ok)
	assert.Equal(t, first, cached)
}

func TestStatsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assertJSONFields(t, body, []string{"globe", "cache", "layers"})
}

func TestLayersEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	_, body := ts.do(t, http.MethodGet, "/api/layers", "")
	var layers []LayerInfo
	require.NoError(t, json.Unmarshal(body, &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "dem", layers[0].Name)
	assert.Equal(t, tile.HeightLayers, layers[0].Kind)
	assert.Equal(t, 6, layers[0].MaxLevel)
	assert.True(t, layers[0].Enabled)
	assert.Nil(t, layers[0].Stats)

	resp, _ := ts.do(t, http.MethodPut, "/api/layers/dem?enabled=false", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, ts.globe.TileProviderGroup(tile.HeightLayers).ActiveProviders())
	assert.False(t, ts.layers.Layers()[0].Enabled)

	resp, _ = ts.do(t, http.MethodPut, "/api/layers/dem?enabled=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/layers/nope?enabled=true", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChunksEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/chunks", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var chunks service.ChunksResponse
	require.NoError(t, json.Unmarshal(body, &chunks))
	require.Len(t, chunks.Chunks, 2)
	assert.Equal(t, geo.NewTileIndex(0, 0, 0), chunks.Chunks[0].Index)
	assert.Equal(t, geo.NewTileIndex(0, 1, 0), chunks.Chunks[1].Index)
}

func TestHeightsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/chunks/2/0/1/heights", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var heights service.HeightsResponse
	require.NoError(t, json.Unmarshal(body, &heights))
	assert.True(t, heights.Available)
	assert.Equal(t, float32(10), heights.Min)
	assert.Equal(t, float32(40), heights.Max)

	resp, _ = ts.do(t, http.MethodGet, "/api/chunks/0/2/0/heights", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSavedCameraEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	body := `{"position": [5000, 0, 0], "target": [0, 0, 0], "vertical_fov": 1.0}`
	resp, _ := ts.do(t, http.MethodPut, "/api/camera", body)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cam := ts.globe.SavedCamera()
	require.NotNil(t, cam)
	assert.Equal(t, 5000.0, cam.Position.X)
	assert.Equal(t, 1.0, cam.AspectRatio)
	assert.Equal(t, 1.0, cam.Up.Z)

	_, stats := ts.do(t, http.MethodGet, "/api/stats", "")
	assertJSONFields(t, stats, []string{"saved_camera"})

	resp, _ = ts.do(t, http.MethodPut, "/api/camera", `{"position": [1, 0, 0], "target": [1, 0, 0], "vertical_fov": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, "/api/camera", `{"vertical_fov": 4}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPut, "/api/camera", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/camera", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, ts.globe.SavedCamera())
}
