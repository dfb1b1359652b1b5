// Package api provides HTTP handlers for the globe tile server.
package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/cache"
	"github.com/atlasmap-sc/globelod/internal/camera"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/globe"
	"github.com/atlasmap-sc/globelod/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Globe       *globe.Globe
	Service     *service.TileService
	Cache       *cache.Manager
	Layers      *LayerRegistry
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tiles/{layer}/{level}/{x}/{y}.png", tileHandler(cfg.Service))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", statsHandler(cfg.Globe, cfg.Cache, cfg.Layers))
		r.Get("/layers", layersHandler(cfg.Layers))
		r.Put("/layers/{layer}", layerToggleHandler(cfg.Layers))
		r.Get("/chunks", chunksHandler(cfg.Service))
		r.Get("/chunks/{level}/{x}/{y}/heights", heightsHandler(cfg.Service))
		r.Put("/camera", savedCameraHandler(cfg.Globe))
		r.Delete("/camera", clearSavedCameraHandler(cfg.Globe))
	})

	return r
}

func parseIndex(r *http.Request) (geo.TileIndex, error) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		return geo.TileIndex{}, errors.New("invalid level")
	}
	x, err := strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		return geo.TileIndex{}, errors.New("invalid x")
	}
	y, err := strconv.Atoi(chi.URLParam(r, "y"))
	if err != nil {
		return geo.TileIndex{}, errors.New("invalid y")
	}
	idx := geo.NewTileIndex(level, x, y)
	if !idx.IsValid() {
		return geo.TileIndex{}, globe.ErrInvalidIndex
	}
	return idx, nil
}

func parseHeightRange(query url.Values) service.HeightRange {
	var hr service.HeightRange
	if v, ok := parseFloat32(query.Get("min")); ok {
		hr.Min = &v
	}
	if v, ok := parseFloat32(query.Get("max")); ok {
		hr.Max = &v
	}
	return hr
}

func parseFloat32(raw string) (float32, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return float32(v), true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func tileHandler(svc *service.TileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := parseIndex(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		layer := chi.URLParam(r, "layer")
		colormap := r.URL.Query().Get("colormap")

		data, err := svc.GetTile(layer, idx, colormap, parseHeightRange(r.URL.Query()))
		switch {
		case errors.Is(err, service.ErrLayerNotFound):
			http.Error(w, "layer not found: "+layer, http.StatusNotFound)
			return
		case err != nil:
			// Return empty tile on error
			data, _ = svc.GetEmptyTile()
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

func statsHandler(g *globe.Globe, cacheManager *cache.Manager, layers *LayerRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"globe":  g.Stats(),
			"cache":  cacheManager.Stats(),
			"layers": layers.Layers(),
		}
		if cam := g.SavedCamera(); cam != nil {
			response["saved_camera"] = cameraJSON(cam)
		}
		writeJSON(w, response)
	}
}

func layersHandler(layers *LayerRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, layers.Layers())
	}
}

func layerToggleHandler(layers *LayerRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layer := chi.URLParam(r, "layer")
		enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
		if err != nil {
			http.Error(w, "invalid enabled", http.StatusBadRequest)
			return
		}
		if !layers.SetEnabled(layer, enabled) {
			http.Error(w, "layer not found: "+layer, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func chunksHandler(svc *service.TileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.Chunks()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func heightsHandler(svc *service.TileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := parseIndex(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := svc.Heights(idx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, resp)
	}
}

// cameraRequest pins level-of-detail decisions to a viewpoint.
type cameraRequest struct {
	Position    [3]float64 `json:"position"`
	Target      [3]float64 `json:"target"`
	Up          [3]float64 `json:"up"`
	VerticalFOV float64    `json:"vertical_fov"`
	AspectRatio float64    `json:"aspect_ratio"`
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func cameraJSON(c *camera.Camera) map[string]interface{} {
	return map[string]interface{}{
		"position":     [3]float64{c.Position.X, c.Position.Y, c.Position.Z},
		"direction":    [3]float64{c.Direction.X, c.Direction.Y, c.Direction.Z},
		"up":           [3]float64{c.Up.X, c.Up.Y, c.Up.Z},
		"vertical_fov": c.VerticalFOV,
		"aspect_ratio": c.AspectRatio,
	}
}

func savedCameraHandler(g *globe.Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cameraRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid camera: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.VerticalFOV <= 0 || req.VerticalFOV >= math.Pi {
			http.Error(w, "vertical_fov must be in (0, pi)", http.StatusBadRequest)
			return
		}
		if req.AspectRatio <= 0 {
			req.AspectRatio = 1
		}
		if req.Up == ([3]float64{}) {
			req.Up = [3]float64{0, 0, 1}
		}
		if req.Position == req.Target {
			http.Error(w, "position and target must differ", http.StatusBadRequest)
			return
		}

		cam := camera.LookAt(vec(req.Position), vec(req.Target), vec(req.Up), req.VerticalFOV, req.AspectRatio)
		g.SetSavedCamera(&cam)
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearSavedCameraHandler(g *globe.Globe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.SetSavedCamera(nil)
		w.WriteHeader(http.StatusNoContent)
	}
}
