// Package config handles configuration loading for the globe tile server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atlasmap-sc/globelod/internal/diskcache"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/pkg/colormap"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig  `yaml:"server"`
	Cache  CacheConfig   `yaml:"cache"`
	Loader LoaderConfig  `yaml:"loader"`
	Globe  GlobeConfig   `yaml:"globe"`
	Layers []LayerConfig `yaml:"layers"`
	Render RenderConfig  `yaml:"render"`
	Log    LogConfig     `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CacheConfig contains settings of the memory, disk and preview caches.
type CacheConfig struct {
	Root              string `yaml:"root"`
	LRUCapacity       int    `yaml:"lru_capacity"`
	Compression       string `yaml:"compression"`
	StaleMetaSeconds  int    `yaml:"stale_meta_seconds"`
	PreviewSizeMB     int    `yaml:"preview_size_mb"`
	PreviewTTLMinutes int    `yaml:"preview_ttl_minutes"`
	QueryCacheSize    int    `yaml:"query_cache_size"`
}

// LoaderConfig contains background loader settings.
type LoaderConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// GlobeConfig contains level-of-detail settings.
type GlobeConfig struct {
	Radii           [3]float64 `yaml:"radii"`
	MinLevel        int        `yaml:"min_level"`
	MaxLevel        int        `yaml:"max_level"`
	LODScaleFactor  float64    `yaml:"lod_scale_factor"`
	FrustumCulling  bool       `yaml:"frustum_culling"`
	HorizonCulling  bool       `yaml:"horizon_culling"`
	FrameIntervalMS int        `yaml:"frame_interval_ms"`
}

// LayerConfig describes one tile layer.
type LayerConfig struct {
	Name            string  `yaml:"name"`
	Kind            string  `yaml:"kind"`
	Origin          string  `yaml:"origin"`
	TileSize        int     `yaml:"tile_size"`
	MaxLevel        int     `yaml:"max_level"`
	NoData          float32 `yaml:"no_data"`
	Amplitude       float64 `yaml:"amplitude"`
	HoleLatitudeDeg float64 `yaml:"hole_latitude_deg"`
	Colormap        string  `yaml:"colormap"` // ramp of color layers
	Disabled        bool    `yaml:"disabled"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	TileSize        int    `yaml:"tile_size"`
	DefaultColormap string `yaml:"default_colormap"`
	DepthOutline    bool   `yaml:"depth_outline"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	KindHeight = "height"
	KindColor  = "color"

	OriginProcedural = "procedural"
)

// Load reads configuration from a YAML file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	cfg.Layers = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for values explicitly set to zero
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Cache: CacheConfig{
			Root:              "./data/tilecache",
			LRUCapacity:       512,
			Compression:       "zstd",
			StaleMetaSeconds:  60,
			PreviewSizeMB:     128,
			PreviewTTLMinutes: 10,
			QueryCacheSize:    64,
		},
		Loader: LoaderConfig{
			Workers:   4,
			QueueSize: 256,
		},
		Globe: GlobeConfig{
			Radii:           [3]float64{6378137, 6378137, 6356752.314245},
			MinLevel:        0,
			MaxLevel:        12,
			LODScaleFactor:  10,
			FrustumCulling:  true,
			HorizonCulling:  true,
			FrameIntervalMS: 100,
		},
		Layers: []LayerConfig{defaultLayer()},
		Render: RenderConfig{
			TileSize:        256,
			DefaultColormap: "terrain",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultLayer() LayerConfig {
	return LayerConfig{
		Name:      "procedural",
		Kind:      KindHeight,
		Origin:    OriginProcedural,
		TileSize:  64,
		MaxLevel:  12,
		NoData:    -32768,
		Amplitude: 8000,
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = defaults.Cache.Root
	}
	if cfg.Cache.LRUCapacity == 0 {
		cfg.Cache.LRUCapacity = defaults.Cache.LRUCapacity
	}
	if cfg.Cache.Compression == "" {
		cfg.Cache.Compression = defaults.Cache.Compression
	}
	if cfg.Cache.StaleMetaSeconds == 0 {
		cfg.Cache.StaleMetaSeconds = defaults.Cache.StaleMetaSeconds
	}
	if cfg.Cache.PreviewSizeMB == 0 {
		cfg.Cache.PreviewSizeMB = defaults.Cache.PreviewSizeMB
	}
	if cfg.Cache.PreviewTTLMinutes == 0 {
		cfg.Cache.PreviewTTLMinutes = defaults.Cache.PreviewTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Loader.Workers == 0 {
		cfg.Loader.Workers = defaults.Loader.Workers
	}
	if cfg.Loader.QueueSize == 0 {
		cfg.Loader.QueueSize = defaults.Loader.QueueSize
	}
	if cfg.Globe.Radii == ([3]float64{}) {
		cfg.Globe.Radii = defaults.Globe.Radii
	}
	if cfg.Globe.MaxLevel == 0 {
		cfg.Globe.MaxLevel = defaults.Globe.MaxLevel
	}
	if cfg.Globe.LODScaleFactor == 0 {
		cfg.Globe.LODScaleFactor = defaults.Globe.LODScaleFactor
	}
	if cfg.Globe.FrameIntervalMS == 0 {
		cfg.Globe.FrameIntervalMS = defaults.Globe.FrameIntervalMS
	}
	if len(cfg.Layers) == 0 {
		cfg.Layers = defaults.Layers
	}
	for i := range cfg.Layers {
		l := &cfg.Layers[i]
		if l.Kind == "" {
			l.Kind = KindHeight
		}
		if l.Origin == "" {
			l.Origin = OriginProcedural
		}
		if l.TileSize == 0 {
			l.TileSize = defaultLayer().TileSize
		}
		if l.MaxLevel == 0 {
			l.MaxLevel = cfg.Globe.MaxLevel
		}
		if l.NoData == 0 {
			l.NoData = defaultLayer().NoData
		}
		if l.Kind == KindColor && l.Colormap == "" {
			l.Colormap = "terrain"
		}
	}
	if cfg.Render.TileSize == 0 {
		cfg.Render.TileSize = defaults.Render.TileSize
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	for i, r := range c.Globe.Radii {
		if r <= 0 {
			errs = append(errs, fmt.Errorf("globe.radii[%d] must be positive", i))
		}
	}
	if c.Globe.MinLevel < 0 || c.Globe.MaxLevel < c.Globe.MinLevel || c.Globe.MaxLevel > geo.MaxLevel {
		errs = append(errs, fmt.Errorf("invalid globe level range [%d, %d]", c.Globe.MinLevel, c.Globe.MaxLevel))
	}
	if c.Cache.Compression != "none" && c.Cache.Compression != "zstd" {
		errs = append(errs, fmt.Errorf("unknown cache compression: %q", c.Cache.Compression))
	}

	seen := make(map[string]bool)
	for _, l := range c.Layers {
		if l.Name == "" {
			errs = append(errs, errors.New("layer name is required"))
			continue
		}
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("duplicate layer name: %q", l.Name))
		}
		seen[l.Name] = true
		if err := diskcache.ValidateName(l.Name); err != nil {
			errs = append(errs, fmt.Errorf("layer %q: %w", l.Name, err))
		}
		if l.MaxLevel < 0 || l.MaxLevel > geo.MaxLevel {
			errs = append(errs, fmt.Errorf("layer %q: max_level must be in [0, %d]", l.Name, geo.MaxLevel))
		}
		if l.Kind != KindHeight && l.Kind != KindColor {
			errs = append(errs, fmt.Errorf("layer %q: unknown kind %q", l.Name, l.Kind))
		}
		if l.Kind == KindColor {
			if _, ok := colormap.Lookup(l.Colormap); !ok {
				errs = append(errs, fmt.Errorf("layer %q: unknown colormap %q", l.Name, l.Colormap))
			}
		}
		if l.Origin != OriginProcedural {
			errs = append(errs, fmt.Errorf("layer %q: unknown origin %q", l.Name, l.Origin))
		}
	}
	return errors.Join(errs...)
}

// StaleMetaAfter returns the grace period for meta files without data.
func (c CacheConfig) StaleMetaAfter() time.Duration {
	return time.Duration(c.StaleMetaSeconds) * time.Second
}

// PreviewTTL returns the lifetime of rendered previews.
func (c CacheConfig) PreviewTTL() time.Duration {
	return time.Duration(c.PreviewTTLMinutes) * time.Minute
}

// FrameInterval returns the period of the update loop.
func (c GlobeConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}
