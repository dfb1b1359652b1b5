// Package main is the entry point for the globe tile server.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/api"
	"github.com/atlasmap-sc/globelod/internal/cache"
	"github.com/atlasmap-sc/globelod/internal/camera"
	"github.com/atlasmap-sc/globelod/internal/chunk"
	"github.com/atlasmap-sc/globelod/internal/config"
	"github.com/atlasmap-sc/globelod/internal/diskcache"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/globe"
	"github.com/atlasmap-sc/globelod/internal/provider"
	"github.com/atlasmap-sc/globelod/internal/render"
	"github.com/atlasmap-sc/globelod/internal/service"
	"github.com/atlasmap-sc/globelod/internal/tile"
	"github.com/atlasmap-sc/globelod/pkg/colormap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting globe server", zap.Int("port", cfg.Server.Port))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize tile providers, one loader and disk cache per layer
	providers := tile.NewProviderManager()
	layers := api.NewLayerRegistry(providers)
	var (
		loaders []*provider.Loader
		disks   []*diskcache.Cache
		noData  = make(map[string]float32, len(cfg.Layers))
	)
	for _, lc := range cfg.Layers {
		disk, err := diskcache.New(diskcache.Config{
			Root:       cfg.Cache.Root,
			Name:       lc.Name,
			Codec:      diskcache.Codec(cfg.Cache.Compression),
			StaleAfter: cfg.Cache.StaleMetaAfter(),
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal("failed to initialize disk cache", zap.String("layer", lc.Name), zap.Error(err))
		}
		disks = append(disks, disk)

		originCfg := provider.ProceduralConfig{
			TileSize:     lc.TileSize,
			MaxLevel:     lc.MaxLevel,
			Amplitude:    lc.Amplitude,
			NoData:       lc.NoData,
			HoleLatitude: lc.HoleLatitudeDeg * math.Pi / 180,
		}
		kind := tile.HeightLayers
		if lc.Kind == config.KindColor {
			kind = tile.ColorLayers
			originCfg.Ramp, _ = colormap.Lookup(lc.Colormap)
		}

		loader := provider.NewLoader(provider.NewProceduralOrigin(originCfg), disk, provider.LoaderConfig{
			Layer:     lc.Name,
			Workers:   cfg.Loader.Workers,
			QueueSize: cfg.Loader.QueueSize,
			Logger:    logger,
		})
		loader.Start()
		loaders = append(loaders, loader)

		p, err := provider.NewCachingProvider(loader, provider.Config{
			Name:      lc.Name,
			MaxLevel:  lc.MaxLevel,
			CacheSize: cfg.Cache.LRUCapacity,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal("failed to initialize provider", zap.String("layer", lc.Name), zap.Error(err))
		}
		providers.Group(kind).Add(p)
		noData[lc.Name] = lc.NoData
		layers.Register(lc.Name, kind, true)
		if lc.Disabled {
			layers.SetEnabled(lc.Name, false)
		}

		logger.Info("layer ready",
			zap.String("layer", lc.Name),
			zap.String("kind", string(kind)),
			zap.Int("max_level", lc.MaxLevel),
			zap.Bool("enabled", !lc.Disabled),
			zap.String("cache_dir", disk.Dir()))
	}

	radii := cfg.Globe.Radii
	g, err := globe.New(providers, globe.Config{
		Ellipsoid:      geo.NewEllipsoid(radii[0], radii[1], radii[2]),
		MinLevel:       cfg.Globe.MinLevel,
		MaxLevel:       cfg.Globe.MaxLevel,
		LODScaleFactor: cfg.Globe.LODScaleFactor,
		FrustumCulling: cfg.Globe.FrustumCulling,
		HorizonCulling: cfg.Globe.HorizonCulling,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize globe", zap.Error(err))
	}

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		PreviewSizeMB:  cfg.Cache.PreviewSizeMB,
		PreviewTTL:     cfg.Cache.PreviewTTL(),
		QueryCacheSize: cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}

	// Initialize tile renderer
	tileRenderer := render.NewTileRenderer(render.Config{
		TileSize:        cfg.Render.TileSize,
		DefaultColormap: cfg.Render.DefaultColormap,
		DepthOutline:    cfg.Render.DepthOutline,
	})

	tileService := service.NewTileService(service.TileServiceConfig{
		Globe:    g,
		Cache:    cacheManager,
		Renderer: tileRenderer,
		NoData:   noData,
		Logger:   logger,
	})

	frameDone := make(chan struct{})
	go func() {
		defer close(frameDone)
		runFrames(ctx, g, cfg.Globe.FrameInterval(), logger)
	}()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Globe:       g,
		Service:     tileService,
		Cache:       cacheManager,
		Layers:      layers,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	stop()
	<-frameDone
	for _, l := range loaders {
		l.Stop()
	}
	for _, d := range disks {
		d.Close()
	}
	if err := cacheManager.Close(); err != nil {
		logger.Warn("failed to close cache", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = level
	return zcfg.Build()
}

// runFrames drives the level-of-detail updates with a camera orbiting the
// globe while its altitude swings between a low pass and a far view, so the
// chunk trees are refined and coarsened continuously.
func runFrames(ctx context.Context, g *globe.Globe, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	radius := g.Ellipsoid().MaximumRadius()
	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		frame++

		t := float64(frame) * interval.Seconds()
		sub := geo.Geodetic2{
			Lat: 0.6 * math.Sin(t/47),
			Lon: math.Mod(t/20, 2*math.Pi) - math.Pi,
		}
		altitude := radius * (0.002 + 1.5*(1+math.Sin(t/31))/2)
		pos := g.Ellipsoid().CartesianPosition(geo.Geodetic3{Geodetic2: sub, Height: altitude})
		cam := camera.LookAt(pos, r3.Vec{}, r3.Vec{Z: 1}, math.Pi/3, 16.0/9.0)

		stats := g.Update(chunk.RenderData{
			Camera:                   cam,
			DoPerformanceMeasurement: frame%100 == 0,
		})
		logger.Debug("frame",
			zap.Uint64("frame", stats.Frame),
			zap.Int("visible_leaves", stats.VisibleLeaves),
			zap.Float64("altitude", altitude))
	}
}
