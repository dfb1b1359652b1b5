package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/atlasmap-sc/globelod/internal/diskcache"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// LoaderConfig contains loader configuration.
type LoaderConfig struct {
	Layer     string // metric label
	Workers   int    // concurrent loads (default 4)
	QueueSize int    // pending requests (default 256)
	Logger    *zap.Logger
}

// Loader fetches tiles on background workers. Each job reads the disk cache
// and falls back to the origin, writing what it fetched back to disk. Results
// are buffered until the update goroutine drains them.
type Loader struct {
	cfg    LoaderConfig
	origin Origin
	disk   *diskcache.Cache
	logger *zap.Logger

	queue   chan geo.TileIndex
	workers *pool.ContextPool
	cancel  context.CancelFunc

	queueMu sync.RWMutex
	stopped bool

	resultsMu sync.Mutex
	results   []*tile.IOResult

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewLoader creates a loader. disk may be nil to load straight from the origin.
func NewLoader(origin Origin, disk *diskcache.Cache, cfg LoaderConfig) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loader{
		cfg:    cfg,
		origin: origin,
		disk:   disk,
		logger: cfg.Logger.With(zap.String("layer", cfg.Layer)),
		queue:  make(chan geo.TileIndex, cfg.QueueSize),
	}
}

// Start launches the workers.
func (l *Loader) Start() {
	l.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		l.cancel = cancel
		l.workers = pool.New().WithContext(ctx).WithMaxGoroutines(l.cfg.Workers)
		for i := 0; i < l.cfg.Workers; i++ {
			l.workers.Go(l.worker)
		}
	})
}

// Stop cancels running fetches, discards queued requests and waits for the
// workers to exit. Requests made after Stop are rejected.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() {
		l.queueMu.Lock()
		l.stopped = true
		close(l.queue)
		l.queueMu.Unlock()

		if l.workers != nil {
			l.cancel()
			if err := l.workers.Wait(); err != nil {
				l.logger.Warn("loader stopped with error", zap.Error(err))
			}
		}
	})
}

// Enqueue requests a load without blocking. It returns false when the queue
// is full or the loader is stopped; the caller may retry later.
func (l *Loader) Enqueue(idx geo.TileIndex) bool {
	l.queueMu.RLock()
	defer l.queueMu.RUnlock()
	if l.stopped {
		return false
	}
	select {
	case l.queue <- idx:
		return true
	default:
		droppedRequests.WithLabelValues(l.cfg.Layer).Inc()
		return false
	}
}

// Drain returns the results finished since the previous call.
func (l *Loader) Drain() []*tile.IOResult {
	l.resultsMu.Lock()
	defer l.resultsMu.Unlock()
	out := l.results
	l.results = nil
	return out
}

// Pending returns the number of requests waiting for a worker.
func (l *Loader) Pending() int {
	return len(l.queue)
}

func (l *Loader) worker(ctx context.Context) error {
	for idx := range l.queue {
		if ctx.Err() != nil {
			continue
		}
		res := l.load(ctx, idx)
		if ctx.Err() != nil {
			continue
		}
		l.resultsMu.Lock()
		l.results = append(l.results, res)
		l.resultsMu.Unlock()
	}
	return nil
}

func (l *Loader) load(ctx context.Context, idx geo.TileIndex) *tile.IOResult {
	if l.disk != nil {
		if res, ok := l.disk.Get(idx); ok {
			diskHits.WithLabelValues(l.cfg.Layer).Inc()
			return res
		}
	}

	originFetches.WithLabelValues(l.cfg.Layer).Inc()
	res, err := l.origin.Fetch(ctx, idx)
	if err == nil && res == nil {
		err = ErrTileUnavailable
	}
	if err != nil {
		if !errors.Is(err, ErrTileUnavailable) && ctx.Err() == nil {
			loadErrors.WithLabelValues(l.cfg.Layer).Inc()
			l.logger.Warn("failed to fetch tile", zap.Stringer("index", idx), zap.Error(err))
		}
		return &tile.IOResult{Index: idx, Err: err}
	}
	res.Index = idx

	if l.disk != nil {
		if _, err := l.disk.Put(idx, res); err != nil {
			l.logger.Warn("failed to store tile", zap.Stringer("index", idx), zap.Error(err))
		}
	}
	return res
}
