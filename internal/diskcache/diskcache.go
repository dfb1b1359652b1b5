// Package diskcache provides a persistent tile store keyed by tile index.
//
// Every entry is a pair of files in <root>/<name>/: <level>_<x>_<y>.meta holds
// a JSON header and <level>_<x>_<y>.data holds the payload. The meta file is
// the commit marker: it is linked into place atomically and only once, so
// concurrent first writers race safely and exactly one of them wins.
package diskcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// Codec selects how payloads are stored in the data file.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
)

const (
	metaExt       = ".meta"
	dataExt       = ".data"
	formatVersion = 1
)

// Config contains disk cache configuration.
type Config struct {
	Root       string
	Name       string
	Codec      Codec
	StaleAfter time.Duration // meta files without data older than this are dropped
	Logger     *zap.Logger
}

// Cache is a tile disk cache for one named layer. It is safe for concurrent
// use, also across processes sharing the directory.
type Cache struct {
	name       string
	dir        string
	codec      Codec
	staleAfter time.Duration
	logger     *zap.Logger
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
}

type metaHeader struct {
	Version         int                  `json:"version"`
	Level           int                  `json:"level"`
	X               int                  `json:"x"`
	Y               int                  `json:"y"`
	ImageByteCount  int                  `json:"image_byte_count"`
	StoredByteCount int                  `json:"stored_byte_count"`
	Codec           Codec                `json:"codec"`
	Checksum        uint64               `json:"checksum"`
	Width           int                  `json:"width"`
	Height          int                  `json:"height"`
	DataType        tile.DataType        `json:"data_type"`
	Channels        int                  `json:"channels"`
	Preprocess      *tile.PreprocessData `json:"preprocess,omitempty"`
}

// ValidateName checks that name can be used as a single directory below the
// cache root.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("disk cache name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid disk cache name: %q", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("disk cache name must not contain path separators: %q", name)
	}
	return nil
}

// New creates the cache directory if needed.
func New(cfg Config) (*Cache, error) {
	if err := ValidateName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = "tilecache"
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecNone
	}
	if cfg.Codec != CodecNone && cfg.Codec != CodecZstd {
		return nil, fmt.Errorf("unknown disk cache codec: %q", cfg.Codec)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	dir := filepath.Join(cfg.Root, cfg.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	c := &Cache{
		name:       cfg.Name,
		dir:        dir,
		codec:      cfg.Codec,
		staleAfter: cfg.StaleAfter,
		logger:     cfg.Logger.With(zap.String("cache", cfg.Name)),
	}

	var err error
	if c.decoder, err = zstd.NewReader(nil); err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if c.codec == CodecZstd {
		if c.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	return c, nil
}

// Name returns the layer name of the cache.
func (c *Cache) Name() string { return c.name }

// Dir returns the directory holding the cache files.
func (c *Cache) Dir() string { return c.dir }

// Has reports whether a meta file exists for idx.
func (c *Cache) Has(idx geo.TileIndex) bool {
	_, err := os.Stat(c.metaPath(idx))
	return err == nil
}

// Get reads a complete entry. Missing, partial or corrupt pairs are reported
// as not found; corrupt pairs are removed so they can be written again.
func (c *Cache) Get(idx geo.TileIndex) (*tile.IOResult, bool) {
	metaPath := c.metaPath(idx)
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, false
	}

	var h metaHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		c.discard(idx, "unreadable meta", zap.Error(err))
		return nil, false
	}

	stored, err := os.ReadFile(c.dataPath(idx))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.dropIfStale(idx, metaPath)
		}
		return nil, false
	}
	if len(stored) != h.StoredByteCount {
		c.discard(idx, "data size mismatch", zap.Int("want", h.StoredByteCount), zap.Int("got", len(stored)))
		return nil, false
	}

	payload := stored
	if h.Codec == CodecZstd {
		payload, err = c.decoder.DecodeAll(stored, make([]byte, 0, h.ImageByteCount))
		if err != nil {
			c.discard(idx, "zstd decompress failed", zap.Error(err))
			return nil, false
		}
	}
	if len(payload) != h.ImageByteCount || xxhash.Sum64(payload) != h.Checksum {
		c.discard(idx, "checksum mismatch")
		return nil, false
	}

	return &tile.IOResult{
		Index:          idx,
		ImageByteCount: h.ImageByteCount,
		ImageData:      payload,
		Dimensions:     tile.Dimensions{Width: h.Width, Height: h.Height},
		DataType:       h.DataType,
		Channels:       h.Channels,
		Preprocess:     h.Preprocess,
	}, true
}

// Put stores an entry once. It returns false without touching the existing
// files when an entry for idx is already present.
func (c *Cache) Put(idx geo.TileIndex, res *tile.IOResult) (bool, error) {
	if res == nil {
		return false, errors.New("nil tile result")
	}
	if c.Has(idx) {
		return false, nil
	}

	payload := res.ImageData
	if res.ImageByteCount > 0 && res.ImageByteCount < len(payload) {
		payload = payload[:res.ImageByteCount]
	}
	stored := payload
	if c.codec == CodecZstd {
		stored = c.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	}

	h := metaHeader{
		Version:         formatVersion,
		Level:           idx.Level,
		X:               idx.X,
		Y:               idx.Y,
		ImageByteCount:  len(payload),
		StoredByteCount: len(stored),
		Codec:           c.codec,
		Checksum:        xxhash.Sum64(payload),
		Width:           res.Dimensions.Width,
		Height:          res.Dimensions.Height,
		DataType:        res.DataType,
		Channels:        res.Channels,
		Preprocess:      res.Preprocess,
	}
	meta, err := json.Marshal(&h)
	if err != nil {
		return false, fmt.Errorf("failed to encode meta: %w", err)
	}

	base := c.basePath(idx)
	tmp := filepath.Join(c.dir, "."+filepath.Base(base)+"."+uuid.NewString())
	dataTmp, metaTmp := tmp+dataExt, tmp+metaExt
	defer os.Remove(dataTmp)
	defer os.Remove(metaTmp)

	if err := writeFileSync(dataTmp, stored); err != nil {
		return false, fmt.Errorf("failed to write data: %w", err)
	}
	if err := writeFileSync(metaTmp, meta); err != nil {
		return false, fmt.Errorf("failed to write meta: %w", err)
	}

	// Linking fails if the target exists, which makes the meta file the
	// single commit point for concurrent writers.
	if err := os.Link(metaTmp, base+metaExt); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit meta: %w", err)
	}
	if err := os.Rename(dataTmp, base+dataExt); err != nil {
		os.Remove(base + metaExt)
		return false, fmt.Errorf("failed to commit data: %w", err)
	}

	c.logger.Debug("tile stored",
		zap.Stringer("index", idx),
		zap.Int("bytes", len(payload)),
		zap.Int("stored", len(stored)))
	return true, nil
}

// Remove deletes the entry for idx, if any.
func (c *Cache) Remove(idx geo.TileIndex) error {
	var errs []error
	for _, p := range []string{c.metaPath(idx), c.dataPath(idx)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the codec resources.
func (c *Cache) Close() {
	c.decoder.Close()
	if c.encoder != nil {
		c.encoder.Close()
	}
}

func (c *Cache) discard(idx geo.TileIndex, reason string, fields ...zap.Field) {
	corruptEntries.WithLabelValues(c.name).Inc()
	fields = append([]zap.Field{zap.Stringer("index", idx), zap.String("reason", reason)}, fields...)
	c.logger.Warn("discarding corrupt tile cache entry", fields...)
	if err := c.Remove(idx); err != nil {
		c.logger.Warn("failed to remove corrupt entry", zap.Stringer("index", idx), zap.Error(err))
	}
}

// dropIfStale removes a meta file whose data never arrived. Young meta files
// may belong to a writer between its two commit steps and are left alone.
func (c *Cache) dropIfStale(idx geo.TileIndex, metaPath string) {
	info, err := os.Stat(metaPath)
	if err != nil || time.Since(info.ModTime()) < c.staleAfter {
		return
	}
	c.discard(idx, "meta without data")
}

func (c *Cache) basePath(idx geo.TileIndex) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d_%d_%d", idx.Level, idx.X, idx.Y))
}

func (c *Cache) metaPath(idx geo.TileIndex) string { return c.basePath(idx) + metaExt }
func (c *Cache) dataPath(idx geo.TileIndex) string { return c.basePath(idx) + dataExt }

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
