package smartfs

import "time"

// Default auxiliary file paths and tuning parameters, per spec.md §6.
const (
	DefaultL2CachePath   = "/tmp/smartfs_l2.cache"
	DefaultDataPath      = "/tmp/smartfs.data"
	DefaultIdxPath       = "/tmp/smartfs.idx"
	DefaultWALPath       = "/tmp/smartfs.wal"
	DefaultL1Capacity    = 256
	DefaultL2Capacity    = 1024
	DefaultSnapshotEvery = 30 * time.Second
)

// engineConfig collects Attach's configurable knobs. Overridable by
// EngineOption so tests can point every auxiliary file at t.TempDir()
// instead of /tmp, per SPEC_FULL.md §6.
type engineConfig struct {
	l2CachePath   string
	dataPath      string
	idxPath       string
	walPath       string
	l1Capacity    int
	l2Capacity    uint64
	snapshotEvery time.Duration
	nowFunc       func() time.Time
	imageBlocks   uint64 // total blocks for a freshly-formatted image
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		l2CachePath:   DefaultL2CachePath,
		dataPath:      DefaultDataPath,
		idxPath:       DefaultIdxPath,
		walPath:       DefaultWALPath,
		l1Capacity:    DefaultL1Capacity,
		l2Capacity:    DefaultL2Capacity,
		snapshotEvery: DefaultSnapshotEvery,
		nowFunc:       time.Now,
		imageBlocks:   65536,
	}
}

// EngineOption configures an Engine at Attach time, mirroring
// squashfs.WriterOption / WithBlockSize's functional-options pattern.
type EngineOption func(*engineConfig)

// WithL2CachePath overrides the L2 memory-mapped cache file location.
func WithL2CachePath(path string) EngineOption {
	return func(c *engineConfig) { c.l2CachePath = path }
}

// WithPhysicalStorePaths overrides the .data/.idx physical store locations.
func WithPhysicalStorePaths(dataPath, idxPath string) EngineOption {
	return func(c *engineConfig) { c.dataPath = dataPath; c.idxPath = idxPath }
}

// WithWALPath overrides the write-ahead log location.
func WithWALPath(path string) EngineOption {
	return func(c *engineConfig) { c.walPath = path }
}

// WithCacheCapacity overrides the L1 (block count) and L2 (slot count)
// cache sizes.
func WithCacheCapacity(l1, l2 int) EngineOption {
	return func(c *engineConfig) { c.l1Capacity = l1; c.l2Capacity = uint64(l2) }
}

// WithSnapshotInterval overrides how often a write auto-opens a new
// version, per spec.md §4.8's should_snapshot.
func WithSnapshotInterval(d time.Duration) EngineOption {
	return func(c *engineConfig) { c.snapshotEvery = d }
}

// WithClock overrides the engine's notion of "now", letting tests drive
// version rotation and time-travel queries without sleeping real time.
func WithClock(now func() time.Time) EngineOption {
	return func(c *engineConfig) { c.nowFunc = now }
}

// WithImageSize overrides the total block count used when formatting a
// brand-new image (ignored when attaching to an existing one).
func WithImageSize(totalBlocks uint64) EngineOption {
	return func(c *engineConfig) { c.imageBlocks = totalBlocks }
}
