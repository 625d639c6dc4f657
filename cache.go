package smartfs

// TieredCache is the two-tier block cache of spec.md §4.5: an L1
// in-memory LRU over an L2 memory-mapped direct-mapped overflow. The
// outer façade owns the promotion/eviction policy; each tier only knows
// get/put for itself, per the Design Notes' "model as a two-tier
// abstraction" guidance in spec.md §9.
type TieredCache struct {
	l1 *l1Cache
	l2 *l2Cache
}

// NewTieredCache builds a cache with the given L1 capacity (blocks) and
// an L2 overflow file at l2Path sized for l2Capacity slots.
func NewTieredCache(l1Capacity int, l2Path string, l2Capacity uint64) (*TieredCache, error) {
	l2, err := openL2Cache(l2Path, l2Capacity)
	if err != nil {
		return nil, err
	}
	return &TieredCache{l1: newL1Cache(l1Capacity), l2: l2}, nil
}

// Get returns blockID's decompressed bytes. An L1 hit promotes the block
// to the head; an L2 hit re-admits the block into L1 (which may itself
// spill L1's current tail back into L2) before returning it, per spec.md
// §4.5's "get on L1 miss consults L2 ... promoted back into L1" rule.
func (c *TieredCache) Get(blockID uint64) ([]byte, bool) {
	if data, ok := c.l1.get(blockID); ok {
		cacheLog.Printf("L1 hit: block %d", blockID)
		return data, true
	}
	if data, ok := c.l2.get(blockID); ok {
		cacheLog.Printf("L1 miss, L2 hit: block %d", blockID)
		c.admit(blockID, data)
		return data, true
	}
	cacheLog.Printf("cache miss: block %d", blockID)
	return nil, false
}

// Put admits blockID/data into L1, spilling L1's LRU tail to L2 first if
// L1 is full, per spec.md §4.5's put rule.
func (c *TieredCache) Put(blockID uint64, data []byte) {
	c.admit(blockID, data)
}

func (c *TieredCache) admit(blockID uint64, data []byte) {
	evicted := c.l1.put(blockID, data)
	if evicted != nil {
		if err := c.l2.put(evicted.blockID, evicted.data); err != nil {
			cacheLog.Printf("failed to spill block %d to L2: %s", evicted.blockID, err)
		}
	}
}

// Invalidate drops blockID from L1 only; L2 entries are never explicitly
// invalidated, only overwritten by slot collision, per spec.md §4.5.
func (c *TieredCache) Invalidate(blockID uint64) {
	c.l1.invalidate(blockID)
}

func (c *TieredCache) Close() error {
	return c.l2.close()
}
