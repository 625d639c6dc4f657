package smartfs

import "container/list"

// l1Entry is the payload kept at each L1 list node: the block id (so an
// evicted tail node knows what to hand to L2) and its decompressed bytes.
type l1Entry struct {
	blockID uint64
	data    []byte
}

// l1Cache is the in-memory tier of spec.md §4.5's tiered cache: a
// doubly-linked-list LRU, head = most recently used. Grounded on the
// container/list-based structures used in
// sswastik02-go-qcow2lib/qcow2/qcow2.go; this is the standard Go LRU
// shape (same as golang-lru/groupcache's lru.Cache).
type l1Cache struct {
	capacity int
	ll       *list.List
	items    map[uint64]*list.Element
}

func newL1Cache(capacity int) *l1Cache {
	return &l1Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element, capacity),
	}
}

// get returns blockID's bytes and promotes it to the head on hit.
func (c *l1Cache) get(blockID uint64) ([]byte, bool) {
	el, ok := c.items[blockID]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*l1Entry).data, true
}

// put inserts or updates blockID's bytes, promoting it to the head. If
// inserting a new block at capacity, the LRU tail is evicted first and
// returned so the caller can spill it to L2, per spec.md §4.5's "never
// evicted from L1 without being written to L2 first" guarantee.
func (c *l1Cache) put(blockID uint64, data []byte) (evicted *l1Entry) {
	if el, ok := c.items[blockID]; ok {
		el.Value.(*l1Entry).data = data
		c.ll.MoveToFront(el)
		return nil
	}

	if c.ll.Len() >= c.capacity && c.capacity > 0 {
		tail := c.ll.Back()
		if tail != nil {
			evicted = tail.Value.(*l1Entry)
			delete(c.items, evicted.blockID)
			c.ll.Remove(tail)
		}
	}

	el := c.ll.PushFront(&l1Entry{blockID: blockID, data: data})
	c.items[blockID] = el
	return evicted
}

// invalidate drops blockID from L1 without spilling it anywhere.
func (c *l1Cache) invalidate(blockID uint64) {
	if el, ok := c.items[blockID]; ok {
		c.ll.Remove(el)
		delete(c.items, blockID)
	}
}
