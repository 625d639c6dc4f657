package smartfs

import "fmt"

// dedupRecord is one fingerprint -> physical block mapping, per spec.md
// §3's Dedup record. Hash is stored as raw bytes on disk; the exported
// API renders it as 64 lowercase hex characters, per spec.md §4.3.
type dedupRecord struct {
	Hash           [HashSize]byte
	BlockID        uint64
	RefCount       uint32
	CompressedSize uint32
	Valid          uint8
}

func dedupTableBlocks() uint64 {
	sz := binSize(&dedupRecord{}) * DedupCapacity
	return (uint64(sz) + BlockSize - 1) / BlockSize
}

// dedupIndex is the fingerprint -> physical block map of spec.md §4.4. It
// is capacity-bounded (DedupCapacity) and, per Open Question #1 in
// spec.md §9, persisted into the image's reserved dedup table region
// instead of being restart-volatile, grounded on the retrieved pack's
// slotcache fixed-slot persisted table pattern.
type dedupIndex struct {
	sb      *Superblock
	records []dedupRecord        // persisted slots, in on-disk slot order
	byHash  map[[HashSize]byte]int // hash -> slot index
}

func loadDedupIndex(sb *Superblock) (*dedupIndex, error) {
	n := int(dedupTableBlocks()) * BlockSize
	buf := make([]byte, n)
	if err := sb.dev.ReadAt(buf, int64(sb.DedupTableStart)*BlockSize); err != nil {
		return nil, err
	}
	recSize := binSize(&dedupRecord{})
	idx := &dedupIndex{
		sb:      sb,
		records: make([]dedupRecord, DedupCapacity),
		byHash:  make(map[[HashSize]byte]int, DedupCapacity),
	}
	for i := 0; i < DedupCapacity; i++ {
		off := i * recSize
		if off+recSize > len(buf) {
			break
		}
		if err := binUnmarshal(buf[off:off+recSize], &idx.records[i], sb.order); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIO, err)
		}
		if idx.records[i].Valid == 1 {
			idx.byHash[idx.records[i].Hash] = i
		}
	}
	dedupLog.Printf("loaded %d dedup records", len(idx.byHash))
	return idx, nil
}

func (d *dedupIndex) persist() error {
	recSize := binSize(&dedupRecord{})
	buf := make([]byte, int(dedupTableBlocks())*BlockSize)
	for i := range d.records {
		enc, err := binMarshal(&d.records[i], d.sb.order)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrIO, err)
		}
		copy(buf[i*recSize:], enc)
	}
	return d.sb.dev.WriteAt(buf, int64(d.sb.DedupTableStart)*BlockSize)
}

func hashKey(hexDigest string) [HashSize]byte {
	var k [HashSize]byte
	for i := 0; i < HashSize && i*2+1 < len(hexDigest); i++ {
		k[i] = hexNibble(hexDigest[i*2])<<4 | hexNibble(hexDigest[i*2+1])
	}
	return k
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

// lookup returns the physical block id stored under digest, and whether
// it was found, per spec.md §4.4.
func (d *dedupIndex) lookup(digest string) (uint64, bool) {
	slot, ok := d.byHash[hashKey(digest)]
	if !ok {
		return 0, false
	}
	return d.records[slot].BlockID, true
}

// insert records a brand-new digest -> block mapping with ref count 1.
// Returns ErrNoSpace once DedupCapacity is exhausted, a documented limit
// per spec.md §4.4.
func (d *dedupIndex) insert(digest string, blockID uint64, compressedSize int) error {
	key := hashKey(digest)
	if _, ok := d.byHash[key]; ok {
		return nil // already present; insert is idempotent
	}
	for i := range d.records {
		if d.records[i].Valid == 0 {
			d.records[i] = dedupRecord{
				Hash:           key,
				BlockID:        blockID,
				RefCount:       1,
				CompressedSize: uint32(compressedSize),
				Valid:          1,
			}
			d.byHash[key] = i
			return d.persist()
		}
	}
	return ErrNoSpace
}

// incRef bumps the reference count for digest (a deduplicated write that
// reused an existing block).
func (d *dedupIndex) incRef(digest string) {
	if slot, ok := d.byHash[hashKey(digest)]; ok {
		d.records[slot].RefCount++
		_ = d.persist()
	}
}

// decRef drops the reference count for digest. Ref counts never go
// negative; callers are responsible for reclamation policy (none, in
// this iteration — see spec.md §9's allocator Open Question).
func (d *dedupIndex) decRef(digest string) {
	if slot, ok := d.byHash[hashKey(digest)]; ok && d.records[slot].RefCount > 0 {
		d.records[slot].RefCount--
		_ = d.persist()
	}
}
