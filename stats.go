package smartfs

import "fmt"

// stats accumulates the running counters of spec.md §4.8: logical bytes
// written by callers, physical bytes after compression, and how many
// writes were satisfied by deduplication instead of a fresh allocation.
type stats struct {
	totalLogicalBytes  uint64
	bytesAfterDedup    uint64
	totalPhysicalBytes uint64
	dedupCount         uint64
	writeCount         uint64
}

// recordWrite folds one SmartWrite call's outcome into the running
// counters. deduped reports whether the write reused an existing
// physical block instead of allocating a new one.
func (s *stats) recordWrite(logicalLen, physicalLen int, deduped bool) {
	s.writeCount++
	s.totalLogicalBytes += uint64(logicalLen)
	if deduped {
		s.dedupCount++
		return
	}
	s.bytesAfterDedup += uint64(logicalLen)
	s.totalPhysicalBytes += uint64(physicalLen)
}

// StorageReport is the derived, human-facing rendering of stats, per
// spec.md §4.8's StorageReport operation and §4.12's monitoring report.
type StorageReport struct {
	TotalLogicalBytes  uint64
	BytesAfterDedup    uint64
	TotalPhysicalBytes uint64
	DeduplicationCount uint64
	WriteCount         uint64

	// DedupRatio is BytesAfterDedup / TotalLogicalBytes, clamped to
	// [0, 1], or 1.0 when nothing has been written yet.
	DedupRatio float64
	// CompressionRatio is TotalPhysicalBytes / BytesAfterDedup, or 1.0
	// when nothing has been written yet. Computed with signed arithmetic
	// (see SavedRatio) so compression-induced inflation still renders as
	// a sane value instead of overflowing an unsigned divide.
	CompressionRatio float64
	// SavedRatio is 1 - TotalPhysicalBytes/TotalLogicalBytes: the
	// fraction of logical bytes never actually hitting physical storage,
	// from both dedup and compression. Unlike DedupRatio, SavedRatio is
	// not clamped to [0, 1] below: compression-induced inflation (a rare
	// pathological input) can drive it negative, per spec.md §4.12's
	// "using signed arithmetic to handle compression-induced inflation".
	SavedRatio float64
	// ProjectedRemainingLogicalBytes forecasts how many more logical
	// bytes the remaining physical capacity can absorb at the current
	// SavedRatio, per spec.md §4.12:
	// remaining_physical / (1 - saved_ratio), or remaining_physical
	// itself when SavedRatio >= 1 (division would blow up or invert).
	ProjectedRemainingLogicalBytes uint64
}

// report renders the running counters into a StorageReport. remainingPhysical
// is the byte capacity the block allocator has left (spec.md §4.2's
// free_blocks * BlockSize), used for the forward capacity projection.
func (s *stats) report(remainingPhysical uint64) StorageReport {
	r := StorageReport{
		TotalLogicalBytes:              s.totalLogicalBytes,
		BytesAfterDedup:                s.bytesAfterDedup,
		TotalPhysicalBytes:             s.totalPhysicalBytes,
		DeduplicationCount:             s.dedupCount,
		WriteCount:                     s.writeCount,
		DedupRatio:                     1.0,
		CompressionRatio:               1.0,
		SavedRatio:                     1.0,
		ProjectedRemainingLogicalBytes: remainingPhysical,
	}
	if s.totalLogicalBytes > 0 {
		r.DedupRatio = float64(s.bytesAfterDedup) / float64(s.totalLogicalBytes)
		if r.DedupRatio > 1 {
			r.DedupRatio = 1
		}

		// Signed arithmetic: totalPhysicalBytes minus totalLogicalBytes can
		// legitimately go negative (inflation on pathological input), so the
		// ratio is computed via int64, not an unsigned subtraction.
		saved := 1.0 - (float64(int64(s.totalPhysicalBytes)) / float64(int64(s.totalLogicalBytes)))
		r.SavedRatio = saved
	}
	if s.bytesAfterDedup > 0 {
		r.CompressionRatio = float64(int64(s.totalPhysicalBytes)) / float64(int64(s.bytesAfterDedup))
	}
	if r.SavedRatio < 1 {
		r.ProjectedRemainingLogicalBytes = uint64(float64(remainingPhysical) / (1 - r.SavedRatio))
	}
	return r
}

// String renders the report the way a status command would print it.
func (r StorageReport) String() string {
	return fmt.Sprintf(
		"writes=%d logical=%d after_dedup=%d physical=%d dedup_count=%d dedup_ratio=%.3f compression_ratio=%.3f saved_ratio=%.3f projected_remaining=%d",
		r.WriteCount, r.TotalLogicalBytes, r.BytesAfterDedup, r.TotalPhysicalBytes,
		r.DeduplicationCount, r.DedupRatio, r.CompressionRatio, r.SavedRatio, r.ProjectedRemainingLogicalBytes,
	)
}
