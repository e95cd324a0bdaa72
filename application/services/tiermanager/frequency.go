package tiermanager

import (
	"sync"
	"time"
)

// bucketWidth is the granularity of the sliding-window frequency
// tracker's internal buckets. Sub-bucket resolution within the 1h
// window (spec §4.6) keeps the eviction of expired hits O(buckets)
// instead of O(hits).
const bucketWidth = 5 * time.Minute

// FrequencyTracker counts accesses per (user_id, memory_id) within a
// sliding window. All keys share one map behind a single mutex; the
// counters are not sharded.
type FrequencyTracker struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string][]bucket
}

type bucket struct {
	start time.Time
	count int
}

// NewFrequencyTracker builds a tracker with the given sliding window
// (spec §4.6 default 1h).
func NewFrequencyTracker(window time.Duration) *FrequencyTracker {
	if window <= 0 {
		window = time.Hour
	}
	return &FrequencyTracker{window: window, buckets: map[string][]bucket{}}
}

func key(userID, memoryID string) string { return userID + "\x00" + memoryID }

// RecordAccess registers an access at time now and returns the
// resulting count within the sliding window.
func (f *FrequencyTracker) RecordAccess(userID, memoryID string, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := key(userID, memoryID)
	bs := f.evict(f.buckets[k], now)

	bucketStart := now.Truncate(bucketWidth)
	if len(bs) > 0 && bs[len(bs)-1].start.Equal(bucketStart) {
		bs[len(bs)-1].count++
	} else {
		bs = append(bs, bucket{start: bucketStart, count: 1})
	}
	f.buckets[k] = bs
	return sumCounts(bs)
}

// Count returns the current sliding-window count without recording a
// new access.
func (f *FrequencyTracker) Count(userID, memoryID string, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := key(userID, memoryID)
	bs := f.evict(f.buckets[k], now)
	f.buckets[k] = bs
	return sumCounts(bs)
}

func (f *FrequencyTracker) evict(bs []bucket, now time.Time) []bucket {
	cutoff := now.Add(-f.window)
	i := 0
	for i < len(bs) && bs[i].start.Before(cutoff) {
		i++
	}
	if i == 0 {
		return bs
	}
	out := make([]bucket, len(bs)-i)
	copy(out, bs[i:])
	return out
}

func sumCounts(bs []bucket) int {
	total := 0
	for _, b := range bs {
		total += b.count
	}
	return total
}
