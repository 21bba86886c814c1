// Package stats implements the thread-safe counters, latency histogram, and
// percentile estimation backing the enginepool worker pool's live statistics.
package stats

import (
	"sort"
	"sync/atomic"
	"time"
)

const histogramBuckets = 100

// DefaultMaxLatencyMs is the default upper bound of the latency histogram.
const DefaultMaxLatencyMs int64 = 10000

// DefaultPercentiles is the percentile set sampled by AllLatencyPercentiles
// when a Stats instance is not configured with a custom set.
var DefaultPercentiles = []int{50, 75, 90, 95, 99}

// Stats accumulates task lifecycle counters and a latency histogram.
// Every mutator is safe to call concurrently without an external lock: each
// field is backed by its own atomic, so a Snapshot is consistent per-field
// but not necessarily atomic across fields.
type Stats struct {
	percentiles []int
	maxLatency  int64 // milliseconds
	startTime   time.Time

	submitted int64
	completed int64
	failed    int64
	rejected  int64

	totalWaitMs     int64
	totalExecMs     int64
	totalQueueMs    int64
	maxQueueSizeSum int64 // a running sum, not a max (mirrors known source quirk); see DESIGN.md section B

	buckets [histogramBuckets]int64
}

// New creates a Stats collector with the given percentile set and max latency
// bound. A zero percentiles slice falls back to DefaultPercentiles; a
// non-positive maxLatencyMs falls back to DefaultMaxLatencyMs.
func New(percentiles []int, maxLatencyMs int64) *Stats {
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	if maxLatencyMs <= 0 {
		maxLatencyMs = DefaultMaxLatencyMs
	}
	sorted := make([]int, len(percentiles))
	copy(sorted, percentiles)
	sort.Ints(sorted)

	return &Stats{
		percentiles: sorted,
		maxLatency:  maxLatencyMs,
		startTime:   time.Now(),
	}
}

func (s *Stats) RecordSubmission() { atomic.AddInt64(&s.submitted, 1) }
func (s *Stats) RecordCompletion() { atomic.AddInt64(&s.completed, 1) }
func (s *Stats) RecordFailure()    { atomic.AddInt64(&s.failed, 1) }
func (s *Stats) RecordRejection()  { atomic.AddInt64(&s.rejected, 1) }

func (s *Stats) RecordWaitTime(d time.Duration) {
	ms := d.Milliseconds()
	atomic.AddInt64(&s.totalWaitMs, ms)
	s.recordLatency(ms)
}

func (s *Stats) RecordExecutionTime(d time.Duration) {
	ms := d.Milliseconds()
	atomic.AddInt64(&s.totalExecMs, ms)
	s.recordLatency(ms)
}

func (s *Stats) RecordQueueTime(d time.Duration) {
	atomic.AddInt64(&s.totalQueueMs, d.Milliseconds())
}

// RecordQueueSize records an observed queue depth. Mirrors the historical
// implementation's `add(size)` semantics: this accumulates a running sum
// rather than tracking a true maximum. See DESIGN.md section B.
func (s *Stats) RecordQueueSize(n int) {
	atomic.AddInt64(&s.maxQueueSizeSum, int64(n))
}

func (s *Stats) recordLatency(ms int64) {
	if ms < 0 || ms > s.maxLatency {
		return
	}
	bucket := ms * histogramBuckets / s.maxLatency
	if bucket >= histogramBuckets {
		bucket = histogramBuckets - 1
	}
	atomic.AddInt64(&s.buckets[bucket], 1)
}

// Submitted, Completed, Failed, Rejected return the current counter values.
func (s *Stats) Submitted() int64 { return atomic.LoadInt64(&s.submitted) }
func (s *Stats) Completed() int64 { return atomic.LoadInt64(&s.completed) }
func (s *Stats) Failed() int64    { return atomic.LoadInt64(&s.failed) }
func (s *Stats) Rejected() int64  { return atomic.LoadInt64(&s.rejected) }

// AverageWaitTime returns the mean recorded wait time.
func (s *Stats) AverageWaitTime() time.Duration {
	completed := s.Completed() + s.Failed()
	if completed == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&s.totalWaitMs)/completed) * time.Millisecond
}

// AverageExecutionTime returns the mean recorded execution time.
func (s *Stats) AverageExecutionTime() time.Duration {
	completed := s.Completed() + s.Failed()
	if completed == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&s.totalExecMs)/completed) * time.Millisecond
}

// StartTime returns the wall-clock time this Stats instance was constructed.
func (s *Stats) StartTime() time.Time { return s.startTime }

// LatencyPercentile returns the estimated latency, in milliseconds, at or
// below which p percent of recorded samples fall. p is clamped to [0,100].
// An empty histogram returns 0.
func (s *Stats) LatencyPercentile(p float64) int64 {
	if p >= 100 {
		return s.maxLatency
	}
	if p < 0 {
		p = 0
	}

	var total int64
	snapshot := make([]int64, histogramBuckets)
	for i := range snapshot {
		snapshot[i] = atomic.LoadInt64(&s.buckets[i])
		total += snapshot[i]
	}
	if total == 0 {
		return 0
	}

	threshold := float64(total) * p / 100
	var cumulative int64
	for i, count := range snapshot {
		cumulative += count
		if float64(cumulative) >= threshold {
			return int64(i) * s.maxLatency / histogramBuckets
		}
	}
	return s.maxLatency
}

// AllLatencyPercentiles returns LatencyPercentile for every percentile this
// Stats instance was configured with.
func (s *Stats) AllLatencyPercentiles() map[int]int64 {
	out := make(map[int]int64, len(s.percentiles))
	for _, p := range s.percentiles {
		out[p] = s.LatencyPercentile(float64(p))
	}
	return out
}

// Snapshot returns a new Stats whose counters and histogram buckets equal a
// point-in-time read of the receiver. The snapshot is itself a fully
// functional, independent Stats (it can be queried again but never mutates
// the original).
func (s *Stats) Snapshot() *Stats {
	out := &Stats{
		percentiles: s.percentiles,
		maxLatency:  s.maxLatency,
		startTime:   s.startTime,
		submitted:   atomic.LoadInt64(&s.submitted),
		completed:   atomic.LoadInt64(&s.completed),
		failed:      atomic.LoadInt64(&s.failed),
		rejected:    atomic.LoadInt64(&s.rejected),

		totalWaitMs:     atomic.LoadInt64(&s.totalWaitMs),
		totalExecMs:     atomic.LoadInt64(&s.totalExecMs),
		totalQueueMs:    atomic.LoadInt64(&s.totalQueueMs),
		maxQueueSizeSum: atomic.LoadInt64(&s.maxQueueSizeSum),
	}
	for i := range s.buckets {
		out.buckets[i] = atomic.LoadInt64(&s.buckets[i])
	}
	return out
}
