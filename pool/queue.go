package pool

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/persistence"
)

// ErrQueueShutdown is returned by Take once the queue has been shut down and
// drained of its wake-up signal.
var ErrQueueShutdown = errors.New("pool: queue is shut down")

const snapshotInterval = 60 * time.Second
const snapshotEveryNInserts = 100
const shutdownGracePeriod = 5 * time.Second

type queueItem struct {
	task     *TrackedTask
	sequence uint64
	index    int
}

// taskHeap implements heap.Interface, ordering by (priority, submitTimeMs)
// ascending with an insertion sequence as a final tiebreak against
// millisecond-resolution collisions, grounded on the teacher's
// priorityItem/priorityHeap stability trick.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.priority != h[j].task.priority {
		return h[i].task.priority < h[j].task.priority
	}
	if h[i].task.submitTimeMs != h[j].task.submitTimeMs {
		return h[i].task.submitTimeMs < h[j].task.submitTimeMs
	}
	return h[i].sequence < h[j].sequence
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityPersistentQueue is a bounded min-heap of Tracked Tasks that
// periodically snapshots its contents through a persistence.Strategy.
// Grounded on the teacher's core.PriorityTaskQueue plus the DelayManager's
// channel-driven ticker loop for the background snapshotter.
type PriorityPersistentQueue struct {
	mu           sync.Mutex
	heap         taskHeap
	nextSequence uint64

	capacity atomic.Int64
	inserts  atomic.Int64

	strategy persistence.Strategy
	codec    persistence.PayloadCodec
	poolName string
	logger   logging.Logger

	signal       chan struct{}
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	snapCancel context.CancelFunc
	snapDone   chan struct{}
}

// NewPriorityPersistentQueue creates a queue with the given capacity.
// strategy defaults to persistence.NoopStrategy and codec to
// persistence.JSONCodec when nil.
func NewPriorityPersistentQueue(capacity int, strategy persistence.Strategy, codec persistence.PayloadCodec, poolName string, logger logging.Logger) *PriorityPersistentQueue {
	if strategy == nil {
		strategy = persistence.NewNoopStrategy()
	}
	if codec == nil {
		codec = persistence.NewJSONCodec()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	q := &PriorityPersistentQueue{
		heap:       make(taskHeap, 0),
		strategy:   strategy,
		codec:      codec,
		poolName:   poolName,
		logger:     logger,
		signal:     make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}
	q.capacity.Store(int64(capacity))
	heap.Init(&q.heap)
	return q
}

// Offer inserts task if the queue has spare capacity, returning false
// otherwise. Never blocks.
func (q *PriorityPersistentQueue) Offer(task *TrackedTask) bool {
	q.mu.Lock()
	if int64(len(q.heap)) >= q.capacity.Load() {
		q.mu.Unlock()
		return false
	}
	heap.Push(&q.heap, &queueItem{task: task, sequence: q.nextSequence})
	q.nextSequence++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}

	if n := q.inserts.Add(1); n%snapshotEveryNInserts == 0 {
		go q.snapshotWithTimeout()
	}
	return true
}

// Take blocks until a task is available, ctx is done, or the queue has been
// shut down.
func (q *PriorityPersistentQueue) Take(ctx context.Context) (*TrackedTask, error) {
	for {
		q.mu.Lock()
		if len(q.heap) > 0 {
			item := heap.Pop(&q.heap).(*queueItem)
			q.mu.Unlock()
			return item.task, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.shutdownCh:
			return nil, ErrQueueShutdown
		}
	}
}

// Size returns the number of queued tasks.
func (q *PriorityPersistentQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Capacity returns the current maximum queue size.
func (q *PriorityPersistentQueue) Capacity() int { return int(q.capacity.Load()) }

// RemainingCapacity returns Capacity minus the current size.
func (q *PriorityPersistentQueue) RemainingCapacity() int {
	return q.Capacity() - q.Size()
}

// SetCapacity resizes the queue at runtime. It does not evict tasks if the
// new capacity is below the current size; it only stops accepting new
// offers until the size drops back under the limit.
func (q *PriorityPersistentQueue) SetCapacity(n int) error {
	if n < 0 {
		return errors.New("pool: queue capacity must be >= 0")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.capacity.Store(int64(n))
	return nil
}

// StartSnapshotter launches the background ticker that snapshots the queue
// once per minute until ctx is done or Shutdown is called.
func (q *PriorityPersistentQueue) StartSnapshotter(ctx context.Context) {
	snapCtx, cancel := context.WithCancel(ctx)
	q.snapCancel = cancel
	q.snapDone = make(chan struct{})
	go q.snapshotLoop(snapCtx)
}

func (q *PriorityPersistentQueue) snapshotLoop(ctx context.Context) {
	defer close(q.snapDone)
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.snapshotWithTimeout()
		}
	}
}

func (q *PriorityPersistentQueue) snapshotWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	q.snapshotNow(ctx)
}

func (q *PriorityPersistentQueue) snapshotNow(ctx context.Context) {
	q.mu.Lock()
	records := make([]persistence.SerializableTask, 0, len(q.heap))
	for _, item := range q.heap {
		blob, err := q.codec.Encode(replayMarker{TaskID: item.task.id})
		if err != nil {
			q.logger.Warn("queue: failed to encode task for snapshot",
				logging.F("pool", q.poolName), logging.F("taskId", item.task.id), logging.F("error", err))
			continue
		}
		records = append(records, persistence.SerializableTask{
			TaskID:       item.task.id,
			SubmitTimeMs: item.task.submitTimeMs,
			Priority:     item.task.priority,
			Blob:         blob,
		})
	}
	q.mu.Unlock()

	if err := q.strategy.Save(ctx, records); err != nil {
		q.logger.Warn("queue: snapshot save failed", logging.F("pool", q.poolName), logging.F("error", err))
	}
}

// replayMarker is the opaque payload placeholder encoded into a snapshot.
// It records only the task id since the actual payload closure cannot be
// serialized.
type replayMarker struct {
	TaskID string `json:"taskId"`
}

// LoadFromPersistence restores queued-but-unstarted work from strategy.
// Reconstructed tasks carry a replayPayload rather than their original
// closure; see ErrUnreplayableTask. Returns the number of tasks restored.
func (q *PriorityPersistentQueue) LoadFromPersistence(ctx context.Context) (int, error) {
	records, err := q.strategy.Load(ctx)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	restored := 0
	for _, r := range records {
		if int64(len(q.heap)) >= q.capacity.Load() {
			break
		}
		task := &TrackedTask{
			id:           r.TaskID,
			submitTimeMs: r.SubmitTimeMs,
			priority:     r.Priority,
			payload:      replayPayload(r.TaskID),
		}
		heap.Push(&q.heap, &queueItem{task: task, sequence: q.nextSequence})
		q.nextSequence++
		restored++
	}
	return restored, nil
}

// Shutdown forces a final snapshot, wakes any blocked Take callers, and
// stops the background snapshotter goroutine within a 5s grace period.
func (q *PriorityPersistentQueue) Shutdown() {
	q.shutdownOnce.Do(func() { close(q.shutdownCh) })

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	q.snapshotNow(ctx)

	if q.snapCancel != nil {
		q.snapCancel()
	}
	if q.snapDone != nil {
		select {
		case <-q.snapDone:
		case <-time.After(shutdownGracePeriod):
		}
	}
}
