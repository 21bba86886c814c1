package pool

import (
	"context"
	"testing"
	"time"

	"github.com/gopherpool/enginepool/persistence"
)

func noopPayload(ctx context.Context) error { return nil }

// TestQueue_OfferRejectsOverCapacity verifies Offer returns false once the
// queue is full and never blocks.
func TestQueue_OfferRejectsOverCapacity(t *testing.T) {
	q := NewPriorityPersistentQueue(2, nil, nil, "p", nil)

	if !q.Offer(NewTrackedTask(1, noopPayload)) {
		t.Fatal("first Offer() = false, want true")
	}
	if !q.Offer(NewTrackedTask(1, noopPayload)) {
		t.Fatal("second Offer() = false, want true")
	}
	if q.Offer(NewTrackedTask(1, noopPayload)) {
		t.Fatal("third Offer() = true, want false (capacity exceeded)")
	}
}

// TestQueue_TakeOrdersByPriorityThenSubmitTime verifies scenario 1: lower
// priority values come out first. FIFO order within a priority class is
// checked by TestQueue_TakeFIFOWithinEqualPriority.
func TestQueue_TakeOrdersByPriorityThenSubmitTime(t *testing.T) {
	q := NewPriorityPersistentQueue(10, nil, nil, "p", nil)

	low := NewTrackedTask(9, noopPayload)
	high := NewTrackedTask(1, noopPayload)
	mid := NewTrackedTask(5, noopPayload)

	q.Offer(low)
	q.Offer(high)
	q.Offer(mid)

	ctx := context.Background()
	first, _ := q.Take(ctx)
	second, _ := q.Take(ctx)
	third, _ := q.Take(ctx)

	if first.ID() != high.ID() {
		t.Errorf("first task = priority %d, want priority 1", first.Priority())
	}
	if second.ID() != mid.ID() {
		t.Errorf("second task = priority %d, want priority 5", second.Priority())
	}
	if third.ID() != low.ID() {
		t.Errorf("third task = priority %d, want priority 9", third.Priority())
	}
}

// TestQueue_TakeFIFOWithinEqualPriority verifies submission order is
// preserved for tasks sharing the same priority.
func TestQueue_TakeFIFOWithinEqualPriority(t *testing.T) {
	q := NewPriorityPersistentQueue(10, nil, nil, "p", nil)

	var tasks []*TrackedTask
	for i := 0; i < 5; i++ {
		task := NewTrackedTask(3, noopPayload)
		tasks = append(tasks, task)
		q.Offer(task)
	}

	for i, want := range tasks {
		got, err := q.Take(context.Background())
		if err != nil {
			t.Fatalf("Take() error at index %d: %v", i, err)
		}
		if got.ID() != want.ID() {
			t.Errorf("Take() at index %d = %s, want %s (FIFO within priority)", i, got.ID(), want.ID())
		}
	}
}

// TestQueue_TakeBlocksThenUnblocksOnOffer verifies a blocked Take is woken
// once a task becomes available.
func TestQueue_TakeBlocksThenUnblocksOnOffer(t *testing.T) {
	q := NewPriorityPersistentQueue(10, nil, nil, "p", nil)

	result := make(chan *TrackedTask, 1)
	go func() {
		task, err := q.Take(context.Background())
		if err == nil {
			result <- task
		}
	}()

	time.Sleep(10 * time.Millisecond)
	submitted := NewTrackedTask(1, noopPayload)
	q.Offer(submitted)

	select {
	case got := <-result:
		if got.ID() != submitted.ID() {
			t.Errorf("Take() = %s, want %s", got.ID(), submitted.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("Take() never unblocked after Offer")
	}
}

// TestQueue_TakeReturnsOnContextCancel verifies a blocked Take respects
// context cancellation instead of blocking forever.
func TestQueue_TakeReturnsOnContextCancel(t *testing.T) {
	q := NewPriorityPersistentQueue(10, nil, nil, "p", nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Take() error = nil, want context.Canceled")
		}
	case <-time.After(time.Second):
		t.Fatal("Take() never returned after context cancellation")
	}
}

// TestQueue_ShutdownWakesBlockedTake verifies Shutdown unblocks a pending
// Take with ErrQueueShutdown.
func TestQueue_ShutdownWakesBlockedTake(t *testing.T) {
	q := NewPriorityPersistentQueue(10, nil, nil, "p", nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Shutdown()

	select {
	case err := <-errCh:
		if err != ErrQueueShutdown {
			t.Errorf("Take() error = %v, want ErrQueueShutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() never returned after Shutdown")
	}
}

// TestQueue_SaveLoadRoundTripPreservesOrder exercises scenario 5: submit
// tasks, snapshot, and reload into a fresh queue via the same strategy.
func TestQueue_SaveLoadRoundTripPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	strategy := persistence.NewFileStrategy(dir + "/queue.jsonl")

	q := NewPriorityPersistentQueue(100, strategy, nil, "p", nil)
	var ids []string
	for i := 0; i < 10; i++ {
		task := NewTrackedTask(i%3, noopPayload)
		ids = append(ids, task.ID())
		q.Offer(task)
	}

	q.Shutdown() // forces a final snapshot

	reloaded := NewPriorityPersistentQueue(100, strategy, nil, "p", nil)
	n, err := reloaded.LoadFromPersistence(context.Background())
	if err != nil {
		t.Fatalf("LoadFromPersistence() error = %v", err)
	}
	if n != 10 {
		t.Fatalf("LoadFromPersistence() restored %d tasks, want 10", n)
	}
	if reloaded.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", reloaded.Size())
	}

	seen := make(map[string]bool)
	var prev *TrackedTask
	for i := 0; i < 10; i++ {
		got, err := reloaded.Take(context.Background())
		if err != nil {
			t.Fatalf("Take() error at index %d: %v", i, err)
		}
		if prev != nil && (got.Priority() < prev.Priority() ||
			(got.Priority() == prev.Priority() && got.SubmitTimeMs() < prev.SubmitTimeMs())) {
			t.Errorf("Take() at index %d = (priority %d, submit %d), out of order after (priority %d, submit %d)",
				i, got.Priority(), got.SubmitTimeMs(), prev.Priority(), prev.SubmitTimeMs())
		}
		seen[got.ID()] = true
		prev = got
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("task %s missing after reload", id)
		}
	}
}

// TestQueue_SetCapacityShrinksAcceptance verifies lowering capacity below
// the current size stops further offers without evicting queued tasks.
func TestQueue_SetCapacityShrinksAcceptance(t *testing.T) {
	q := NewPriorityPersistentQueue(5, nil, nil, "p", nil)
	q.Offer(NewTrackedTask(1, noopPayload))
	q.Offer(NewTrackedTask(1, noopPayload))

	if err := q.SetCapacity(2); err != nil {
		t.Fatalf("SetCapacity() error = %v", err)
	}
	if q.Offer(NewTrackedTask(1, noopPayload)) {
		t.Error("Offer() = true after shrinking capacity to current size, want false")
	}
	if q.Size() != 2 {
		t.Errorf("Size() = %d, want 2 (no eviction on shrink)", q.Size())
	}
}
