package alert

import (
	"sync"
	"testing"
)

type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingListener) HandleAlert(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingListener) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// TestBus_PublishDeliversToExactPairOnly verifies publishing to (levelX, kindY)
// reaches only listeners registered for exactly that pair.
func TestBus_PublishDeliversToExactPairOnly(t *testing.T) {
	b := New()
	warn := &recordingListener{}
	info := &recordingListener{}

	b.Subscribe(LevelWarning, KindMonitoring, warn)
	b.Subscribe(LevelInfo, KindScaling, info)

	b.Publish("usage high", LevelWarning, KindMonitoring, nil)

	if warn.count() != 1 {
		t.Errorf("warn listener got %d events, want 1", warn.count())
	}
	if info.count() != 0 {
		t.Errorf("info listener got %d events, want 0", info.count())
	}
}

// TestBus_SubscribeThenUnsubscribeLeavesListUnchanged verifies subscribing
// then immediately unsubscribing leaves no trace.
func TestBus_SubscribeThenUnsubscribeLeavesListUnchanged(t *testing.T) {
	b := New()
	l := &recordingListener{}

	sub := b.Subscribe(LevelError, KindScaling, l)
	b.Unsubscribe(sub)

	b.Publish("should not be seen", LevelError, KindScaling, nil)

	if l.count() != 0 {
		t.Errorf("listener got %d events after unsubscribe, want 0", l.count())
	}
}

// TestBus_PoolFilterDelivery verifies pool-filtered listeners only receive
// events whose metadata poolName matches.
func TestBus_PoolFilterDelivery(t *testing.T) {
	b := New()
	l := &recordingListener{}
	b.SubscribeForPool(LevelInfo, KindMonitoring, l, "pool-a")

	b.Publish("for pool-b", LevelInfo, KindMonitoring, Metadata{"poolName": "pool-b"})
	if l.count() != 0 {
		t.Fatalf("listener got %d events for non-matching pool, want 0", l.count())
	}

	b.Publish("for pool-a", LevelInfo, KindMonitoring, Metadata{"poolName": "pool-a"})
	if l.count() != 1 {
		t.Errorf("listener got %d events for matching pool, want 1", l.count())
	}
}

// TestBus_SubscribeAllFansOutToEveryPair verifies SubscribeAll receives
// events across every (level, kind) combination.
func TestBus_SubscribeAllFansOutToEveryPair(t *testing.T) {
	b := New()
	l := &recordingListener{}
	b.SubscribeAll(l)

	for _, lvl := range allLevels {
		for _, k := range allKinds {
			b.Publish("x", lvl, k, nil)
		}
	}

	want := len(allLevels) * len(allKinds)
	if got := l.count(); got != want {
		t.Errorf("listener got %d events, want %d", got, want)
	}
}

// TestBus_ListenerPanicDoesNotAbortDispatch verifies a panicking listener
// doesn't prevent later listeners in the same publish from being invoked.
func TestBus_ListenerPanicDoesNotAbortDispatch(t *testing.T) {
	b := New()
	panicky := ListenerFunc(func(Event) { panic("boom") })
	survivor := &recordingListener{}

	b.Subscribe(LevelCritical, KindMonitoring, panicky)
	b.Subscribe(LevelCritical, KindMonitoring, survivor)

	b.Publish("trouble", LevelCritical, KindMonitoring, nil)

	if survivor.count() != 1 {
		t.Errorf("survivor got %d events, want 1 despite earlier listener panic", survivor.count())
	}
}

// TestBus_MetadataIsDefensivelyCopied verifies mutating the caller's map
// after Publish doesn't affect delivered events.
func TestBus_MetadataIsDefensivelyCopied(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(LevelInfo, KindScaling, ListenerFunc(func(e Event) { got = e }))

	md := Metadata{"reason": "initial"}
	b.Publish("x", LevelInfo, KindScaling, md)
	md["reason"] = "mutated"

	if got.Metadata["reason"] != "initial" {
		t.Errorf("Metadata[reason] = %v, want %q (defensive copy)", got.Metadata["reason"], "initial")
	}
}
