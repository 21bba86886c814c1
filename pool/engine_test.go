package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/monitor"
	"github.com/gopherpool/enginepool/scaling"
)

// TestEngine_SubmitExecutesTask verifies a submitted task runs and is
// recorded as completed.
func TestEngine_SubmitExecutesTask(t *testing.T) {
	e := NewEngine(EngineConfig{
		Name: "p", CoreSize: 1, MaxSize: 1, ConfiguredMaxThreads: 1, MinThreads: 1, QueueCapacity: 10,
	})
	e.Start(context.Background())
	defer e.GracefulShutdown(context.Background())

	var ran sync.WaitGroup
	ran.Add(1)
	_, err := e.Submit(context.Background(), func(ctx context.Context) error {
		defer ran.Done()
		return nil
	}, 5)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitOrTimeout(t, &ran, time.Second)
	if e.Stats().Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", e.Stats().Completed())
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for task completion")
	}
}

// TestEngine_RejectsOverCapacity exercises scenario 2: a single blocking
// worker with a saturated queue rejects overflow submissions and records
// exactly one rejection.
func TestEngine_RejectsOverCapacity(t *testing.T) {
	e := NewEngine(EngineConfig{
		Name: "p", CoreSize: 1, MaxSize: 1, ConfiguredMaxThreads: 1, MinThreads: 1, QueueCapacity: 2,
	})
	e.Start(context.Background())
	defer e.GracefulShutdown(context.Background())

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	_, err := e.Submit(context.Background(), func(ctx context.Context) error {
		close(blockerStarted)
		<-release
		return nil
	}, 1)
	if err != nil {
		t.Fatalf("Submit(blocker) error = %v", err)
	}
	<-blockerStarted

	// Two fast tasks fill the capacity-2 queue; a third must be rejected.
	if _, err := e.Submit(context.Background(), noopPayload2, 1); err != nil {
		t.Fatalf("Submit(fast-1) error = %v", err)
	}
	if _, err := e.Submit(context.Background(), noopPayload2, 1); err != nil {
		t.Fatalf("Submit(fast-2) error = %v", err)
	}
	_, err = e.Submit(context.Background(), noopPayload2, 1)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Submit(fast-3) error = %v, want *RejectedError", err)
	}

	close(release)

	if got := e.Stats().Rejected(); got != 1 {
		t.Errorf("Rejected() = %d, want 1", got)
	}
}

func noopPayload2(ctx context.Context) error { return nil }

// TestEngine_SubmitRejectsAfterShutdown verifies submissions after
// GracefulShutdown are refused.
func TestEngine_SubmitRejectsAfterShutdown(t *testing.T) {
	e := NewEngine(EngineConfig{
		Name: "p", CoreSize: 1, MaxSize: 1, ConfiguredMaxThreads: 1, MinThreads: 1, QueueCapacity: 10,
	})
	e.Start(context.Background())
	if err := e.GracefulShutdown(context.Background()); err != nil {
		t.Fatalf("GracefulShutdown() error = %v", err)
	}

	_, err := e.Submit(context.Background(), noopPayload2, 5)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Submit() after shutdown error = %v, want *RejectedError", err)
	}
}

// TestEngine_ScalesUpUnderHighLoad exercises scenario 3 end-to-end through
// the real Engine, Monitor and Scaler wiring.
func TestEngine_ScalesUpUnderHighLoad(t *testing.T) {
	strategy := scaling.NewLoadBasedStrategy(scaling.LoadBasedConfig{
		HighThreshold: 0.5, LowThreshold: 0.1, ScaleUpBy: 2, ScaleDownBy: 1,
	})
	bus := alert.New()

	cfg := monitor.DefaultConfig()
	cfg.MonitoringPeriod = 20 * time.Millisecond
	cfg.EnableThreadMetrics = false
	cfg.EnableQueueMetrics = false

	e := NewEngine(EngineConfig{
		Name: "p", CoreSize: 2, MaxSize: 4, ConfiguredMaxThreads: 8, MinThreads: 2, QueueCapacity: 50,
		ScalingStrategy: strategy, ScalingCheckPeriod: 10 * time.Millisecond,
		MonitorConfig: cfg, Bus: bus,
	})
	e.Start(context.Background())
	defer e.GracefulShutdown(context.Background())

	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		e.Submit(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		}, 1)
	}

	deadline := time.After(time.Second)
	for e.CoreSize() == 2 {
		select {
		case <-deadline:
			close(release)
			t.Fatal("CoreSize never increased under saturated load")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)

	if e.CoreSize() <= 2 {
		t.Errorf("CoreSize() = %d, want > 2 after scale-up", e.CoreSize())
	}
}
