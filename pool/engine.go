package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/logging"
	"github.com/gopherpool/enginepool/monitor"
	"github.com/gopherpool/enginepool/persistence"
	"github.com/gopherpool/enginepool/scaling"
	"github.com/gopherpool/enginepool/stats"
)

const gracefulShutdownTimeout = 30 * time.Second

// EngineConfig assembles every collaborator an Engine needs. Callers
// typically build this through poolconfig.Builder rather than by hand.
type EngineConfig struct {
	Name string

	CoreSize             int
	MaxSize              int
	ConfiguredMaxThreads int
	MinThreads           int
	KeepAlive            time.Duration
	QueueCapacity        int

	Stats *stats.Stats

	PersistenceStrategy persistence.Strategy
	PayloadCodec        persistence.PayloadCodec

	ScalingStrategy    scaling.Strategy
	ScalingCheckPeriod time.Duration

	MonitorConfig monitor.Config

	Bus     *alert.Bus
	Logger  logging.Logger
	Metrics Metrics
}

// Engine owns worker goroutines, a priority persistent queue, live
// statistics, a scaler, and a monitor. It implements scaling.PoolController
// and monitor.Sampler so those packages never import pool. Grounded on the
// teacher's GoroutineThreadPool/TaskScheduler pair, generalized from a fixed
// worker count to core/max/keep-alive semantics.
type Engine struct {
	name   string
	logger logging.Logger
	bus    *alert.Bus

	queue   *PriorityPersistentQueue
	stats   *stats.Stats
	metrics Metrics

	scaler  *scaling.Scaler
	monitor *monitor.Monitor

	coreSize             atomic.Int64
	maxSize              atomic.Int64
	keepAliveNs          atomic.Int64
	configuredMaxThreads int
	minThreads           int

	workerSeq     atomic.Int64
	liveWorkers   atomic.Int64
	activeWorkers atomic.Int64

	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     atomic.Bool
	shuttingDown atomic.Bool
}

// NewEngine assembles an Engine from cfg, filling in the teacher-style
// defaults (no-op logger, global alert bus, no scaling strategy) for any
// unset collaborator.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoOpLogger()
	}
	if cfg.Bus == nil {
		cfg.Bus = alert.Global()
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.New(nil, 0)
	}
	if cfg.ConfiguredMaxThreads <= 0 {
		cfg.ConfiguredMaxThreads = cfg.MaxSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetrics{}
	}

	e := &Engine{
		name:                 cfg.Name,
		logger:               cfg.Logger,
		bus:                  cfg.Bus,
		stats:                cfg.Stats,
		metrics:              cfg.Metrics,
		configuredMaxThreads: cfg.ConfiguredMaxThreads,
		minThreads:           cfg.MinThreads,
	}
	e.coreSize.Store(int64(cfg.CoreSize))
	e.maxSize.Store(int64(cfg.MaxSize))
	e.keepAliveNs.Store(int64(cfg.KeepAlive))

	e.queue = NewPriorityPersistentQueue(cfg.QueueCapacity, cfg.PersistenceStrategy, cfg.PayloadCodec, cfg.Name, cfg.Logger)

	var attempter monitor.ScalingAttempter
	if cfg.ScalingStrategy != nil {
		checkPeriod := cfg.ScalingCheckPeriod
		if checkPeriod <= 0 {
			checkPeriod = 30 * time.Second
		}
		e.scaler = scaling.NewScaler(cfg.ScalingStrategy, e, checkPeriod, cfg.Bus, cfg.Logger)
		attempter = e.scaler
	}

	e.monitor = monitor.New(cfg.MonitorConfig, e, attempter, cfg.Bus, cfg.Logger)

	return e
}

// Start launches core workers, overflow workers up to MaxSize, the queue
// snapshotter, and the monitor. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.queue.StartSnapshotter(e.ctx)

	core := int(e.coreSize.Load())
	max := int(e.maxSize.Load())
	for i := 0; i < core; i++ {
		e.spawnWorker(true)
	}
	for i := core; i < max; i++ {
		e.spawnWorker(false)
	}

	e.monitor.Start()
}

func (e *Engine) spawnWorker(isCore bool) {
	e.wg.Add(1)
	e.liveWorkers.Add(1)
	id := e.workerSeq.Add(1)
	go e.workerLoop(id, isCore)
}

// workerLoop is the per-goroutine main loop. Core workers block
// indefinitely on Take; overflow workers block up to the current
// keep-alive duration and exit once idle beyond it, mirroring the
// interface contract's above-core keep-alive semantics.
func (e *Engine) workerLoop(id int64, isCore bool) {
	defer e.wg.Done()
	defer e.liveWorkers.Add(-1)

	workerName := fmt.Sprintf("%s-worker-%d", e.name, id)

	for {
		task, err := e.take(isCore)
		if err != nil {
			return
		}
		e.runTask(workerName, task)
	}
}

func (e *Engine) take(isCore bool) (*TrackedTask, error) {
	if isCore {
		return e.queue.Take(e.ctx)
	}

	keepAlive := time.Duration(e.keepAliveNs.Load())
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}
	tctx, cancel := context.WithTimeout(e.ctx, keepAlive)
	defer cancel()

	// Either a deadline-exceeded idle timeout (retire this overflow worker)
	// or the parent context ending (pool shutting down) surfaces here as an
	// error and ends the loop; the caller doesn't need to tell them apart.
	return e.queue.Take(tctx)
}

func (e *Engine) runTask(workerName string, task *TrackedTask) {
	wait := time.Since(time.UnixMilli(task.submitTimeMs))
	e.stats.RecordQueueTime(wait)
	e.stats.RecordQueueSize(e.queue.Size())
	e.metrics.ObserveTaskWait(wait)

	e.activeWorkers.Add(1)
	defer e.activeWorkers.Add(-1)

	start := time.Now()
	err := task.Run(e.ctx, e.stats)
	e.metrics.ObserveTaskExec(time.Since(start))

	if err != nil {
		e.metrics.IncTaskOutcome("failed")
		e.logger.Warn("task failed", logging.F("pool", e.name), logging.F("worker", workerName),
			logging.F("taskId", task.id), logging.F("error", err))
		return
	}
	e.metrics.IncTaskOutcome("completed")
}

// Submit wraps payload into a TrackedTask at priority and offers it to the
// queue. Rejections (capacity or shutdown) are recorded in Stats, logged,
// and returned as a *RejectedError.
func (e *Engine) Submit(ctx context.Context, payload Payload, priority int) (*TrackedTask, error) {
	if e.shuttingDown.Load() {
		e.stats.RecordRejection()
		e.metrics.IncTaskOutcome("rejected")
		e.logger.Warn("task rejected: pool is shutting down", logging.F("pool", e.name))
		return nil, &RejectedError{Reason: "pool is shutting down"}
	}

	task := NewTrackedTask(priority, payload)
	e.stats.RecordSubmission()
	e.metrics.IncTaskOutcome("submitted")

	if !e.queue.Offer(task) {
		e.stats.RecordRejection()
		e.metrics.IncTaskOutcome("rejected")
		e.logger.Warn("task rejected: queue full", logging.F("pool", e.name), logging.F("taskId", task.id))
		return nil, &RejectedError{TaskID: task.id, Reason: "queue is full"}
	}
	return task, nil
}

// Execute submits payload at DefaultPriority.
func (e *Engine) Execute(ctx context.Context, payload Payload) (*TrackedTask, error) {
	return e.Submit(ctx, payload, DefaultPriority)
}

// Sample implements monitor.Sampler.
func (e *Engine) Sample() stats.PoolSnapshot {
	return stats.PoolSnapshot{
		TaskStats:      e.stats.Snapshot(),
		ActiveThreads:  int(e.activeWorkers.Load()),
		PoolSize:       int(e.liveWorkers.Load()),
		MaxPoolSize:    e.MaxSize(),
		QueueSize:      e.queue.Size(),
		QueueCapacity:  e.queue.Capacity(),
		CompletedTasks: e.stats.Completed(),
		TimestampMs:    time.Now().UnixMilli(),
	}
}

// Stats returns the engine's live Stats collector.
func (e *Engine) Stats() *stats.Stats { return e.stats }

// LoadFromPersistence restores queued-but-unstarted work from the engine's
// persistence strategy. Call before Start; loaded tasks fail with
// ErrUnreplayableTask when they reach the front of the queue, since their
// original payload closures cannot be reconstructed (see queue.go).
func (e *Engine) LoadFromPersistence(ctx context.Context) (int, error) {
	return e.queue.LoadFromPersistence(ctx)
}

// --- scaling.PoolController ---

func (e *Engine) CoreSize() int           { return int(e.coreSize.Load()) }
func (e *Engine) MaxSize() int            { return int(e.maxSize.Load()) }
func (e *Engine) KeepAlive() time.Duration { return time.Duration(e.keepAliveNs.Load()) }
func (e *Engine) QueueCapacity() int      { return e.queue.Capacity() }

func (e *Engine) SetCoreSize(n int) error {
	if n < 0 {
		return fmt.Errorf("pool: core size must be >= 0, got %d", n)
	}
	old := int(e.coreSize.Swap(int64(n)))
	if e.started.Load() && n > old {
		for i := old; i < n; i++ {
			e.spawnWorker(true)
		}
	}
	return nil
}

func (e *Engine) SetMaxSize(n int) error {
	if n < e.CoreSize() {
		return fmt.Errorf("pool: max size (%d) must be >= core size (%d)", n, e.CoreSize())
	}
	old := int(e.maxSize.Swap(int64(n)))
	if e.started.Load() && n > old {
		for i := old; i < n; i++ {
			e.spawnWorker(false)
		}
	}
	return nil
}

func (e *Engine) SetKeepAlive(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("pool: keep-alive must be >= 0")
	}
	e.keepAliveNs.Store(int64(d))
	return nil
}

func (e *Engine) SetQueueCapacity(n int) error { return e.queue.SetCapacity(n) }

func (e *Engine) ConfiguredMaxThreads() int { return e.configuredMaxThreads }
func (e *Engine) MinThreads() int           { return e.minThreads }
func (e *Engine) IsShuttingDown() bool      { return e.shuttingDown.Load() }
func (e *Engine) PoolName() string          { return e.name }

// GracefulShutdown stops accepting work, stops the monitor and the queue
// snapshotter (final save), and awaits worker termination up to 30s before
// canceling remaining workers via context.
func (e *Engine) GracefulShutdown(ctx context.Context) error {
	if !e.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	e.monitor.Stop()
	e.queue.Shutdown()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	case <-time.After(gracefulShutdownTimeout):
		e.cancel()
		<-done
		return &ShutdownTimeoutError{Waited: gracefulShutdownTimeout.String()}
	}
}
