package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/gopherpool/enginepool/alert"
	"github.com/gopherpool/enginepool/stats"
)

// SnapshotProvider is the narrow read surface a SnapshotPoller needs. A
// pool.Engine implements this via its existing Sample/PoolName methods
// (monitor.Sampler), so wiring a poller never requires pool to import this
// package.
type SnapshotProvider interface {
	Sample() stats.PoolSnapshot
	PoolName() string
}

// SnapshotPoller periodically exports pool snapshots into Prometheus gauges
// at its own cadence, independent of the Monitor's alerting cadence,
// grounded on the teacher's SnapshotPoller.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]SnapshotProvider

	poolSize     *prom.GaugeVec
	poolActive   *prom.GaugeVec
	queueSize    *prom.GaugeVec
	queueCap     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors
// under namespace against reg.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "enginepool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolSize := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Name: "pool_size", Help: "Live worker count.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Name: "pool_active", Help: "Workers currently executing a task.",
	}, []string{"pool"})
	queueSize := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Name: "queue_size", Help: "Queued task count.",
	}, []string{"pool"})
	queueCap := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Name: "queue_capacity", Help: "Queue capacity.",
	}, []string{"pool"})

	var err error
	if poolSize, err = registerCollector(reg, poolSize); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if queueSize, err = registerCollector(reg, queueSize); err != nil {
		return nil, err
	}
	if queueCap, err = registerCollector(reg, queueCap); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:   interval,
		pools:      make(map[string]SnapshotProvider),
		poolSize:   poolSize,
		poolActive: poolActive,
		queueSize:  queueSize,
		queueCap:   queueCap,
	}, nil
}

// AddPool adds or replaces a snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider SnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		snap := provider.Sample()
		p.poolSize.WithLabelValues(name).Set(float64(snap.PoolSize))
		p.poolActive.WithLabelValues(name).Set(float64(snap.ActiveThreads))
		p.queueSize.WithLabelValues(name).Set(float64(snap.QueueSize))
		p.queueCap.WithLabelValues(name).Set(float64(snap.QueueCapacity))
	}
}

// ScalingEventsCounter increments a `<ns>_scaling_events_total{result}`
// counter from Alert Bus scaling events. Subscribe wires it to a Bus for
// (INFO, SCALING) as "applied" and (ERROR, SCALING) as "failed".
type ScalingEventsCounter struct {
	scalingEventsTotal *prom.CounterVec
}

// NewScalingEventsCounter creates and registers the counter under namespace
// against reg.
func NewScalingEventsCounter(namespace string, reg prom.Registerer) (*ScalingEventsCounter, error) {
	if namespace == "" {
		namespace = "enginepool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	vec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "scaling_events_total",
		Help:      "Total scaling attempts by result.",
	}, []string{"result"})

	vec, err := registerCollector(reg, vec)
	if err != nil {
		return nil, err
	}
	return &ScalingEventsCounter{scalingEventsTotal: vec}, nil
}

// Subscribe registers the counter against bus for scaling alerts and returns
// the subscriptions so the caller can Unsubscribe on shutdown.
func (c *ScalingEventsCounter) Subscribe(bus *alert.Bus) []alert.Subscription {
	applied := bus.Subscribe(alert.LevelInfo, alert.KindScaling, alert.ListenerFunc(func(alert.Event) {
		c.scalingEventsTotal.WithLabelValues("applied").Inc()
	}))
	failed := bus.Subscribe(alert.LevelError, alert.KindScaling, alert.ListenerFunc(func(alert.Event) {
		c.scalingEventsTotal.WithLabelValues("failed").Inc()
	}))
	return []alert.Subscription{applied, failed}
}
