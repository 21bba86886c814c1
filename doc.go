// Package enginepool provides an enhanced worker pool: a priority queue of
// tracked tasks, a core/max/keep-alive worker model, live statistics with
// percentile latency histograms, durable queue persistence, pluggable
// autoscaling, and a structured alert bus.
//
// The pool itself lives in the pool package as pool.Engine. Supporting
// packages are composed around it rather than imported from it, so each
// concern stays independently testable and the core engine has zero
// import-time dependency on any specific persistence, metrics, or config
// backend:
//
//   - stats: percentile latency histograms and monotonic counters.
//   - persistence: pluggable Save/Load/Cleanup strategies (in-memory no-op,
//     file, database/sql).
//   - scaling: pluggable strategies producing Commands, applied by a
//     cooldown-guarded Scaler.
//   - alert: a process-wide pub/sub bus for structured alert events.
//   - monitor: periodic sampling that publishes alerts and drives scaling.
//   - poolconfig: validated, builder-style construction of the full
//     configuration surface, with an optional viper-backed loader.
//   - observability/prometheus: an optional adapter translating Stats,
//     Snapshots and Alert Events into Prometheus collectors.
//
// # Quick start
//
//	cfg, err := poolconfig.NewBuilder().
//		WithPoolName("orders").
//		WithCorePoolSize(4).
//		WithMaxPoolSize(16).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine := cfg.NewEngine()
//	engine.Start(context.Background())
//	defer engine.GracefulShutdown(context.Background())
//
//	engine.Submit(context.Background(), func(ctx context.Context) error {
//		return processOrder(ctx)
//	}, 5)
package enginepool
