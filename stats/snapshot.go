package stats

import "time"

// PoolSnapshot is an immutable, point-in-time view combining a Stats
// snapshot with the pool's live worker/queue counters. It is the value
// Monitor samples on every tick and hands to the Scaler and Alert Bus.
type PoolSnapshot struct {
	TaskStats *Stats

	ActiveThreads  int
	PoolSize       int
	MaxPoolSize    int
	QueueSize      int
	QueueCapacity  int
	CompletedTasks int64

	TimestampMs int64
}

// ThreadUtilization returns ActiveThreads/PoolSize, or 0 if PoolSize is 0.
func (p PoolSnapshot) ThreadUtilization() float64 {
	if p.PoolSize == 0 {
		return 0
	}
	return float64(p.ActiveThreads) / float64(p.PoolSize)
}

// MaxThreadUtilization returns ActiveThreads/MaxPoolSize, or 0 if MaxPoolSize is 0.
func (p PoolSnapshot) MaxThreadUtilization() float64 {
	if p.MaxPoolSize == 0 {
		return 0
	}
	return float64(p.ActiveThreads) / float64(p.MaxPoolSize)
}

// QueueUtilization returns QueueSize/QueueCapacity, or 0 if QueueCapacity is 0.
func (p PoolSnapshot) QueueUtilization() float64 {
	if p.QueueCapacity == 0 {
		return 0
	}
	return float64(p.QueueSize) / float64(p.QueueCapacity)
}

// TaskSuccessRate returns completed/(completed+failed), or 1 if none have finished.
func (p PoolSnapshot) TaskSuccessRate() float64 {
	if p.TaskStats == nil {
		return 1
	}
	total := p.TaskStats.Completed() + p.TaskStats.Failed()
	if total == 0 {
		return 1
	}
	return float64(p.TaskStats.Completed()) / float64(total)
}

// TaskRejectionRate returns rejected/submitted, or 0 if nothing was submitted.
func (p PoolSnapshot) TaskRejectionRate() float64 {
	if p.TaskStats == nil {
		return 0
	}
	submitted := p.TaskStats.Submitted()
	if submitted == 0 {
		return 0
	}
	return float64(p.TaskStats.Rejected()) / float64(submitted)
}

// TaskThroughput returns completed tasks per second of pool uptime.
func (p PoolSnapshot) TaskThroughput() float64 {
	if p.TaskStats == nil {
		return 0
	}
	uptime := time.Since(p.TaskStats.StartTime()).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(p.TaskStats.Completed()) / uptime
}

// AverageWaitTime and AverageExecutionTime forward to the underlying Stats
// snapshot, returning 0 if none is present.
func (p PoolSnapshot) AverageWaitTime() time.Duration {
	if p.TaskStats == nil {
		return 0
	}
	return p.TaskStats.AverageWaitTime()
}

func (p PoolSnapshot) AverageExecutionTime() time.Duration {
	if p.TaskStats == nil {
		return 0
	}
	return p.TaskStats.AverageExecutionTime()
}

// JSON is the fixed key set for the snapshot's JSON serialization,
// matching the interface contract's Alert/Snapshot JSON shape.
type JSON struct {
	Timestamp             int64   `json:"timestamp"`
	ActiveThreads         int     `json:"activeThreads"`
	PoolSize              int     `json:"poolSize"`
	MaxPoolSize           int     `json:"maxPoolSize"`
	QueueSize             int     `json:"queueSize"`
	QueueCapacity         int     `json:"queueCapacity"`
	QueueUtilization      float64 `json:"queueUtilization"`
	ThreadUtilization     float64 `json:"threadUtilization"`
	MaxThreadUtilization  float64 `json:"maxThreadUtilization"`
	CompletedTasks        int64   `json:"completedTasks"`
	TaskSuccessRate       float64 `json:"taskSuccessRate"`
	TaskRejectionRate     float64 `json:"taskRejectionRate"`
	TaskThroughput        float64 `json:"taskThroughput"`
	AverageWaitTimeMs     int64   `json:"averageWaitTime"`
	AverageExecutionTime  int64   `json:"averageExecutionTime"`
	P50LatencyMs          int64   `json:"p50Latency"`
	P95LatencyMs          int64   `json:"p95Latency"`
	P99LatencyMs          int64   `json:"p99Latency"`
}

// ToJSON projects the snapshot into the fixed JSON shape used by log lines
// and alert sinks that stringify pool state.
func (p PoolSnapshot) ToJSON() JSON {
	var p50, p95, p99 int64
	if p.TaskStats != nil {
		p50 = p.TaskStats.LatencyPercentile(50)
		p95 = p.TaskStats.LatencyPercentile(95)
		p99 = p.TaskStats.LatencyPercentile(99)
	}
	return JSON{
		Timestamp:            p.TimestampMs,
		ActiveThreads:        p.ActiveThreads,
		PoolSize:             p.PoolSize,
		MaxPoolSize:          p.MaxPoolSize,
		QueueSize:            p.QueueSize,
		QueueCapacity:        p.QueueCapacity,
		QueueUtilization:     p.QueueUtilization(),
		ThreadUtilization:    p.ThreadUtilization(),
		MaxThreadUtilization: p.MaxThreadUtilization(),
		CompletedTasks:       p.CompletedTasks,
		TaskSuccessRate:      p.TaskSuccessRate(),
		TaskRejectionRate:    p.TaskRejectionRate(),
		TaskThroughput:       p.TaskThroughput(),
		AverageWaitTimeMs:    p.AverageWaitTime().Milliseconds(),
		AverageExecutionTime: p.AverageExecutionTime().Milliseconds(),
		P50LatencyMs:         p50,
		P95LatencyMs:         p95,
		P99LatencyMs:         p99,
	}
}
