package poolconfig

import (
	"github.com/spf13/viper"

	"github.com/gopherpool/enginepool/alert"
)

// LoadFromViper sources the same fields a Builder would set from a
// pre-populated viper.Viper (YAML, env, flags), grounded on the pack's
// config-layering convention (gcsfuse, vaino). Unset keys fall back to
// DefaultConfig's values. The result still passes through the same
// validation as the Builder.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	b := NewBuilder()

	if v.IsSet("poolName") {
		b.WithPoolName(v.GetString("poolName"))
	}
	if v.IsSet("corePoolSize") {
		b.WithCorePoolSize(v.GetInt("corePoolSize"))
	}
	if v.IsSet("maxPoolSize") {
		b.WithMaxPoolSize(v.GetInt("maxPoolSize"))
	}
	if v.IsSet("keepAliveTime") {
		b.WithKeepAliveTime(v.GetDuration("keepAliveTime"))
	}
	if v.IsSet("queueCapacity") {
		b.WithQueueCapacity(v.GetInt("queueCapacity"))
	}
	if v.IsSet("monitoringPeriod") {
		b.WithMonitoringPeriod(v.GetDuration("monitoringPeriod"))
	}
	if v.IsSet("samplingInterval") {
		b.WithSamplingInterval(v.GetDuration("samplingInterval"))
	}
	if v.IsSet("enableDetailedMetrics") {
		b.WithDetailedMetrics(v.GetBool("enableDetailedMetrics"))
	}
	if v.IsSet("latencyPercentiles") {
		b.WithLatencyPercentiles(v.GetIntSlice("latencyPercentiles"))
	}
	if v.IsSet("queueSizeWarningThreshold") {
		b.WithQueueSizeWarningThreshold(v.GetInt("queueSizeWarningThreshold"))
	}
	if v.IsSet("taskTimeout") {
		b.WithTaskTimeout(v.GetDuration("taskTimeout"))
	}
	if v.IsSet("threadPoolUsageThreshold") {
		b.WithThreadPoolUsageThreshold(v.GetInt("threadPoolUsageThreshold"))
	}
	if v.IsSet("minimumAlertLevel") {
		b.WithMinimumAlertLevel(parseAlertLevel(v.GetString("minimumAlertLevel")))
	}
	if v.IsSet("scalingCheckPeriod") {
		b.WithScalingCheckPeriod(v.GetDuration("scalingCheckPeriod"))
	}
	if v.IsSet("minThreads") || v.IsSet("maxThreads") {
		minThreads, maxThreads := b.cfg.MinThreads, b.cfg.MaxThreads
		if v.IsSet("minThreads") {
			minThreads = v.GetInt("minThreads")
		}
		if v.IsSet("maxThreads") {
			maxThreads = v.GetInt("maxThreads")
		}
		b.WithThreadBounds(minThreads, maxThreads)
	}

	return b.Build()
}

func parseAlertLevel(s string) alert.Level {
	switch s {
	case "INFO":
		return alert.LevelInfo
	case "WARNING":
		return alert.LevelWarning
	case "ERROR":
		return alert.LevelError
	case "CRITICAL":
		return alert.LevelCritical
	default:
		return alert.LevelWarning
	}
}
