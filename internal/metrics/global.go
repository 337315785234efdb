package metrics

import "sync"

var (
	global     *Collector
	globalOnce sync.Once
)

// Global returns the process-wide collector.
func Global() *Collector {
	globalOnce.Do(func() {
		global = NewCollector()
	})
	return global
}

// IncCounter increments a counter on the global collector.
func IncCounter(name string) {
	Global().Counter(name).Inc()
}

// AddCounter adds n to a counter on the global collector.
func AddCounter(name string, n int64) {
	Global().Counter(name).Add(n)
}

// SetGauge sets a gauge on the global collector.
func SetGauge(name string, v float64) {
	Global().Gauge(name).Set(v)
}

// ObserveHistogram records a value on the global collector.
func ObserveHistogram(name string, v float64) {
	Global().Histogram(name).Observe(v)
}

// StartTimer starts a timer measurement on the global collector.
func StartTimer(name string) *TimerContext {
	return Global().Timer(name).Start()
}
