// Package metrics is an in-process collector for the service's
// operational counters and latencies, exported as JSON at GET /stats.
//
// Conventions used by the rest of the codebase:
//
//	pipeline.runs_started / runs_completed / failed.<stage>  counters
//	pipeline.files_processed / files_truncated / files_omitted
//	llm.requests / retries / failures / fallback_parses      counters
//	llm.request_duration                                     timer
//	pipeline.run_duration_ms                                 histogram
package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// histogramCapacity bounds memory per histogram; older observations
// rotate out.
const histogramCapacity = 1000

// Collector owns a namespace of metrics. Metrics are created lazily
// on first use.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	timers     map[string]*Timer
	startTime  time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		timers:     make(map[string]*Timer),
		startTime:  time.Now(),
	}
}

// Counter is a monotonically increasing value.
type Counter struct {
	mu    sync.Mutex
	value int64
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(n int64) {
	c.mu.Lock()
	c.value += n
	c.mu.Unlock()
}

func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Gauge is a value that moves both ways.
type Gauge struct {
	mu    sync.Mutex
	value float64
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Histogram keeps a bounded window of observations.
type Histogram struct {
	mu     sync.Mutex
	values []float64
	cap    int
}

func newHistogram(capacity int) *Histogram {
	return &Histogram{values: make([]float64, 0, capacity), cap: capacity}
}

// Observe records v, rotating out the oldest value at capacity.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) >= h.cap {
		h.values = h.values[1:]
	}
	h.values = append(h.values, v)
}

// Stats summarizes the current window.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.values)
	if n == 0 {
		return HistogramStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return HistogramStats{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n*50/100],
		P90:   sorted[min(n*90/100, n-1)],
		P99:   sorted[min(n*99/100, n-1)],
	}
}

// HistogramStats is the exported summary of one histogram window.
type HistogramStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// Timer measures durations into a histogram of seconds.
type Timer struct {
	histogram *Histogram
}

// Start begins one measurement.
func (t *Timer) Start() *TimerContext {
	return &TimerContext{timer: t, start: time.Now()}
}

// TimerContext is one in-flight measurement.
type TimerContext struct {
	timer *Timer
	start time.Time
}

// Stop records the elapsed duration and returns it.
func (tc *TimerContext) Stop() time.Duration {
	d := time.Since(tc.start)
	tc.timer.histogram.Observe(d.Seconds())
	return d
}

// Counter returns the named counter, creating it on first use.
func (c *Collector) Counter(name string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.counters[name]; ok {
		return v
	}
	v := &Counter{}
	c.counters[name] = v
	return v
}

// Gauge returns the named gauge, creating it on first use.
func (c *Collector) Gauge(name string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.gauges[name]; ok {
		return v
	}
	v := &Gauge{}
	c.gauges[name] = v
	return v
}

// Histogram returns the named histogram, creating it on first use.
func (c *Collector) Histogram(name string) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.histograms[name]; ok {
		return v
	}
	v := newHistogram(histogramCapacity)
	c.histograms[name] = v
	return v
}

// Timer returns the named timer, creating it on first use.
func (c *Collector) Timer(name string) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.timers[name]; ok {
		return v
	}
	v := &Timer{histogram: newHistogram(histogramCapacity)}
	c.timers[name] = v
	return v
}

// Uptime is the time since the collector was created or reset.
func (c *Collector) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// Export serializes every metric as indented JSON.
func (c *Collector) Export() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := struct {
		Uptime     string                    `json:"uptime"`
		Counters   map[string]int64          `json:"counters"`
		Gauges     map[string]float64        `json:"gauges"`
		Histograms map[string]HistogramStats `json:"histograms"`
		Timers     map[string]HistogramStats `json:"timers"`
	}{
		Uptime:     time.Since(c.startTime).String(),
		Counters:   make(map[string]int64, len(c.counters)),
		Gauges:     make(map[string]float64, len(c.gauges)),
		Histograms: make(map[string]HistogramStats, len(c.histograms)),
		Timers:     make(map[string]HistogramStats, len(c.timers)),
	}

	for name, v := range c.counters {
		out.Counters[name] = v.Value()
	}
	for name, v := range c.gauges {
		out.Gauges[name] = v.Value()
	}
	for name, v := range c.histograms {
		out.Histograms[name] = v.Stats()
	}
	for name, v := range c.timers {
		out.Timers[name] = v.histogram.Stats()
	}

	return json.MarshalIndent(out, "", "  ")
}

// Reset drops every metric. Used by tests.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]*Counter)
	c.gauges = make(map[string]*Gauge)
	c.histograms = make(map[string]*Histogram)
	c.timers = make(map[string]*Timer)
	c.startTime = time.Now()
}
