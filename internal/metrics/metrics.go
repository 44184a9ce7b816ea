package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Processing metrics
	LastScannedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_last_scanned_block",
			Help: "Last block the processor has scanned for events",
		},
		[]string{"chain"},
	)

	ChainHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_chain_height",
			Help: "Current chain height as reported by the indexer",
		},
		[]string{"chain"},
	)

	IndexerHead = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_indexer_head",
			Help: "Last read of the indexer head block",
		},
		[]string{"chain"},
	)

	ProcessedEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_processed_events_cnt",
			Help: "Total number of processed events",
		},
		[]string{"chain", "name"},
	)

	EventQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_event_queue_size",
			Help: "Number of blocks with events buffered ahead of the processor",
		},
		[]string{"chain"},
	)

	BlocksBehind = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_blocks_behind",
			Help: "Blocks between the indexer head and the last scanned block",
		},
		[]string{"chain"},
	)

	RangeFrom = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_range_from",
			Help: "First block of the configured range",
		},
		[]string{"chain"},
	)

	RangeTo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_range_to",
			Help: "Last block of the configured range, +Inf when unbounded",
		},
		[]string{"chain"},
	)

	BlockExecutionTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydra_processor_block_execution_duration_seconds",
			Help:    "Time taken to execute the mappings of a block",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hydra_processor_system_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_processor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component", "chain"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hydra_processor_system_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydra_processor_system_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func BlockExecutionTimeLog(chain string, duration time.Duration) {
	BlockExecutionTime.WithLabelValues(chain).Observe(duration.Seconds())
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component, chain string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component, chain).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
