package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Disk source metrics
	blocksScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockstreamor_blocks_scanned_total",
			Help: "Total number of blocks located in the on-disk block files",
		},
	)

	corruptBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockstreamor_corrupt_blocks_total",
			Help: "Total number of corrupt on-disk blocks skipped",
		},
	)

	duplicateBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockstreamor_duplicate_blocks_total",
			Help: "Total number of duplicate on-disk blocks skipped",
		},
	)

	// Stream metrics
	blocksDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockstreamor_blocks_delivered_total",
			Help: "Total number of canonical blocks delivered to the consumer",
		},
		[]string{"source"},
	)

	deliveredHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blockstreamor_delivered_height",
			Help: "Height of the last canonical block delivered",
		},
		[]string{"source"},
	)

	reorgsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockstreamor_reorgs_detected_total",
			Help: "Total number of chain reorganizations detected by the fetcher",
		},
	)

	workerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockstreamor_worker_restarts_total",
			Help: "Total number of fetcher worker pool restarts",
		},
	)

	// RPC metrics
	rpcMethods = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockstreamor_rpc_requests_total",
			Help: "Total number of RPC requests by method",
		},
		[]string{"method"},
	)

	rpcMethodTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockstreamor_rpc_request_duration_seconds",
			Help:    "Duration of RPC requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	rpcErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockstreamor_rpc_errors_total",
			Help: "Total number of failed RPC requests by method",
		},
		[]string{"method"},
	)

	rpcRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockstreamor_rpc_retries_total",
			Help: "Total number of RPC request retries by method",
		},
		[]string{"method"},
	)

	// System metrics
	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockstreamor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	componentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blockstreamor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockstreamor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	memoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blockstreamor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func BlocksScannedAdd(count int) {
	blocksScanned.Add(float64(count))
}

func CorruptBlockInc() {
	corruptBlocks.Inc()
}

func DuplicateBlockInc() {
	duplicateBlocks.Inc()
}

func BlockDelivered(source string, height uint32) {
	blocksDelivered.WithLabelValues(source).Inc()
	deliveredHeight.WithLabelValues(source).Set(float64(height))
}

func ReorgDetectedInc() {
	reorgsDetected.Inc()
}

func WorkerRestartInc() {
	workerRestarts.Inc()
}

func RPCMethodInc(method string) {
	rpcMethods.WithLabelValues(method).Inc()
}

func RPCMethodDuration(method string, duration time.Duration) {
	rpcMethodTime.WithLabelValues(method).Observe(duration.Seconds())
}

func RPCMethodError(method string) {
	rpcErrors.WithLabelValues(method).Inc()
}

func RPCRetryInc(method string) {
	rpcRetries.WithLabelValues(method).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	componentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	uptime.Set(time.Since(startTime).Seconds())
	goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	memoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	memoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	memoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
