package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "indexer"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Batch outcome label values
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"

	Ingest     = "ingest"
	RPC        = "rpc"
	Source     = "source"
	Checkpoint = "checkpoint"
	Forwarder  = "forwarder"
)

// Error type constants for non-RPC errors (RPC errors are tracked via rpcCalls{status="error"}).
const (
	ErrTypeSource     = "source"
	ErrTypePaging     = "paging"
	ErrTypeCheckpoint = "checkpoint"
	ErrTypeForward    = "forward"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple indexer instances.
type Labels struct {
	Cluster       string // Ledger cluster (e.g., "mainnet-beta", "devnet")
	ProgramID     string // Program whose events are indexed
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Cluster != "" {
		labels["cluster"] = l.Cluster
	}
	if l.ProgramID != "" {
		labels["program_id"] = l.ProgramID
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Ingestion
	batches         *prometheus.CounterVec // by source, outcome
	events          *prometheus.CounterVec // by kind
	decodeSkipped   *prometheus.CounterVec // by kind
	listEvictions   *prometheus.CounterVec // by kind
	cacheEvictions  prometheus.Counter
	cachedTxs       prometheus.Gauge
	pendingAwaits   prometheus.Gauge
	watermarkSlot   prometheus.Gauge
	watermarkTime   prometheus.Gauge
	batchDuration   prometheus.Histogram
	backfillBatches prometheus.Counter
	backfillPages   *prometheus.CounterVec // by status
	errors          *prometheus.CounterVec

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge

	// Log source metrics
	sourceReconnects *prometheus.CounterVec // by source
	sourceConnected  *prometheus.GaugeVec   // by source
	polls            *prometheus.CounterVec // by status

	// Checkpoint metrics
	checkpointWrites   *prometheus.CounterVec // by status
	checkpointDuration prometheus.Histogram

	// Forwarding metrics
	forwarded       *prometheus.CounterVec // by sink, status
	forwardDuration *prometheus.HistogramVec
	kafkaErrors     *prometheus.CounterVec // by severity (fatal/non_fatal)
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., cluster), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	latencyBuckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "batches_total",
			Help:      "Total transaction batches handled by source and outcome",
		}, []string{"source", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "events_total",
			Help:      "Total decoded events emitted by kind",
		}, []string{"kind"}),
		decodeSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "decode_skipped_total",
			Help:      "Total log lines skipped because the event body could not be decoded",
		}, []string{"kind"}),
		listEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "list_evictions_total",
			Help:      "Total events evicted from per-kind ordered lists",
		}, []string{"kind"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "cache_evictions_total",
			Help:      "Total transactions evicted from the dedup cache",
		}),
		cachedTxs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "cached_transactions",
			Help:      "Number of transactions currently held in the dedup cache",
		}),
		pendingAwaits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "pending_awaits",
			Help:      "Number of transactions with registered waiters",
		}),
		watermarkSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "watermark_slot",
			Help:      "Highest slot processed by the live subscription",
		}),
		watermarkTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "watermark_block_time_seconds",
			Help:      "Highest block time processed by the live subscription",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "batch_duration_seconds",
			Help:      "Time to decode, insert and notify a single transaction batch",
			Buckets:   latencyBuckets,
		}),
		backfillBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "backfill_batches_total",
			Help:      "Total transaction batches fed through backfill",
		}),
		backfillPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Ingest,
			Name:      "backfill_pages_total",
			Help:      "Total backfill pages fetched by status",
		}, []string{"status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		sourceReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "reconnects_total",
			Help:      "Total reconnect attempts of a log source",
		}, []string{"source"}),
		sourceConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "connected",
			Help:      "Whether a log source currently has a live feed (1) or not (0)",
		}, []string{"source"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "polls_total",
			Help:      "Total poll cycles by status",
		}, []string{"status"}),
		checkpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Checkpoint,
			Name:      "writes_total",
			Help:      "Total watermark checkpoint writes by status",
		}, []string{"status"}),
		checkpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Checkpoint,
			Name:      "write_duration_seconds",
			Help:      "Time taken to persist a watermark checkpoint",
			Buckets:   latencyBuckets,
		}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Forwarder,
			Name:      "events_total",
			Help:      "Total events forwarded to a sink by status",
		}, []string{"sink", "status"}),
		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Forwarder,
			Name:      "duration_seconds",
			Help:      "Time taken to hand an event to a sink",
			Buckets:   latencyBuckets,
		}, []string{"sink"}),
		kafkaErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Forwarder,
			Name:      "kafka_errors_total",
			Help:      "Total number of Kafka errors received by severity (fatal/non_fatal)",
		}, []string{"severity"}),
	}

	err := errors.Join(
		reg.Register(m.batches),
		reg.Register(m.events),
		reg.Register(m.decodeSkipped),
		reg.Register(m.listEvictions),
		reg.Register(m.cacheEvictions),
		reg.Register(m.cachedTxs),
		reg.Register(m.pendingAwaits),
		reg.Register(m.watermarkSlot),
		reg.Register(m.watermarkTime),
		reg.Register(m.batchDuration),
		reg.Register(m.backfillBatches),
		reg.Register(m.backfillPages),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.sourceReconnects),
		reg.Register(m.sourceConnected),
		reg.Register(m.polls),
		reg.Register(m.checkpointWrites),
		reg.Register(m.checkpointDuration),
		reg.Register(m.forwarded),
		reg.Register(m.forwardDuration),
		reg.Register(m.kafkaErrors),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordBatch records a handled transaction batch. Duplicates are counted but
// not timed.
func (m *Metrics) RecordBatch(source string, duplicate bool, durationSeconds float64) {
	if m == nil {
		return
	}
	if duplicate {
		m.batches.WithLabelValues(source, OutcomeDuplicate).Inc()
		return
	}
	m.batches.WithLabelValues(source, OutcomeProcessed).Inc()
	m.batchDuration.Observe(durationSeconds)
}

// RecordEvent records one emitted event.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// RecordDecodeSkipped records a log line that carried a known event but failed to decode.
func (m *Metrics) RecordDecodeSkipped(kind string) {
	if m == nil {
		return
	}
	m.decodeSkipped.WithLabelValues(kind).Inc()
}

// RecordListEviction records an event dropped from a full per-kind list.
func (m *Metrics) RecordListEviction(kind string) {
	if m == nil {
		return
	}
	m.listEvictions.WithLabelValues(kind).Inc()
}

// RecordCacheEviction records a transaction dropped from the dedup cache.
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// SetCachedTransactions updates the dedup cache size gauge.
func (m *Metrics) SetCachedTransactions(n int) {
	if m == nil {
		return
	}
	m.cachedTxs.Set(float64(n))
}

// SetPendingAwaits updates the pending await gauge.
func (m *Metrics) SetPendingAwaits(n int) {
	if m == nil {
		return
	}
	m.pendingAwaits.Set(float64(n))
}

// UpdateWatermark updates the watermark gauges. A zero block time leaves the
// block time gauge untouched.
func (m *Metrics) UpdateWatermark(slot uint64, blockTime int64) {
	if m == nil {
		return
	}
	m.watermarkSlot.Set(float64(slot))
	if blockTime != 0 {
		m.watermarkTime.Set(float64(blockTime))
	}
}

// RecordBackfillPage records a fetched backfill page and how many batches it fed.
func (m *Metrics) RecordBackfillPage(err error, batches int) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(ErrTypePaging).Inc()
	}
	m.backfillPages.WithLabelValues(status).Inc()
	m.backfillBatches.Add(float64(batches))
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordSourceReconnect records a reconnect attempt by a log source.
func (m *Metrics) RecordSourceReconnect(source string) {
	if m == nil {
		return
	}
	m.sourceReconnects.WithLabelValues(source).Inc()
}

// SetSourceConnected flips the connected gauge for a log source.
func (m *Metrics) SetSourceConnected(source string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.sourceConnected.WithLabelValues(source).Set(v)
}

// RecordSourceError records a connectivity failure reported by a log source.
func (m *Metrics) RecordSourceError() {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(ErrTypeSource).Inc()
}

// RecordPoll records a poll cycle outcome.
func (m *Metrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.polls.WithLabelValues(status).Inc()
}

// RecordCheckpointWrite records a watermark checkpoint write with duration.
func (m *Metrics) RecordCheckpointWrite(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(ErrTypeCheckpoint).Inc()
	}
	m.checkpointWrites.WithLabelValues(status).Inc()
	m.checkpointDuration.Observe(durationSeconds)
}

// RecordForward records an event handed to a sink.
// Pass nil error for successful forwards, non-nil for failures.
func (m *Metrics) RecordForward(sink string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.errors.WithLabelValues(ErrTypeForward).Inc()
	}
	m.forwarded.WithLabelValues(sink, status).Inc()
	m.forwardDuration.WithLabelValues(sink).Observe(durationSeconds)
}

// RecordKafkaError records a Kafka error by severity.
// fatal=true for fatal errors, false for non-fatal.
func (m *Metrics) RecordKafkaError(fatal bool) {
	if m == nil {
		return
	}
	severity := "non_fatal"
	if fatal {
		severity = "fatal"
	}
	m.kafkaErrors.WithLabelValues(severity).Inc()
}
