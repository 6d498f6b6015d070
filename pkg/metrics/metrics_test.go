package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Cluster:       "mainnet-beta",
				ProgramID:     "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
				Environment:   "production",
				Region:        "us-east-1",
				CloudProvider: "aws",
			},
			expected: prometheus.Labels{
				"cluster":        "mainnet-beta",
				"program_id":     "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
				"environment":    "production",
				"region":         "us-east-1",
				"cloud_provider": "aws",
			},
		},
		{
			name: "partial labels",
			labels: Labels{
				Cluster:     "devnet",
				Environment: "staging",
			},
			expected: prometheus.Labels{
				"cluster":     "devnet",
				"environment": "staging",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.labels.toPrometheusLabels()
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordEvent("CompetitorSettledRecord")

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Cluster: "devnet", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.UpdateWatermark(100, 0)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "indexer_ingest_watermark_slot" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())
		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "devnet", labelMap["cluster"])
		require.Equal(t, "test", labelMap["environment"])
	}
	require.True(t, found, "watermark metric not found")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	// All methods should handle nil receiver gracefully (no panic)
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncError("test")
		m.RecordBatch("push", false, 0.1)
		m.RecordEvent("k")
		m.RecordDecodeSkipped("k")
		m.RecordListEviction("k")
		m.RecordCacheEviction()
		m.SetCachedTransactions(1)
		m.SetPendingAwaits(1)
		m.UpdateWatermark(1, 1)
		m.RecordBackfillPage(nil, 1)
		m.IncRPCInFlight()
		m.DecRPCInFlight()
		m.RecordRPCCall("getTransaction", nil, 0.5)
		m.RecordSourceReconnect("push")
		m.SetSourceConnected("push", true)
		m.RecordSourceError()
		m.RecordPoll(nil)
		m.RecordCheckpointWrite(nil, 0.1)
		m.RecordForward("kafka", nil, 0.1)
		m.RecordKafkaError(true)
	})
}

func TestMetrics_RecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordBatch("push", false, 0.01)
	m.RecordBatch("push", true, 0)
	m.RecordBatch("poll", false, 0.02)
	m.RecordBatch("push", true, 0)

	require.Equal(t, float64(1), testutil.ToFloat64(m.batches.WithLabelValues("push", OutcomeProcessed)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.batches.WithLabelValues("push", OutcomeDuplicate)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.batches.WithLabelValues("poll", OutcomeProcessed)))
	require.Equal(t, 1, testutil.CollectAndCount(m.batchDuration))
}

func TestMetrics_EventCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordEvent("CompetitorSettledRecord")
	m.RecordEvent("CompetitorSettledRecord")
	m.RecordDecodeSkipped("CompetitionRoundWinnerRecord")
	m.RecordListEviction("CompetitorSettledRecord")
	m.RecordCacheEviction()

	require.Equal(t, float64(2), testutil.ToFloat64(m.events.WithLabelValues("CompetitorSettledRecord")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.decodeSkipped.WithLabelValues("CompetitionRoundWinnerRecord")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.listEvictions.WithLabelValues("CompetitorSettledRecord")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.cacheEvictions))
}

func TestMetrics_UpdateWatermark(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.UpdateWatermark(500, 1700000000)
	require.Equal(t, float64(500), testutil.ToFloat64(m.watermarkSlot))
	require.Equal(t, float64(1700000000), testutil.ToFloat64(m.watermarkTime))

	// Push notifications carry no block time.
	m.UpdateWatermark(600, 0)
	require.Equal(t, float64(600), testutil.ToFloat64(m.watermarkSlot))
	require.Equal(t, float64(1700000000), testutil.ToFloat64(m.watermarkTime))
}

func TestMetrics_RecordBackfillPage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordBackfillPage(nil, 25)
	m.RecordBackfillPage(nil, 3)
	m.RecordBackfillPage(errors.New("boom"), 0)

	require.Equal(t, float64(2), testutil.ToFloat64(m.backfillPages.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.backfillPages.WithLabelValues(StatusError)))
	require.Equal(t, float64(28), testutil.ToFloat64(m.backfillBatches))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypePaging)))
}

func TestMetrics_RPC(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncRPCInFlight()
	m.IncRPCInFlight()
	require.Equal(t, float64(2), testutil.ToFloat64(m.rpcInFlight))
	m.DecRPCInFlight()
	require.Equal(t, float64(1), testutil.ToFloat64(m.rpcInFlight))

	m.RecordRPCCall("getSignaturesForAddress", nil, 0.05)
	m.RecordRPCCall("getSignaturesForAddress", errors.New("connection refused"), 1.0)
	m.RecordRPCCall("getTransaction", nil, 0.1)

	require.Equal(t, float64(1), testutil.ToFloat64(m.rpcCalls.WithLabelValues("getSignaturesForAddress", StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.rpcCalls.WithLabelValues("getSignaturesForAddress", StatusError)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.rpcCalls.WithLabelValues("getTransaction", StatusSuccess)))
}

func TestMetrics_Source(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.SetSourceConnected("push", true)
	require.Equal(t, float64(1), testutil.ToFloat64(m.sourceConnected.WithLabelValues("push")))
	m.SetSourceConnected("push", false)
	require.Equal(t, float64(0), testutil.ToFloat64(m.sourceConnected.WithLabelValues("push")))

	m.RecordSourceReconnect("push")
	m.RecordSourceError()
	m.RecordPoll(nil)
	m.RecordPoll(errors.New("timeout"))

	require.Equal(t, float64(1), testutil.ToFloat64(m.sourceReconnects.WithLabelValues("push")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeSource)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.polls.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.polls.WithLabelValues(StatusError)))
}

func TestMetrics_CheckpointAndForward(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordCheckpointWrite(nil, 0.01)
	m.RecordCheckpointWrite(errors.New("clickhouse down"), 0.5)
	m.RecordForward("kafka", nil, 0.001)
	m.RecordForward("postgres", errors.New("conn reset"), 0.2)
	m.RecordKafkaError(true)
	m.RecordKafkaError(false)
	m.RecordKafkaError(false)

	require.Equal(t, float64(1), testutil.ToFloat64(m.checkpointWrites.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.checkpointWrites.WithLabelValues(StatusError)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeCheckpoint)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.forwarded.WithLabelValues("kafka", StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.forwarded.WithLabelValues("postgres", StatusError)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(ErrTypeForward)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.kafkaErrors.WithLabelValues("fatal")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.kafkaErrors.WithLabelValues("non_fatal")))
}

func TestNamespace(t *testing.T) {
	require.Equal(t, "indexer", Namespace)
}
