package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFrame(t *testing.T) {
	Register()
	Register() // second call is a no-op

	before := testutil.ToFloat64(frameCounter.WithLabelValues(OutcomeDropped))
	RecordFrame(OutcomeDropped)
	RecordFrame(OutcomeDropped)
	assert.Equal(t, before+2, testutil.ToFloat64(frameCounter.WithLabelValues(OutcomeDropped)))
}

func TestRecordGateBusy(t *testing.T) {
	RecordGateBusy(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(gateBusy))
	RecordGateBusy(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(gateBusy))
}

func TestRecordDecodeLatency(t *testing.T) {
	Register()
	RecordDecodeLatency("zxing", 20*time.Millisecond)

	n, err := testutil.GatherAndCount(Registry, "scanner_decode_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
