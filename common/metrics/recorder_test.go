package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.RecordScheduled(3)
	r.RecordScheduled(2)
	r.RecordCommit("Sequence", ResultOK, 5, 40*time.Millisecond)
	r.RecordCommit("Sequence", ResultDuplicate, 5, time.Millisecond)
	r.RecordAnchorLookup(AnchorFound)
	r.RecordGroups(4)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.ordersScheduled))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commitBatches.WithLabelValues("Sequence", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commitBatches.WithLabelValues("Sequence", ResultDuplicate)))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.commitRows.WithLabelValues("Sequence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.anchorLookups.WithLabelValues(AnchorFound)))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sequencer_material_groups")
	assert.Contains(t, names, "sequencer_commit_duration_seconds")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordScheduled(1)
		r.RecordCommit("Sequence", ResultOK, 1, time.Second)
		r.RecordAnchorLookup(AnchorNone)
		r.RecordGroups(1)
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_ScheduledIsSingleSeries(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 100; i++ {
		r.RecordScheduled(1)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(r.ordersScheduled, "sequencer_orders_scheduled_total"))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.ordersScheduled))
}
