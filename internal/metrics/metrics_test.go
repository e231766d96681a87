package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordResolution(t *testing.T) {
	before := testutil.ToFloat64(Resolutions.WithLabelValues("ok"))
	RecordResolution("ok")
	RecordResolution("ok")
	assert.Equal(t, before+2, testutil.ToFloat64(Resolutions.WithLabelValues("ok")))
}

func TestRecordInstantiation(t *testing.T) {
	before := testutil.ToFloat64(NodesInstantiated.WithLabelValues("simulate"))
	RecordInstantiation("simulate", 3, 5*time.Millisecond)
	assert.Equal(t, before+3, testutil.ToFloat64(NodesInstantiated.WithLabelValues("simulate")))
}

func TestRecordCollection(t *testing.T) {
	before := testutil.ToFloat64(CollectionsBuilt.WithLabelValues("metrics-test"))
	RecordCollection("metrics-test", 12)
	assert.Equal(t, before+1, testutil.ToFloat64(CollectionsBuilt.WithLabelValues("metrics-test")))
	assert.Equal(t, 12.0, testutil.ToFloat64(CollectionSize.WithLabelValues("metrics-test")))
}
