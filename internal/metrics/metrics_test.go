package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(PIIDetections.WithLabelValues("ssn"))
	RecordScan("high", []string{"ssn", "email"})
	assert.Equal(t, before+1, testutil.ToFloat64(PIIDetections.WithLabelValues("ssn")))

	before = testutil.ToFloat64(GateVerdicts.WithLabelValues("multi_call", "true"))
	RecordGate("multi_call", true)
	assert.Equal(t, before+1, testutil.ToFloat64(GateVerdicts.WithLabelValues("multi_call", "true")))

	before = testutil.ToFloat64(RouteDecisions.WithLabelValues("cloud", "hybrid (cloud)"))
	RecordRoute("cloud", "hybrid (cloud)", 0.59, true)
	assert.Equal(t, before+1, testutil.ToFloat64(RouteDecisions.WithLabelValues("cloud", "hybrid (cloud)")))

	before = testutil.ToFloat64(RequestCount.WithLabelValues("POST", "/api/route", "200"))
	ObserveRequest("POST", "/api/route", 200, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestCount.WithLabelValues("POST", "/api/route", "200")))
}
