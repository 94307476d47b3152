package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(Deliveries.WithLabelValues("email", "sent"))
	Deliveries.WithLabelValues("email", "sent").Inc()
	after := testutil.ToFloat64(Deliveries.WithLabelValues("email", "sent"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesMetrics(t *testing.T) {
	SweepRuns.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "escalator_sweep_runs_total"), "expected sweep counter in exposition")
}
