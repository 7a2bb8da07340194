package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	TranscriptionsTotal.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "voxform_transcriptions_total")
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(RecordOperationsTotal.WithLabelValues("create", "success"))
	RecordOperationsTotal.WithLabelValues("create", "success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RecordOperationsTotal.WithLabelValues("create", "success")))
}

func TestEndSpanWithNoopProvider(t *testing.T) {
	_, span := StartSpan(context.Background(), "test")
	assert.NotPanics(t, func() { EndSpan(span, errors.New("failed")) })
}
