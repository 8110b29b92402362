package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAdmission(t *testing.T) {
	r := NewRecorder()

	r.ObserveAdmission("id", "GRANTED", 2*time.Millisecond)
	r.ObserveAdmission("id", "DENIED", time.Millisecond)
	r.ObserveAdmission("id", "DENIED", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.admissions.WithLabelValues("id", "GRANTED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.admissions.WithLabelValues("id", "DENIED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.admissions.WithLabelValues("token", "GRANTED")))
}

func TestObserveReset(t *testing.T) {
	r := NewRecorder()

	r.ObserveReset(7)
	r.ObserveReset(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.resets))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.resetRows))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveAdmission("token", "NOT_FOUND", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gate_admissions_total{outcome="NOT_FOUND",path="token"} 1`)
}
