package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentsRecord(t *testing.T) {
	m := New()

	m.NumbersIssued("sale_order", 1)
	m.NumbersIssued("sale_order", 10)
	m.DocumentSynced("stock_picking")
	m.DocumentFailed("stock_picking")
	m.DocumentFailed("stock_picking")
	m.PermanentFailure("stock_picking")
	m.QueueLength(3)
	m.PassCompleted("pending", 150*time.Millisecond)
	m.SetOnline(true)

	assert.Equal(t, float64(11), testutil.ToFloat64(m.numbersIssued.WithLabelValues("sale_order")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.documentsSynced.WithLabelValues("stock_picking")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.documentsFailed.WithLabelValues("stock_picking")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.permanentFailures.WithLabelValues("stock_picking")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.retryQueueSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.online))
}

func TestStorageBackendIsExclusive(t *testing.T) {
	m := New()
	m.SetStorageBackend("sqlite")
	m.SetStorageBackend("badger")

	assert.Equal(t, 1, testutil.CollectAndCount(m.storageBackend))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.storageBackend.WithLabelValues("badger")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/orders", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `raccolta_http_requests_total{method="GET",path="/api/v1/orders",status="200"} 1`)
}
