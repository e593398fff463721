package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("test")

	c.RecordEvent("content_published", "ok")
	c.RecordEvent("content_published", "ok")
	c.RecordUpsert("node")
	c.RecordSimilarityLinks(3)
	c.RecordSimilarityLinks(0)
	c.RecordHTTP("GET", "/health", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.EventsProcessed.WithLabelValues("content_published", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Upserts.WithLabelValues("node")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.SimilarityLinks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/health", "200")))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordEvent("x", "ok")
		c.RecordUpsert("node")
		c.RecordSimilarityLinks(1)
		c.RecordEmbeddingMiss()
		c.RecordHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordUpsert("relationship")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_upserts_total{kind="relationship"} 1`)
}
