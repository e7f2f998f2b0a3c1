package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngestion("ok", 0.2)
	m.RecordIngestion("no_css", 0.1)
	m.RecordIngestion("ok", 0.3)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("no_css")))

	m.RecordCSSLookup("admin", false)
	m.RecordCSSLookup("admin", true)
	m.RecordCSSLookup("admin", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cssCache.WithLabelValues("admin", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cssCache.WithLabelValues("admin", "miss")))

	m.RecordRateLimited()
	m.RecordInvalidation()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations))

	m.RecordBackup("s3", nil)
	m.RecordBackup("s3", errors.New("denied"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("s3", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngestion("ok", 1)
		m.RecordCSSLookup("editor", true)
		m.RecordRateLimited()
		m.RecordInvalidation()
		m.RecordBackup("webdav", nil)
	})
}
