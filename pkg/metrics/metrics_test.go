package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = Noop{}
	m.IncMessagesPersisted("inbound")
	m.IncPersistFailures("upsert")
	m.IncEventsPublished("message")
	m.IncRateLimited()
	m.IncMediaServed("cache")
	m.IncSessionsCreated()
	m.IncSessionsDeleted()
}

func TestPromCounters(t *testing.T) {
	p := NewProm("relay")
	p.IncMessagesPersisted("inbound")
	p.IncMessagesPersisted("inbound")
	p.IncMessagesPersisted("outbound")
	p.IncRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(p.messagesPersisted.WithLabelValues("inbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.messagesPersisted.WithLabelValues("outbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rateLimited))
}

func TestPromHandlerExposesGaugeFunc(t *testing.T) {
	p := NewProm("relay")
	p.GaugeFunc("relay", "sessions", "Live sessions", func() float64 { return 3 })
	p.IncEventsPublished("qr")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "relay_sessions 3"))
	assert.True(t, strings.Contains(text, `relay_events_published_total{event="qr"} 1`))
}
