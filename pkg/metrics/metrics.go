package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records the pipeline counters.
type Metrics interface {
	IncMessagesPersisted(direction string)
	IncPersistFailures(operation string)
	IncEventsPublished(event string)
	IncRateLimited()
	IncMediaServed(source string)
	IncSessionsCreated()
	IncSessionsDeleted()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncMessagesPersisted(string) {}
func (Noop) IncPersistFailures(string)   {}
func (Noop) IncEventsPublished(string)   {}
func (Noop) IncRateLimited()             {}
func (Noop) IncMediaServed(string)       {}
func (Noop) IncSessionsCreated()         {}
func (Noop) IncSessionsDeleted()         {}

// Prom implements Metrics on a private registry.
type Prom struct {
	registry          *prometheus.Registry
	messagesPersisted *prometheus.CounterVec
	persistFailures   *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	rateLimited       prometheus.Counter
	mediaServed       *prometheus.CounterVec
	sessionsCreated   prometheus.Counter
	sessionsDeleted   prometheus.Counter
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		messagesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages upserted into the message store by direction",
		}, []string{"direction"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Durable store operations that failed",
		}, []string{"operation"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the event bus by name",
		}, []string{"event"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		mediaServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_served_total",
			Help:      "Media downloads by source (cache or engine)",
		}, []string{"source"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created or restored",
		}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deleted_total",
			Help:      "Sessions deleted",
		}),
	}
	p.registry.MustRegister(
		p.messagesPersisted, p.persistFailures, p.eventsPublished, p.rateLimited,
		p.mediaServed, p.sessionsCreated, p.sessionsDeleted,
		collectors.NewGoCollector(),
	)
	return p
}

// GaugeFunc registers a gauge computed on every scrape.
func (p *Prom) GaugeFunc(namespace, name, help string, fn func() float64) {
	p.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (p *Prom) Registry() *prometheus.Registry { return p.registry }

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prom) IncMessagesPersisted(direction string) {
	p.messagesPersisted.WithLabelValues(direction).Inc()
}

func (p *Prom) IncPersistFailures(operation string) {
	p.persistFailures.WithLabelValues(operation).Inc()
}

func (p *Prom) IncEventsPublished(event string) {
	p.eventsPublished.WithLabelValues(event).Inc()
}

func (p *Prom) IncRateLimited() { p.rateLimited.Inc() }

func (p *Prom) IncMediaServed(source string) {
	p.mediaServed.WithLabelValues(source).Inc()
}

func (p *Prom) IncSessionsCreated() { p.sessionsCreated.Inc() }
func (p *Prom) IncSessionsDeleted() { p.sessionsDeleted.Inc() }
