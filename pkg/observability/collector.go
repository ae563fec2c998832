package observability

import (
	"context"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sessiondb"

// Source is the part of a store the collector reads.
type Source interface {
	Length(ctx context.Context) (int, error)
	Subscribe(l domain.EventListener)
}

// Collector implements prometheus.Collector for a session store.
type Collector struct {
	source  Source
	timeout time.Duration

	sessions *prometheus.Desc
	up       *prometheus.Desc
	events   *prometheus.CounterVec
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector subscribes to source's events. Length is queried on every
// scrape, bounded by timeout (default 5s).
func NewCollector(source Source, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Collector{
		source:  source,
		timeout: timeout,
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "live_sessions"),
			"Number of stored sessions that have not expired.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"Whether the last session count succeeded.",
			nil, nil,
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Store events by type.",
			},
			[]string{"type"},
		),
	}

	source.Subscribe(c.Observe)
	return c
}

// Observe counts a store event. It is registered with the source by NewCollector.
func (c *Collector) Observe(ev domain.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.up
	c.events.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.source.Length(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
	} else {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
		ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(n))
	}
	c.events.Collect(ch)
}
