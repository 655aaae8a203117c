// Package metrics exposes history manager activity as Prometheus
// instruments.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/timetravel/internal/history"
)

const namespace = "timetravel"

// Metrics groups the instruments for a single manager. It implements
// history.Observer. The Length and Cursor gauges hold the last value
// observed, so several managers sharing one registry need one Metrics
// each, told apart with WithManager.
type Metrics struct {
	Events  *prometheus.CounterVec
	Dropped *prometheus.CounterVec
	Length  prometheus.Gauge
	Cursor  prometheus.Gauge
}

// Option configures New.
type Option func(*options)

type options struct {
	labels prometheus.Labels
}

// WithManager adds a constant manager="name" label to every series, so
// the instruments of several managers can be registered with the same
// registry. Either every Metrics on a registry uses it or none does.
func WithManager(name string) Option {
	return func(o *options) {
		o.labels = prometheus.Labels{"manager": name}
	}
}

// New registers the instruments with reg. Registering twice with the
// same labels panics.
func New(reg prometheus.Registerer, opts ...Option) *Metrics {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	factory := promauto.With(reg)
	m := &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "history",
			Name:        "events_total",
			Help:        "History manager events by kind.",
			ConstLabels: o.labels,
		}, []string{"kind"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "history",
			Name:        "dropped_entries_total",
			Help:        "Entries removed from history by reason (truncate, evict, clear).",
			ConstLabels: o.labels,
		}, []string{"reason"}),
		Length: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "history",
			Name:        "length",
			Help:        "Number of entries in the history.",
			ConstLabels: o.labels,
		}),
		Cursor: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "history",
			Name:        "cursor",
			Help:        "Index of the current history entry, -1 when empty.",
			ConstLabels: o.labels,
		}),
	}
	// Expose every kind at zero so dashboards see the full series set.
	for _, kind := range history.EventKinds {
		m.Events.WithLabelValues(string(kind))
	}
	m.Cursor.Set(-1)
	return m
}

// Observe implements history.Observer.
func (m *Metrics) Observe(ev history.Event) {
	m.Events.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Dropped > 0 {
		m.Dropped.WithLabelValues(string(ev.Kind)).Add(float64(ev.Dropped))
	}
	m.Length.Set(float64(ev.Length))
	m.Cursor.Set(float64(ev.Cursor))
}

var _ history.Observer = (*Metrics)(nil)

// Summary renders the timetravel_* series from g as sorted
// "name{labels} value" lines. Counters at zero are omitted.
func Summary(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, namespace+"_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
				if value == 0 {
					continue
				}
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}

			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			series := name
			if len(labels) > 0 {
				series += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", series, value))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
