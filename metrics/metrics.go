// ABOUTME: Prometheus listener exporting measurement counters and durations
// ABOUTME: Safe to share across concurrent measurements

// Package metrics exports measurement activity to Prometheus
package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prateek/heapmeter/meter"
	"github.com/prateek/heapmeter/object"
)

// Opts configures the exported metric names
type Opts struct {
	// Namespace prefixes every metric; "heapmeter" when empty
	Namespace string
	// ConstLabels are attached to every metric
	ConstLabels prometheus.Labels
}

// Listener is a meter.Listener that counts measurement events. Metric
// updates are atomic, so one Listener can observe concurrent measurements.
type Listener struct {
	meter.NopListener

	measurements *prometheus.CounterVec // by outcome
	objects      prometheus.Counter
	bytes        prometheus.Counter
	grown        prometheus.Counter
	shared       prometheus.Counter
	absorbed     prometheus.Counter
	skipped      *prometheus.CounterVec // by reason
	lastBytes    prometheus.Gauge
	duration     prometheus.Histogram
}

// New creates a Listener and registers its collectors with reg
func New(reg prometheus.Registerer, opts Opts) (*Listener, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "heapmeter"
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: name, Help: help, ConstLabels: opts.ConstLabels,
		})
	}
	l := &Listener{
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "measurements_total", ConstLabels: opts.ConstLabels,
			Help: "Finished measurements by outcome (complete or incomplete).",
		}, []string{"outcome"}),
		objects: counter("objects_total", "Distinct objects counted."),
		bytes:   counter("bytes_total", "Bytes counted across all measurements, absorbed objects included."),
		grown:   counter("span_extensions_total", "Known spans extended by a wider slice."),
		shared:  counter("shared_edges_total", "References into objects already counted."),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "skipped_total", ConstLabels: opts.ConstLabels,
			Help: "Roots and references not followed, by excluding guard or failure.",
		}, []string{"reason"}),
		absorbed:  counter("absorbed_objects_total", "Objects folded into an enclosing object counted later."),
		lastBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "last_bytes", ConstLabels: opts.ConstLabels,
			Help: "Size reported by the most recent measurement.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "measurement_duration_seconds", ConstLabels: opts.ConstLabels,
			Help:    "Wall time of measurements.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	var errs []error
	for _, c := range l.collectors() {
		errs = append(errs, reg.Register(c))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return l, nil
}

// MustNew is New that panics on registration errors
func MustNew(reg prometheus.Registerer, opts Opts) *Listener {
	l, err := New(reg, opts)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Listener) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		l.measurements, l.objects, l.bytes, l.grown, l.shared, l.absorbed, l.skipped, l.lastBytes, l.duration,
	}
}

func (l *Listener) Visited(_ object.Object, size int64, _ object.Edge) {
	l.objects.Inc()
	if size > 0 {
		l.bytes.Add(float64(size))
	}
}

func (l *Listener) Grown(_ object.Object, delta int64) {
	l.grown.Inc()
	if delta > 0 {
		l.bytes.Add(float64(delta))
	}
}

func (l *Listener) Shared(object.Edge) { l.shared.Inc() }

func (l *Listener) Absorbed(object.Key, object.Object, int64) { l.absorbed.Inc() }

// Skipped counts by the reason's leading token; error details are dropped
// to keep label cardinality bounded
func (l *Listener) Skipped(_ object.Edge, reason string) {
	if head, _, ok := strings.Cut(reason, ":"); ok {
		reason = head
	}
	l.skipped.WithLabelValues(reason).Inc()
}

func (l *Listener) Done(r *meter.Result) {
	outcome := "complete"
	if r.Incomplete {
		outcome = "incomplete"
	}
	l.measurements.WithLabelValues(outcome).Inc()
	l.lastBytes.Set(float64(r.Bytes))
	l.duration.Observe(r.Elapsed.Seconds())
}
